// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain/ports/adapter"
	aiAdapters "job-analysis-pipeline/internal/infra/adapters/ai"
	pg "job-analysis-pipeline/internal/infra/db/postgres"
	"job-analysis-pipeline/internal/infra/logging"
	red "job-analysis-pipeline/internal/infra/redis"
	"job-analysis-pipeline/internal/infra/sched"
	"job-analysis-pipeline/internal/infra/security"
	"job-analysis-pipeline/internal/infra/web"
	"job-analysis-pipeline/internal/usecase"
	"job-analysis-pipeline/internal/usecase/prompts"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop AI adapter allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	usageTracker := red.NewUsageTracker(redisClient)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	resultRepo := pg.NewTierResultRepo(pool)
	templateRepo := pg.NewTemplateRepo(pool)
	auditRepo := pg.NewAuditLogRepo(pool)

	// ---- Audit trail (file sink + database) ----
	auditFile, err := os.OpenFile(cfg.Audit.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Audit.FilePath).Msg("audit log file")
	}
	defer auditFile.Close()
	auditTrail := usecase.NewAuditTrail(auditRepo, auditFile, logger)

	// ---- Canonical templates ----
	registry := usecase.NewPromptTemplateRegistry(templateRepo, auditTrail, logger)
	for tier, text := range prompts.CanonicalTemplates() {
		if err := registry.Register(ctx, tier, text); err != nil {
			logger.Fatal().Err(err).Str("tier", tier.String()).Msg("template registration")
		}
	}

	// ---- AI adapter (OpenAI + Gemini behind a router) ----
	byProvider := map[string]adapter.AIServiceAdapter{}
	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.StandardModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = oa
	}
	if cfg.AI.GeminiKey != "" {
		ga, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.EconomyModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = ga
	}

	var ai adapter.AIServiceAdapter
	switch {
	case len(byProvider) > 0:
		def := "openai"
		if byProvider["openai"] == nil {
			def = "gemini"
		}
		ai = aiAdapters.NewMultiAIAdapter(def, byProvider, nil)
	case cfg.Runtime.Dev:
		logger.Warn().Msg("no AI provider configured; using noop adapter")
		ai = aiAdapters.NewNoopAIAdapter()
	default:
		logger.Fatal().Msg("no AI provider configured: set ai.openai_key or ai.gemini_key")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	estimator := usecase.NewTokenBudgetEstimator(cfg.Pipeline)
	selector := usecase.NewModelSelector(cfg.AI, cfg.Pipeline, logger)
	advisor := usecase.NewBatchSizeAdvisor(estimator, cfg.Pipeline)
	tokenValidator := usecase.NewSecurityTokenValidator(security.NewNonceSource(), auditTrail, logger)

	deps := usecase.AnalyzerDeps{
		Results:   resultRepo,
		Txer:      pg.NewTxManager(pool),
		Registry:  registry,
		Estimator: estimator,
		Selector:  selector,
		Advisor:   advisor,
		Tokens:    tokenValidator,
		Usage:     usageTracker,
		Limiter:   rateLimiter,
		AI:        ai,
		Logger:    logger,
	}
	analyzers := []usecase.TierAnalyzer{
		usecase.NewTier1Analyzer(deps, cfg.AI, cfg.Pipeline),
		usecase.NewTier2Analyzer(deps, cfg.AI, cfg.Pipeline),
		usecase.NewTier3Analyzer(deps, cfg.AI, cfg.Pipeline),
	}

	// ---- Scheduler ----
	scheduler, err := sched.NewPipelineScheduler(cfg.Pipeline, analyzers, jobRepo, advisor, auditTrail, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler")
	}
	go func() { _ = scheduler.Run(ctx) }()

	// ---- Operator API ----
	statusUC := usecase.NewStatusUseCase(jobRepo, resultRepo, usageTracker, registry, scheduler, cfg.Pipeline.DailyTokenLimit, logger)
	server := web.NewServer(cfg.Web, statusUC, auditTrail, scheduler, logger)
	go func() {
		if err := server.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("operator API stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
}
