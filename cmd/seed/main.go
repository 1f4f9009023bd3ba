package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"
	pg "job-analysis-pipeline/internal/infra/db/postgres"
	"job-analysis-pipeline/internal/infra/logging"
	"job-analysis-pipeline/internal/usecase"
	"job-analysis-pipeline/internal/usecase/prompts"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	withJobs := flag.Bool("jobs", false, "also insert sample job postings")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// Apply schema
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema applied")

	// Register canonical prompt templates. The audit trail here only needs
	// the database sink; incidents during seeding would be surprising anyway.
	auditTrail := usecase.NewAuditTrail(pg.NewAuditLogRepo(pool), io.Discard, logger)
	registry := usecase.NewPromptTemplateRegistry(pg.NewTemplateRepo(pool), auditTrail, logger)
	for tier, text := range prompts.CanonicalTemplates() {
		if err := registry.Register(ctx, tier, text); err != nil {
			log.Fatalf("register %s template: %v", tier, err)
		}
		hash, _ := registry.CanonicalHashFor(tier)
		fmt.Printf("registered: %s template (hash=%s)\n", tier, hash[:12])
	}

	if !*withJobs {
		fmt.Println("✅ Seeding complete.")
		return
	}

	// Sample postings for exercising the pipeline end to end in dev,
	// inserted in one transaction so a failed seed leaves nothing behind.
	jobRepo := pg.NewJobRepo(pool)
	samples := []struct {
		Title, Company, Description string
	}{
		{
			"Senior Backend Engineer", "Acme Logistics",
			"We need a senior Go engineer to own our routing services. PostgreSQL, Redis, Kubernetes. Fast-paced environment, on-call rotation. $150k-$180k.",
		},
		{
			"Platform Engineer", "Nimbus Cloud",
			"Build internal developer tooling. Terraform, Go, AWS. Hybrid, 2 days in office. We move fast and wear many hats.",
		},
		{
			"Data Engineer", "Brightside Health",
			"Design ETL pipelines for clinical data. Python, dbt, Snowflake. Remote-friendly. Apply with resume and cover letter by March 15.",
		},
	}
	txErr := pg.NewTxManager(pool).WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, s := range samples {
			job := &model.JobRecord{
				ID:          uuid.NewString(),
				Title:       s.Title,
				Company:     s.Company,
				Description: s.Description,
				SourceName:  "seed",
				ScrapedAt:   time.Now().UTC(),
			}
			if err := jobRepo.Save(ctx, tx, job); err != nil {
				return fmt.Errorf("seed job %q: %w", s.Title, err)
			}
			fmt.Printf("seeded: %s @ %s (id=%s)\n", job.Title, job.Company, job.ID)
		}
		return nil
	})
	if txErr != nil {
		log.Fatalf("seed jobs: %v", txErr)
	}

	fmt.Println("✅ Seeding complete.")
}
