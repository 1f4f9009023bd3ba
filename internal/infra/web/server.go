package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"job-analysis-pipeline/internal/config"
	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/usecase"
)

// TierRunner is the slice of the scheduler the API needs for manual runs.
type TierRunner interface {
	ForceRun(ctx context.Context, tier model.TierID, operator string) error
}

// Server exposes the operator API: pipeline status, tier stats, manual runs
// and the security incident log.
type Server struct {
	statusUC *usecase.StatusUseCase
	audit    *usecase.AuditTrail
	runner   TierRunner
	auth     *AuthManager
	secret   string
	port     int
	log      *zerolog.Logger
}

func NewServer(
	cfg config.WebConfig,
	statusUC *usecase.StatusUseCase,
	audit *usecase.AuditTrail,
	runner TierRunner,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		statusUC: statusUC,
		audit:    audit,
		runner:   runner,
		auth:     NewAuthManager(cfg.JWTSecret, cfg.TokenTTL),
		secret:   cfg.JWTSecret,
		port:     cfg.Port,
		log:      &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/token", s.mintTokenHandler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/api/v1/pipeline/status", s.statusHandler())
		r.Get("/api/v1/pipeline/tiers/{tier}/stats", s.tierStatsHandler())
		r.Post("/api/v1/pipeline/tiers/{tier}/run", s.forceRunHandler())
		r.Get("/api/v1/pipeline/incidents", s.incidentsHandler())
	})

	return r
}

// Run blocks until ctx is canceled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.port).Msg("Starting operator API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// authMiddleware requires a valid operator JWT on every protected route.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			s.log.Error().Msg("JWT secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withOperator(r.Context(), claims.Subject)))
	})
}

type operatorKey struct{}

func withOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operatorKey{}, name)
}

func operatorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
