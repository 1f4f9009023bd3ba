package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"job-analysis-pipeline/internal/domain"
	"job-analysis-pipeline/internal/domain/model"
)

type mintTokenRequest struct {
	Secret   string `json:"secret"`
	Operator string `json:"operator"`
}

// mintTokenHandler exchanges the shared secret for a short-lived JWT.
func (s *Server) mintTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mintTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if s.secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.secret)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if req.Operator == "" {
			req.Operator = "operator"
		}

		token, err := s.auth.Mint(req.Operator)
		if err != nil {
			http.Error(w, "Failed to mint token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{Token: token})
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.statusUC.Snapshot(r.Context())
		if err != nil {
			s.log.Error().Err(err).Msg("status snapshot failed")
			http.Error(w, "Failed to build status", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

func (s *Server) tierStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier, ok := tierFromURL(w, r)
		if !ok {
			return
		}

		stats, err := s.statusUC.TierSnapshot(r.Context(), tier)
		if err != nil {
			s.log.Error().Err(err).Str("tier", tier.String()).Msg("tier stats failed")
			http.Error(w, "Failed to load tier stats", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	}
}

// forceRunHandler triggers a tier outside its window. The run is synchronous;
// operators invoking it are expected to wait.
func (s *Server) forceRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tier, ok := tierFromURL(w, r)
		if !ok {
			return
		}

		if err := s.runner.ForceRun(r.Context(), tier, operatorFrom(r.Context())); err != nil {
			if errors.Is(err, domain.ErrInvalidArgument) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.log.Error().Err(err).Str("tier", tier.String()).Msg("manual run failed")
			http.Error(w, "Tier run failed: "+err.Error(), http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(struct {
			Tier   int    `json:"tier"`
			Result string `json:"result"`
		}{Tier: int(tier), Result: "completed"})
	}
}

func (s *Server) incidentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		incidents, err := s.audit.Recent(r.Context(), limit)
		if err != nil {
			s.log.Error().Err(err).Msg("incident listing failed")
			http.Error(w, "Failed to list incidents", http.StatusInternalServerError)
			return
		}

		response := struct {
			Data []*model.SecurityIncident `json:"data"`
		}{Data: incidents}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

func tierFromURL(w http.ResponseWriter, r *http.Request) (model.TierID, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "tier"))
	if err != nil {
		http.Error(w, "Tier must be a number", http.StatusBadRequest)
		return 0, false
	}
	tier, err := model.ParseTier(n)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return tier, true
}
