package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gowbic/domain/core"
	apperrors "gowbic/internal/errors"
	"gowbic/ports"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	filters := ports.SweepFilters{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	summaries, err := s.reader.ListSweeps(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Debug("listed %d sweeps (limit=%d offset=%d)", len(summaries), filters.Limit, filters.Offset)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sweeps": summaries,
		"count":  len(summaries),
	})
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	sweepID := core.SweepID(chi.URLParam(r, "id"))

	detail, err := s.reader.GetSweep(r.Context(), sweepID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGetRanking(w http.ResponseWriter, r *http.Request) {
	sweepID := core.SweepID(chi.URLParam(r, "id"))

	ranking, err := s.reader.GetRanking(r.Context(), sweepID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ranking)
}

func (s *Server) handleSweepArtifacts(w http.ResponseWriter, r *http.Request) {
	sweepID := core.SweepID(chi.URLParam(r, "id"))

	artifacts, err := s.reader.GetArtifactsBySweep(r.Context(), sweepID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Debug("sweep %s: returning %d artifacts", sweepID, len(artifacts))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sweep_id":  sweepID,
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP statuses and reports the
// taxonomy code alongside the message
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsNotFoundError(err):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConfigInvalid):
		status = http.StatusBadRequest
	}

	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  apperrors.CodeFor(err),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
