package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soreon/mailout/internal/history"
)

// HistoryResponse is the response for GET /api/v1/history
type HistoryResponse struct {
	Runs  []history.Run `json:"runs"`
	Total int           `json:"total"`
}

// handleListHistory handles GET /api/v1/history
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter := history.ListFilter{
		Sender: r.URL.Query().Get("sender"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	runs, total, err := s.deps.History.ListRuns(filter)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	s.sendJSON(w, http.StatusOK, HistoryResponse{Runs: runs, Total: total})
}

// handleGetHistoryRun handles GET /api/v1/history/{id}
func (s *Server) handleGetHistoryRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.deps.History.GetRun(id)
	if err != nil {
		s.logger.Error("failed to get run", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	if run == nil {
		s.sendError(w, http.StatusNotFound, "Run not found")
		return
	}

	s.sendJSON(w, http.StatusOK, run)
}
