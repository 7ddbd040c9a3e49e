package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/soreon/mailout/internal/sender"
)

// handleListSenders handles GET /api/v1/senders
func (s *Server) handleListSenders(w http.ResponseWriter, r *http.Request) {
	senders, err := s.deps.Senders.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list senders", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list senders")
		return
	}

	s.sendJSON(w, http.StatusOK, senders)
}

// handleCreateSender handles POST /api/v1/senders
func (s *Server) handleCreateSender(w http.ResponseWriter, r *http.Request) {
	var snd sender.Sender
	if err := json.NewDecoder(r.Body).Decode(&snd); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.deps.Senders.Create(r.Context(), &snd); err != nil {
		var valErr *sender.ValidationError
		if errors.As(err, &valErr) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to create sender", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create sender")
		return
	}

	s.sendJSON(w, http.StatusCreated, snd)
}

// handleGetSender handles GET /api/v1/senders/{id}
func (s *Server) handleGetSender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snd, err := s.deps.Senders.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get sender", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get sender")
		return
	}
	if snd == nil {
		s.sendError(w, http.StatusNotFound, "Sender not found")
		return
	}

	s.sendJSON(w, http.StatusOK, snd)
}

// handleGetDefaultSender handles GET /api/v1/senders/default
func (s *Server) handleGetDefaultSender(w http.ResponseWriter, r *http.Request) {
	snd, err := s.deps.Senders.GetDefault(r.Context())
	if err != nil {
		s.logger.Error("failed to get default sender", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get default sender")
		return
	}
	if snd == nil {
		s.sendError(w, http.StatusNotFound, "No default sender configured")
		return
	}

	s.sendJSON(w, http.StatusOK, snd)
}

// handleUpdateSender handles PUT /api/v1/senders/{id}
func (s *Server) handleUpdateSender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.deps.Senders.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get sender", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get sender")
		return
	}
	if existing == nil {
		s.sendError(w, http.StatusNotFound, "Sender not found")
		return
	}

	var snd sender.Sender
	if err := json.NewDecoder(r.Body).Decode(&snd); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	snd.ID = id
	snd.CreatedAt = existing.CreatedAt

	if err := s.deps.Senders.Update(r.Context(), &snd); err != nil {
		var valErr *sender.ValidationError
		if errors.As(err, &valErr) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to update sender", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update sender")
		return
	}

	s.sendJSON(w, http.StatusOK, snd)
}

// handleDeleteSender handles DELETE /api/v1/senders/{id}
func (s *Server) handleDeleteSender(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.deps.Senders.Delete(r.Context(), id); err != nil {
		s.logger.Error("failed to delete sender", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete sender")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
