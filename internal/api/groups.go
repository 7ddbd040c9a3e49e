package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soreon/mailout/internal/recipient"
)

// handleListGroups handles GET /api/v1/groups
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	filter := recipient.ListFilter{
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	groups, err := s.deps.Groups.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list groups", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list groups")
		return
	}

	s.sendJSON(w, http.StatusOK, groups)
}

// handleCreateGroup handles POST /api/v1/groups
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var group recipient.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.deps.Groups.Create(r.Context(), &group); err != nil {
		var valErr *recipient.ValidationError
		if errors.As(err, &valErr) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to create group", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create group")
		return
	}

	s.sendJSON(w, http.StatusCreated, group)
}

// handleUploadGroup handles POST /api/v1/groups/upload. It accepts a
// multipart form with a recipient file (xlsx, xls or xml) and creates a
// group from its rows.
func (s *Server) handleUploadGroup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.API.MaxUploadBytes); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.config.API.MaxUploadBytes))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	recipients, err := recipient.Parse(data, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		var unsupported *recipient.UnsupportedFormatError
		if errors.As(err, &unsupported) {
			s.sendError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	group := &recipient.Group{
		Name:        name,
		Description: r.FormValue("description"),
		Recipients:  recipients,
		Source:      recipient.SourceFile,
		Filename:    header.Filename,
	}

	if err := s.deps.Groups.Create(r.Context(), group); err != nil {
		var valErr *recipient.ValidationError
		if errors.As(err, &valErr) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to create group from upload", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create group")
		return
	}

	s.logger.Info("group created from file",
		"group", group.Name,
		"filename", header.Filename,
		"recipients", group.Count,
	)

	s.sendJSON(w, http.StatusCreated, group)
}

// handleGetGroup handles GET /api/v1/groups/{id}
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	group, err := s.deps.Groups.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get group", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get group")
		return
	}
	if group == nil {
		s.sendError(w, http.StatusNotFound, "Group not found")
		return
	}

	s.sendJSON(w, http.StatusOK, group)
}

// handleUpdateGroup handles PUT /api/v1/groups/{id}
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.deps.Groups.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get group", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get group")
		return
	}
	if existing == nil {
		s.sendError(w, http.StatusNotFound, "Group not found")
		return
	}

	var group recipient.Group
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	group.ID = id
	group.CreatedAt = existing.CreatedAt

	if err := s.deps.Groups.Update(r.Context(), &group); err != nil {
		var valErr *recipient.ValidationError
		if errors.As(err, &valErr) {
			s.sendError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to update group", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update group")
		return
	}

	s.sendJSON(w, http.StatusOK, group)
}

// handleDeleteGroup handles DELETE /api/v1/groups/{id}
func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.deps.Groups.Delete(r.Context(), id); err != nil {
		s.logger.Error("failed to delete group", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete group")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
