package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soreon/mailout/internal/template"
)

// ValidateTemplateRequest is the request body for POST /api/v1/templates/validate
type ValidateTemplateRequest struct {
	Content string `json:"content"`
}

// ValidateTemplateResponse reports the validation outcome and the
// variables the template references
type ValidateTemplateResponse struct {
	Valid     bool     `json:"valid"`
	Error     string   `json:"error,omitempty"`
	Variables []string `json:"variables,omitempty"`
}

// PreviewTemplateRequest is the request body for POST /api/v1/templates/preview
type PreviewTemplateRequest struct {
	TemplateID string            `json:"template_id,omitempty"`
	Content    string            `json:"content,omitempty"`
	Subject    string            `json:"subject,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// PreviewTemplateResponse is the rendered preview
type PreviewTemplateResponse struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// handleListTemplates handles GET /api/v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	filter := template.ListFilter{
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	templates, err := s.deps.Templates.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	s.sendJSON(w, http.StatusOK, templates)
}

// handleCreateTemplate handles POST /api/v1/templates
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tmpl template.Template
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if tmpl.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}
	if tmpl.Content == "" {
		s.sendError(w, http.StatusBadRequest, "content is required")
		return
	}

	if result := s.deps.Engine.Validate(tmpl.Content); !result.Valid {
		s.sendError(w, http.StatusUnprocessableEntity, result.Error)
		return
	}

	if err := s.deps.Templates.Create(r.Context(), &tmpl); err != nil {
		s.logger.Error("failed to create template", "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	s.sendJSON(w, http.StatusCreated, tmpl)
}

// handleGetTemplate handles GET /api/v1/templates/{id}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tmpl, err := s.deps.Templates.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if tmpl == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleUpdateTemplate handles PUT /api/v1/templates/{id}
func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.deps.Templates.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to get template")
		return
	}
	if existing == nil {
		s.sendError(w, http.StatusNotFound, "Template not found")
		return
	}

	var tmpl template.Template
	if err := json.NewDecoder(r.Body).Decode(&tmpl); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tmpl.ID = id
	tmpl.CreatedAt = existing.CreatedAt

	if tmpl.Content == "" {
		s.sendError(w, http.StatusBadRequest, "content is required")
		return
	}

	if result := s.deps.Engine.Validate(tmpl.Content); !result.Valid {
		s.sendError(w, http.StatusUnprocessableEntity, result.Error)
		return
	}

	if err := s.deps.Templates.Update(r.Context(), &tmpl); err != nil {
		s.logger.Error("failed to update template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to update template")
		return
	}

	s.sendJSON(w, http.StatusOK, tmpl)
}

// handleDeleteTemplate handles DELETE /api/v1/templates/{id}
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.deps.Templates.Delete(r.Context(), id); err != nil {
		s.logger.Error("failed to delete template", "id", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, "Failed to delete template")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleValidateTemplate handles POST /api/v1/templates/validate
func (s *Server) handleValidateTemplate(w http.ResponseWriter, r *http.Request) {
	var req ValidateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result := s.deps.Engine.Validate(req.Content)
	resp := ValidateTemplateResponse{
		Valid: result.Valid,
		Error: result.Error,
	}
	if result.Valid {
		resp.Variables = s.deps.Engine.ExtractVariables(req.Content)
	}

	s.sendJSON(w, http.StatusOK, resp)
}

// handlePreviewTemplate handles POST /api/v1/templates/preview. Variables
// without a sample value are rendered as bracketed placeholders.
func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req PreviewTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subject := req.Subject
	content := req.Content

	if req.TemplateID != "" {
		tmpl, err := s.deps.Templates.Get(r.Context(), req.TemplateID)
		if err != nil {
			s.logger.Error("failed to get template", "id", req.TemplateID, "error", err)
			s.sendError(w, http.StatusInternalServerError, "Failed to get template")
			return
		}
		if tmpl == nil {
			s.sendError(w, http.StatusNotFound, "Template not found")
			return
		}
		content = tmpl.Content
		if subject == "" {
			subject = tmpl.Subject
		}
	}

	if content == "" {
		s.sendError(w, http.StatusBadRequest, "template_id or content is required")
		return
	}

	html, err := s.deps.Engine.Preview(content, req.Variables)
	if err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, PreviewTemplateResponse{
		Subject: s.deps.Engine.RenderSubject(subject, req.Variables),
		HTML:    html,
	})
}
