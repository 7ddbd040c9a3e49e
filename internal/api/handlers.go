package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/soreon/mailout/internal/campaign"
	"github.com/soreon/mailout/internal/email"
	"github.com/soreon/mailout/internal/history"
	"github.com/soreon/mailout/internal/metrics"
	"github.com/soreon/mailout/internal/recipient"
	"github.com/soreon/mailout/internal/template"
)

const version = "0.1.0"

// SendRequest is the request body for POST /api/v1/send.
// The sender, recipients and template can each be given inline or by
// reference to a stored record.
type SendRequest struct {
	SenderID   string                `json:"sender_id,omitempty"`
	FromName   string                `json:"from_name,omitempty"`
	FromEmail  string                `json:"from_email,omitempty"`
	GroupID    string                `json:"group_id,omitempty"`
	Recipients []recipient.Recipient `json:"recipients,omitempty"`
	TemplateID string                `json:"template_id,omitempty"`
	Subject    string                `json:"subject,omitempty"`
	Content    string                `json:"content,omitempty"`
	DelayMS    *int64                `json:"delay_ms,omitempty"` // nil means the configured default
}

// SendResponse is the response for POST /api/v1/send
type SendResponse struct {
	RunID      string                `json:"run_id,omitempty"`
	From       string                `json:"from"`
	Total      int                   `json:"total"`
	Success    int                   `json:"success"`
	Failed     int                   `json:"failed"`
	Details    []campaign.ItemResult `json:"details"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// TestSendRequest is the request body for POST /api/v1/send/test
type TestSendRequest struct {
	To        string            `json:"to"`
	Name      string            `json:"name,omitempty"`
	SenderID  string            `json:"sender_id,omitempty"`
	FromName  string            `json:"from_name,omitempty"`
	FromEmail string            `json:"from_email,omitempty"`
	Subject   string            `json:"subject"`
	Content   string            `json:"content"`
	Variables map[string]string `json:"variables,omitempty"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleSend handles POST /api/v1/send
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	from, err := s.resolveSender(r, req.SenderID, req.FromName, req.FromEmail)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipients, groupName, err := s.resolveRecipients(r, req.GroupID, req.Recipients)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	subject, content, templateName, err := s.resolveTemplate(r, req.TemplateID, req.Subject, req.Content)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages, err := s.deps.Personalizer.Personalize(content, subject, recipients)
	if err != nil {
		var syntaxErr *template.SyntaxError
		if errors.As(err, &syntaxErr) {
			s.sendError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	delay := s.config.Send.DefaultDelay
	if req.DelayMS != nil {
		if *req.DelayMS < 0 {
			s.sendError(w, http.StatusBadRequest, "delay_ms must not be negative")
			return
		}
		delay = time.Duration(*req.DelayMS) * time.Millisecond
	}

	s.logger.Info("bulk send started",
		"from", from,
		"recipients", len(messages),
		"delay", delay,
	)

	started := time.Now()
	result := s.deps.Dispatcher.SendBulk(r.Context(), from, messages, delay)
	finished := time.Now()

	runID := s.recordRun(from, groupName, templateName, delay, started, finished, result)

	s.logger.Info("bulk send finished",
		"total", result.Total,
		"success", result.Success,
		"failed", result.Failed,
	)

	s.sendJSON(w, http.StatusOK, SendResponse{
		RunID:      runID,
		From:       from,
		Total:      result.Total,
		Success:    result.Success,
		Failed:     result.Failed,
		Details:    result.Details,
		StartedAt:  started,
		FinishedAt: finished,
	})
}

// handleSendTest handles POST /api/v1/send/test
func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	var req TestSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !email.ValidAddress(req.To) {
		s.sendError(w, http.StatusBadRequest, "valid to address is required")
		return
	}
	if req.Content == "" {
		s.sendError(w, http.StatusBadRequest, "content is required")
		return
	}

	from, err := s.resolveSender(r, req.SenderID, req.FromName, req.FromEmail)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	target := recipient.Recipient{Email: req.To, Name: req.Name, Variables: req.Variables}
	messages, err := s.deps.Personalizer.Personalize(req.Content, req.Subject, []recipient.Recipient{target})
	if err != nil {
		s.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result := s.deps.Dispatcher.SendBulk(r.Context(), from, messages, 0)
	if result.Failed > 0 {
		s.sendError(w, http.StatusBadGateway, result.Details[0].Error)
		return
	}

	s.sendJSON(w, http.StatusOK, result.Details[0])
}

// handleVerifySMTP handles POST /api/v1/smtp/verify
func (s *Server) handleVerifySMTP(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Dispatcher.Verify(r.Context()); err != nil {
		s.sendError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(s.startTime).String(),
	})
}

// resolveSender determines the From address: an explicit sender record,
// an inline address, the stored default sender, or the configured
// fallback, in that order.
func (s *Server) resolveSender(r *http.Request, senderID, fromName, fromEmail string) (string, error) {
	if senderID != "" {
		snd, err := s.deps.Senders.Get(r.Context(), senderID)
		if err != nil {
			return "", fmt.Errorf("failed to load sender: %w", err)
		}
		if snd == nil {
			return "", fmt.Errorf("sender %s not found", senderID)
		}
		return snd.Address(), nil
	}

	if fromEmail != "" {
		if !email.ValidAddress(fromEmail) {
			return "", fmt.Errorf("invalid from_email: %s", fromEmail)
		}
		return email.FormatAddress(fromName, fromEmail), nil
	}

	snd, err := s.deps.Senders.GetDefault(r.Context())
	if err != nil {
		return "", fmt.Errorf("failed to load default sender: %w", err)
	}
	if snd != nil {
		return snd.Address(), nil
	}

	if s.config.Send.DefaultSenderEmail != "" {
		return email.FormatAddress(s.config.Send.DefaultSenderName, s.config.Send.DefaultSenderEmail), nil
	}

	return "", fmt.Errorf("no sender specified and no default sender configured")
}

// resolveRecipients returns the recipient list from a stored group or the
// inline list. Exactly one source must be given.
func (s *Server) resolveRecipients(r *http.Request, groupID string, inline []recipient.Recipient) ([]recipient.Recipient, string, error) {
	if groupID != "" {
		group, err := s.deps.Groups.Get(r.Context(), groupID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load group: %w", err)
		}
		if group == nil {
			return nil, "", fmt.Errorf("group %s not found", groupID)
		}
		return group.Recipients, group.Name, nil
	}

	if len(inline) == 0 {
		return nil, "", fmt.Errorf("group_id or recipients is required")
	}

	for i, rcpt := range inline {
		if err := rcpt.Validate(); err != nil {
			return nil, "", fmt.Errorf("recipient %d: %w", i+1, err)
		}
	}

	return inline, "", nil
}

// resolveTemplate returns subject and content from a stored template or
// the inline fields. An inline subject overrides the template subject.
func (s *Server) resolveTemplate(r *http.Request, templateID, subject, content string) (string, string, string, error) {
	if templateID != "" {
		tmpl, err := s.deps.Templates.Get(r.Context(), templateID)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to load template: %w", err)
		}
		if tmpl == nil {
			return "", "", "", fmt.Errorf("template %s not found", templateID)
		}
		if subject == "" {
			subject = tmpl.Subject
		}
		return subject, tmpl.Content, tmpl.Name, nil
	}

	if content == "" {
		return "", "", "", fmt.Errorf("template_id or content is required")
	}

	return subject, content, "", nil
}

// recordRun persists the run outcome and updates run metrics. Returns the
// history run id, or empty when history is disabled.
func (s *Server) recordRun(from, groupName, templateName string, delay time.Duration, started, finished time.Time, result *campaign.Result) string {
	metrics.RecordRun(result.Total, finished.Sub(started).Seconds())

	if s.deps.History == nil {
		return ""
	}

	run := &history.Run{
		Sender:       from,
		GroupName:    groupName,
		TemplateName: templateName,
		Total:        result.Total,
		Success:      result.Success,
		Failed:       result.Failed,
		Delay:        delay,
		StartedAt:    started,
		FinishedAt:   finished,
	}
	for i, item := range result.Details {
		run.Items = append(run.Items, history.RunItem{
			Position:  i + 1,
			Recipient: item.To,
			Subject:   item.Subject,
			MessageID: item.MessageID,
			Success:   item.Success,
			Error:     item.Error,
		})
	}

	if err := s.deps.History.RecordRun(run); err != nil {
		s.logger.Error("failed to record run history", "error", err)
		return ""
	}

	return run.ID
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
