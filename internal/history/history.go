package history

import "time"

// Run is one completed bulk send.
type Run struct {
	ID           string        `json:"id"`
	Sender       string        `json:"sender"`
	GroupName    string        `json:"group_name,omitempty"`
	TemplateName string        `json:"template_name,omitempty"`
	Total        int           `json:"total"`
	Success      int           `json:"success"`
	Failed       int           `json:"failed"`
	Delay        time.Duration `json:"delay"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Items        []RunItem     `json:"items,omitempty"`
}

// RunItem is the per-recipient outcome within a run.
type RunItem struct {
	Position  int    `json:"position"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ListFilter controls run listing.
type ListFilter struct {
	Sender string
	Limit  int
	Offset int
}
