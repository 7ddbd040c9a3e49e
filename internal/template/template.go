// Package template provides reusable email templates: Handlebars rendering,
// variable extraction and persistent storage.
package template

import (
	"time"
)

// Template represents a stored email template
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
	Variables   []string  `json:"variables,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilter contains filters for listing templates
type ListFilter struct {
	Limit  int
	Offset int
	Search string
}
