// Package sender manages stored sender identities. At most one sender is
// the default at any time.
package sender

import (
	"time"

	"github.com/soreon/mailout/internal/email"
)

// Sender is a stored sender identity
type Sender struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address renders the sender as "Name <email>".
func (s *Sender) Address() string {
	return email.FormatAddress(s.Name, s.Email)
}

// ValidationError indicates a bad or missing required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
