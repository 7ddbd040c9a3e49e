// Package recipient provides recipient records, recipient group storage and
// parsing of uploaded spreadsheet/XML recipient files.
package recipient

import (
	"fmt"
	"time"

	"github.com/soreon/mailout/internal/email"
)

// Group source types
const (
	SourceManual = "manual"
	SourceFile   = "file"
)

// Recipient is one addressable target of a campaign plus its
// personalization variables.
type Recipient struct {
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Validate checks that the recipient carries a usable email address.
func (r *Recipient) Validate() error {
	if !email.ValidAddress(r.Email) {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("invalid email address: %q", r.Email)}
	}
	return nil
}

// Group is a named, ordered list of recipients.
type Group struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Recipients  []Recipient `json:"recipients"`
	Count       int         `json:"count"`
	Source      string      `json:"source"`
	Filename    string      `json:"filename,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ListFilter contains filters for listing groups
type ListFilter struct {
	Limit  int
	Offset int
	Search string
}

// ValidationError indicates a bad or missing required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UnsupportedFormatError indicates an upload that is neither a spreadsheet
// nor an XML document.
type UnsupportedFormatError struct {
	MIMEType string
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format %q (%s): only xlsx, xls and xml files are supported", e.Filename, e.MIMEType)
}

// MissingEmailError indicates a parsed record with no usable email address.
// Row is the 1-based index of the offending data row or item.
type MissingEmailError struct {
	Row int
}

func (e *MissingEmailError) Error() string {
	return fmt.Sprintf("row %d: no email address found", e.Row)
}
