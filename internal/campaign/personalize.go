// Package campaign turns a template and a recipient list into personalized
// messages and dispatches them sequentially over an SMTP transport.
package campaign

import (
	"github.com/soreon/mailout/internal/recipient"
	"github.com/soreon/mailout/internal/template"
)

// Message is one fully personalized email, ready for dispatch. It is never
// persisted.
type Message struct {
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	HTML      string            `json:"html"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Personalizer renders one template per recipient
type Personalizer struct {
	engine *template.Engine
}

// NewPersonalizer creates a new personalizer
func NewPersonalizer(engine *template.Engine) *Personalizer {
	return &Personalizer{engine: engine}
}

// Personalize renders the body and subject templates once per recipient,
// preserving input order. The variable mapping starts with the recipient's
// name and email; recipient-specific variables win on conflict.
//
// A body render failure aborts the whole batch: the same template is reused
// for every recipient, so a failure is a batch-wide defect. Subject failures
// fall back to the raw subject and never block a send.
func (p *Personalizer) Personalize(content, subject string, recipients []recipient.Recipient) ([]Message, error) {
	messages := make([]Message, 0, len(recipients))

	for _, r := range recipients {
		vars := make(map[string]string, len(r.Variables)+2)
		vars["name"] = r.Name
		vars["email"] = r.Email
		for k, v := range r.Variables {
			vars[k] = v
		}

		html, err := p.engine.Render(content, vars)
		if err != nil {
			return nil, err
		}

		messages = append(messages, Message{
			To:        r.Email,
			Subject:   p.engine.RenderSubject(subject, vars),
			HTML:      html,
			Variables: vars,
		})
	}

	return messages, nil
}
