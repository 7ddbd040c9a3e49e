package template

import (
	"regexp"
	"strings"

	"github.com/aymerick/raymond"
)

// SyntaxError indicates a template that cannot be compiled.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string {
	return e.Message
}

// placeholderPattern matches {{var}} placeholders with one to three
// enclosing braces.
var placeholderPattern = regexp.MustCompile(`\{\{?\{?([^}]+)\}?\}?\}`)

// Engine renders Handlebars templates with data
type Engine struct{}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{}
}

// Render renders a template with the provided variables. Missing variables
// render as empty strings. Returns a SyntaxError if the template cannot be
// compiled.
func (e *Engine) Render(tmpl string, vars map[string]string) (string, error) {
	out, err := raymond.Render(tmpl, vars)
	if err != nil {
		return "", &SyntaxError{Message: err.Error()}
	}
	return out, nil
}

// RenderSubject renders a subject line template. Unlike Render, a failure
// returns the original subject unchanged so that a broken subject template
// never blocks a send.
func (e *Engine) RenderSubject(subject string, vars map[string]string) string {
	out, err := raymond.Render(subject, vars)
	if err != nil {
		return subject
	}
	return out
}

// ValidationResult is the outcome of a template validation
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Validate attempts to compile the template. It never fails; compile errors
// are captured in the result.
func (e *Engine) Validate(tmpl string) ValidationResult {
	if _, err := raymond.Parse(tmpl); err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}
	return ValidationResult{Valid: true}
}

// ExtractVariables returns the distinct root variable names referenced by the
// template, in order of first appearance. Block openers (#), closers (/) and
// comments (!) are skipped. Dotted paths report only the root name.
func (e *Engine) ExtractVariables(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string

	for _, match := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" {
			continue
		}
		if strings.HasPrefix(name, "#") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "!") {
			continue
		}
		// Reduce dotted paths and helper expressions to the base name.
		name = strings.SplitN(name, ".", 2)[0]
		name = strings.SplitN(name, " ", 2)[0]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names
}

// Preview renders the template with sample data, substituting a visible
// [name] marker for every variable the sample data does not cover.
func (e *Engine) Preview(tmpl string, sample map[string]string) (string, error) {
	data := make(map[string]string, len(sample))
	for k, v := range sample {
		data[k] = v
	}
	for _, name := range e.ExtractVariables(tmpl) {
		if data[name] == "" {
			data[name] = "[" + name + "]"
		}
	}
	return e.Render(tmpl, data)
}
