package template

import (
	"errors"
	"sort"
	"strings"
	"testing"
)

func TestEngine_Render(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		tmpl    string
		vars    map[string]string
		want    string
		wantErr bool
	}{
		{
			name: "simple substitution",
			tmpl: "Hello {{name}}!",
			vars: map[string]string{"name": "Bob"},
			want: "Hello Bob!",
		},
		{
			name: "missing variable renders empty",
			tmpl: "Hello {{name}}!",
			vars: map[string]string{},
			want: "Hello !",
		},
		{
			name: "multiple variables",
			tmpl: "{{greeting}}, {{name}} from {{city}}",
			vars: map[string]string{"greeting": "Hi", "name": "Alice", "city": "Seoul"},
			want: "Hi, Alice from Seoul",
		},
		{
			name: "html content",
			tmpl: "<p>Dear {{name}},</p>",
			vars: map[string]string{"name": "Kim"},
			want: "<p>Dear Kim,</p>",
		},
		{
			name:    "unbalanced placeholder",
			tmpl:    "Hello {{name",
			vars:    map[string]string{"name": "Bob"},
			wantErr: true,
		},
		{
			name:    "unclosed block",
			tmpl:    "{{#if name}}Hello",
			vars:    map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Render(tt.tmpl, tt.vars)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Render() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var syntaxErr *SyntaxError
				if !errors.As(err, &syntaxErr) {
					t.Errorf("Render() error type = %T, want *SyntaxError", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngine_RenderDeterministic(t *testing.T) {
	engine := NewEngine()
	tmpl := "Hello {{name}}, your code is {{code}}"
	vars := map[string]string{"name": "Bob", "code": "1234"}

	first, err := engine.Render(tmpl, vars)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := engine.Render(tmpl, vars)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if got != first {
			t.Fatalf("Render() not deterministic: %q vs %q", got, first)
		}
	}
}

func TestEngine_RenderSubject(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name    string
		subject string
		vars    map[string]string
		want    string
	}{
		{
			name:    "rendered subject",
			subject: "Welcome, {{name}}",
			vars:    map[string]string{"name": "Alice"},
			want:    "Welcome, Alice",
		},
		{
			name:    "broken subject falls back to original",
			subject: "Welcome, {{name",
			vars:    map[string]string{"name": "Alice"},
			want:    "Welcome, {{name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.RenderSubject(tt.subject, tt.vars); got != tt.want {
				t.Errorf("RenderSubject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngine_Validate(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name  string
		tmpl  string
		valid bool
	}{
		{name: "valid template", tmpl: "Hello {{name}}", valid: true},
		{name: "empty template", tmpl: "", valid: true},
		{name: "unbalanced braces", tmpl: "Hello {{name", valid: false},
		{name: "unclosed block", tmpl: "{{#each items}}x", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Validate(tt.tmpl)
			if result.Valid != tt.valid {
				t.Errorf("Validate() valid = %v, want %v (error: %s)", result.Valid, tt.valid, result.Error)
			}
			if !tt.valid && result.Error == "" {
				t.Error("Validate() invalid template should carry an error message")
			}
		})
	}
}

func TestEngine_ExtractVariables(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name string
		tmpl string
		want []string
	}{
		{
			name: "simple variables",
			tmpl: "Hello {{name}}, welcome to {{city}}",
			want: []string{"name", "city"},
		},
		{
			name: "duplicates reported once",
			tmpl: "{{name}} {{name}} {{name}}",
			want: []string{"name"},
		},
		{
			name: "triple braces",
			tmpl: "{{{html_body}}}",
			want: []string{"html_body"},
		},
		{
			name: "control constructs excluded",
			tmpl: "{{#if vip}}{{name}}{{/if}}{{! a comment }}",
			want: []string{"name"},
		},
		{
			name: "dotted path reports root",
			tmpl: "{{user.email}} and {{user.name}}",
			want: []string{"user"},
		},
		{
			name: "no variables",
			tmpl: "plain text",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.ExtractVariables(tt.tmpl)
			if !sameSet(got, tt.want) {
				t.Errorf("ExtractVariables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_Preview(t *testing.T) {
	engine := NewEngine()

	got, err := engine.Preview("Hi {{name}}, code {{code}}", map[string]string{"name": "Bob"})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !strings.Contains(got, "Bob") {
		t.Errorf("Preview() = %q, want sample value substituted", got)
	}
	if !strings.Contains(got, "[code]") {
		t.Errorf("Preview() = %q, want [code] marker for uncovered variable", got)
	}
}

func sameSet(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	for i := range g {
		if g[i] != w[i] {
			return false
		}
	}
	return true
}
