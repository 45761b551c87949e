package render

import (
	"fmt"
	"html"
	"strings"
	texttemplate "text/template"
)

// InlineBody renders a fixed body assembled in code, for runs without a
// body template on disk. The subject is still templated.
type InlineBody struct {
	subject *texttemplate.Template
}

// NewInlineBody parses the subject template.
func NewInlineBody(subject string) (*InlineBody, error) {
	s, err := parseSubject(subject)
	if err != nil {
		return nil, err
	}
	return &InlineBody{subject: s}, nil
}

// Render implements Renderer.
func (r *InlineBody) Render(f Fields) (Email, error) {
	subject, err := execSubject(r.subject, f)
	if err != nil {
		return Email{}, err
	}

	e := html.EscapeString
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Olá, %s,</p>", e(f.AdvisorName))
	fmt.Fprintf(&b, "<p>Cliente: %s (%s)<br>", e(f.ClientName), e(f.ClientID))
	fmt.Fprintf(&b, "Estrutura: %s<br>", e(f.Structure))
	fmt.Fprintf(&b, "Ativo: %s<br>", e(f.Asset))
	fmt.Fprintf(&b, "%% PL: %s</p>", e(f.AllocationPct))
	b.WriteString("<p>Por favor, responda a este e-mail com a análise de adequação da alocação.</p>")
	fmt.Fprintf(&b, "<p>%s</p>", e(f.Token))

	return Email{Subject: subject, Body: b.String()}, nil
}
