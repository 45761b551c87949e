// Package render builds the subject and body of each audit email.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"os"
	"regexp"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/nhle/audit-mailer/internal/model"
)

//go:embed templates/email_body.html
var defaultBody string

// Fields are the values available to subject and body templates.
type Fields struct {
	AdvisorName   string
	ClientName    string
	ClientID      string
	Structure     string
	Asset         string
	AllocationPct string
	Token         string
}

// NewFields collects the template fields for one item.
func NewFields(item model.DispatchItem, advisor model.Recipient, token string) Fields {
	return Fields{
		AdvisorName:   advisor.Name,
		ClientName:    item.ClientName,
		ClientID:      item.ClientID,
		Structure:     item.Structure,
		Asset:         item.Asset,
		AllocationPct: item.AllocationPct,
		Token:         token,
	}
}

// Email is a rendered subject and HTML body.
type Email struct {
	Subject string
	Body    string
}

// Renderer builds the email for one item.
type Renderer interface {
	Render(f Fields) (Email, error)
}

// Templates renders the subject with text/template and the body with
// html/template, both with the sprig function set.
type Templates struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

// NewTemplates parses the subject and body templates.
func NewTemplates(subject, body string) (*Templates, error) {
	s, err := parseSubject(subject)
	if err != nil {
		return nil, err
	}

	b, err := htmltemplate.New("body").Funcs(sprig.HtmlFuncMap()).Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing body template: %w", err)
	}

	return &Templates{subject: s, body: b}, nil
}

// LoadTemplates reads the body template from bodyPath, or uses the
// built-in body when bodyPath is empty.
func LoadTemplates(subject, bodyPath string) (*Templates, error) {
	body := defaultBody
	if bodyPath != "" {
		data, err := os.ReadFile(bodyPath)
		if err != nil {
			return nil, fmt.Errorf("reading body template: %w", err)
		}
		body = string(data)
	}
	return NewTemplates(subject, body)
}

// Render executes both templates with f.
func (t *Templates) Render(f Fields) (Email, error) {
	subject, err := execSubject(t.subject, f)
	if err != nil {
		return Email{}, err
	}

	var buf bytes.Buffer
	if err := t.body.Execute(&buf, f); err != nil {
		return Email{}, fmt.Errorf("rendering body: %w", err)
	}

	return Email{Subject: subject, Body: buf.String()}, nil
}

// legacyFields maps the single-brace placeholders of older config files to
// template actions.
var legacyFields = map[string]string{
	"nome_cliente": "{{.ClientName}}",
	"cod_cliente":  "{{.ClientID}}",
}

var legacyPlaceholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// translateLegacySubject rewrites a subject written with {nome_cliente} and
// {cod_cliente} placeholders. Subjects already using template actions are
// returned as is. Any other single-brace placeholder is an error.
func translateLegacySubject(subject string) (string, error) {
	if strings.Contains(subject, "{{") {
		return subject, nil
	}

	var unknown []string
	out := legacyPlaceholder.ReplaceAllStringFunc(subject, func(m string) string {
		name := m[1 : len(m)-1]
		if action, ok := legacyFields[name]; ok {
			return action
		}
		unknown = append(unknown, m)
		return m
	})
	if len(unknown) > 0 {
		return "", fmt.Errorf("parsing subject template: unknown placeholder %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

func parseSubject(subject string) (*texttemplate.Template, error) {
	if subject == "" {
		subject = model.DefaultSubjectTemplate
	}
	subject, err := translateLegacySubject(subject)
	if err != nil {
		return nil, err
	}
	s, err := texttemplate.New("subject").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parsing subject template: %w", err)
	}
	return s, nil
}

func execSubject(t *texttemplate.Template, f Fields) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, f); err != nil {
		return "", fmt.Errorf("rendering subject: %w", err)
	}
	return buf.String(), nil
}
