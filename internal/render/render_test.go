package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/audit-mailer/internal/model"
)

const tok = "#audit_token:123_20261014093015.123456_0001"

func sampleFields() Fields {
	item := model.DispatchItem{
		ClientID:      "123",
		ClientName:    "Maria & Filhos",
		Structure:     "Collar",
		Asset:         "PETR4",
		AllocationPct: "12.5",
	}
	return NewFields(item, model.Recipient{Name: "Ana"}, tok)
}

func TestTemplates_DefaultBody(t *testing.T) {
	r, err := LoadTemplates("", "")
	require.NoError(t, err)

	email, err := r.Render(sampleFields())
	require.NoError(t, err)

	assert.Equal(t, "Análise de Alocação em Operações Estruturadas – Cliente Maria & Filhos – 123", email.Subject)
	assert.Contains(t, email.Body, tok)
	assert.Contains(t, email.Body, "Olá, Ana,")
	assert.Contains(t, email.Body, "Maria &amp; Filhos")
	assert.Contains(t, email.Body, "PETR4")
}

func TestTemplates_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.html")
	require.NoError(t, os.WriteFile(path, []byte(`<p>{{ .ClientID }} {{ .Asset | lower }}</p><p>{{ .Token }}</p>`), 0o600))

	r, err := LoadTemplates("Audit {{.ClientID}}", path)
	require.NoError(t, err)

	email, err := r.Render(sampleFields())
	require.NoError(t, err)
	assert.Equal(t, "Audit 123", email.Subject)
	assert.Equal(t, "<p>123 petr4</p><p>"+tok+"</p>", email.Body)
}

func TestTemplates_Errors(t *testing.T) {
	_, err := LoadTemplates("", filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	_, err = NewTemplates("{{ .ClientID", "<p></p>")
	assert.Error(t, err)

	_, err = NewTemplates("", "{{ if }}")
	assert.Error(t, err)

	r, err := NewTemplates("{{ .Unknown }}", "<p></p>")
	require.NoError(t, err)
	_, err = r.Render(sampleFields())
	assert.Error(t, err)
}

func TestInlineBody(t *testing.T) {
	r, err := NewInlineBody("Audit {{.ClientName}}")
	require.NoError(t, err)

	email, err := r.Render(sampleFields())
	require.NoError(t, err)
	assert.Equal(t, "Audit Maria & Filhos", email.Subject)
	assert.Contains(t, email.Body, "Maria &amp; Filhos (123)")
	assert.Contains(t, email.Body, tok)
	assert.Contains(t, email.Body, "% PL: 12.5")
}

func TestRenderersImplementInterface(t *testing.T) {
	var _ Renderer = (*Templates)(nil)
	var _ Renderer = (*InlineBody)(nil)
}

func TestTemplates_LegacySubjectPlaceholders(t *testing.T) {
	r, err := NewTemplates("Análise de Alocação em Operações Estruturadas – Cliente {nome_cliente} – {cod_cliente}", "<p></p>")
	require.NoError(t, err)

	email, err := r.Render(sampleFields())
	require.NoError(t, err)
	assert.Equal(t, "Análise de Alocação em Operações Estruturadas – Cliente Maria & Filhos – 123", email.Subject)

	inline, err := NewInlineBody("Audit {cod_cliente}")
	require.NoError(t, err)
	email, err = inline.Render(sampleFields())
	require.NoError(t, err)
	assert.Equal(t, "Audit 123", email.Subject)
}

func TestTemplates_UnknownLegacyPlaceholder(t *testing.T) {
	_, err := NewTemplates("Audit {codigo}", "<p></p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{codigo}")

	_, err = NewInlineBody("Audit {nome_cliente} {estrutura}")
	assert.Error(t, err)
}

func TestTemplates_ActionSubjectKeepsSingleBraces(t *testing.T) {
	r, err := NewTemplates("{x} {{.ClientID}}", "<p></p>")
	require.NoError(t, err)

	email, err := r.Render(sampleFields())
	require.NoError(t, err)
	assert.Equal(t, "{x} 123", email.Subject)
}
