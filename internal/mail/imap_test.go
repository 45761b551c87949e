package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The token has to survive MIME encoding on the way out and decoding on
// the way back in for the sent-items search to find it.
func TestParseMessage_RoundTripsComposedMessage(t *testing.T) {
	tr := newTestTransport(&fakeSender{}, nil, false)
	msg := auditMessage()
	msg.Body = "<html><body><p>Olá, análise de alocação</p><p>" + tok + "</p></body></html>"

	raw, err := render(tr.compose(msg))
	require.NoError(t, err)

	parsed := &ParsedMessage{}
	parseMessage(raw, parsed)

	assert.Contains(t, parsed.HTMLBody, tok)
	assert.Contains(t, parsed.HTMLBody, "análise")
	assert.Regexp(t, `@example\.com$`, parsed.Envelope.MessageID)
}

func TestParseMessage_ThreadingHeaders(t *testing.T) {
	raw := "Message-ID: <child@x>\r\n" +
		"References: <root@x> <mid@x>\r\n" +
		"Thread-Index: AdQ1abc=\r\n" +
		"Subject: Audit 123\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"body " + tok + "\r\n"

	parsed := &ParsedMessage{}
	parseMessage([]byte(raw), parsed)

	assert.Equal(t, "AdQ1abc=", parsed.ThreadIndex)
	assert.Equal(t, []string{"root@x", "mid@x"}, parsed.References)
	assert.Equal(t, "child@x", parsed.Envelope.MessageID)
	assert.Contains(t, parsed.TextBody, tok)
}

func TestNewIMAPClient_CloseWithoutSession(t *testing.T) {
	c := NewIMAPClient("imap.example.com", "993", "user", "pass", true)
	assert.NoError(t, c.Close())
}
