package mail

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	memUser     = "audit"
	memPassword = "secret"
)

// newMemIMAPClient starts an in-memory IMAP server holding Sent (UIDVALIDITY
// 1) and Drafts, and returns an IMAPClient logged in to it.
func newMemIMAPClient(t *testing.T) *IMAPClient {
	t.Helper()

	memServer := imapmemserver.New()
	user := imapmemserver.NewUser(memUser, memPassword)
	require.NoError(t, user.Create("Sent", nil))
	require.NoError(t, user.Create("Drafts", nil))
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		InsecureAuth: true,
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	client, err := imapclient.DialInsecure(ln.Addr().String(), nil)
	require.NoError(t, err)
	require.NoError(t, client.Login(memUser, memPassword).Wait())

	c := NewIMAPClient("127.0.0.1", "0", memUser, memPassword, false)
	c.client = client
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func numberedToken(i int) string {
	return fmt.Sprintf("#audit_token:123_20261014093015.123456_%04d", i)
}

// sendNumbered transmits n audit messages through a transport that copies
// each one to Sent, carrying tokens _0000 to _(n-1).
func sendNumbered(t *testing.T, tr *Transport, subject string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		msg := auditMessage()
		msg.Subject = subject
		msg.Body = "<html><body><p>Olá, segue a análise de alocação.</p><p>" + numberedToken(i) + "</p></body></html>"
		require.NoError(t, tr.Send(context.Background(), msg))
	}
}

func TestIMAPClient_SearchSent(t *testing.T) {
	const subject = "Análise de Alocação em Operações Estruturadas – Cliente Maria – 123"
	c := newMemIMAPClient(t)
	tr := newTestTransport(&fakeSender{}, c, true)
	sendNumbered(t, tr, subject, 5)

	tests := []struct {
		name      string
		query     SearchQuery
		wantEntry string
	}{
		{"found in window", SearchQuery{Subject: subject, Token: numberedToken(3), MaxItems: 10}, "Sent:1:4"},
		{"newest message", SearchQuery{Subject: subject, Token: numberedToken(4), MaxItems: 1}, "Sent:1:5"},
		{"older than window", SearchQuery{Subject: subject, Token: numberedToken(0), MaxItems: 2}, ""},
		{"subject differs", SearchQuery{Subject: "Audit 123", Token: numberedToken(3), MaxItems: 10}, ""},
		{"unknown token", SearchQuery{Subject: subject, Token: numberedToken(9), MaxItems: 10}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := tr.SearchSent(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEntry, ids.EntryID)
			if tt.wantEntry == "" {
				assert.Empty(t, ids.InternetMessageID)
				return
			}
			assert.Regexp(t, `^<.+@example\.com>$`, ids.InternetMessageID)
			assert.Equal(t, ids.InternetMessageID, ids.ConversationID)
		})
	}
}

func TestIMAPClient_SearchSentPrefersNewest(t *testing.T) {
	const subject = "Audit 123"
	c := newMemIMAPClient(t)
	tr := newTestTransport(&fakeSender{}, c, true)
	sendNumbered(t, tr, subject, 2)
	sendNumbered(t, tr, subject, 2)

	ids, err := tr.SearchSent(context.Background(), SearchQuery{Subject: subject, Token: numberedToken(1), MaxItems: 10})
	require.NoError(t, err)
	assert.Equal(t, "Sent:1:4", ids.EntryID)
}

func TestIMAPClient_SearchSentEmptyMailbox(t *testing.T) {
	c := newMemIMAPClient(t)

	ids, err := c.SearchSent(context.Background(), "Sent", SearchQuery{Subject: "Audit 123", Token: tok, MaxItems: 10})
	require.NoError(t, err)
	assert.Empty(t, ids.EntryID)
}

func TestIMAPClient_DisplayOnlyLandsInDrafts(t *testing.T) {
	c := newMemIMAPClient(t)
	sender := &fakeSender{}
	tr := newTestTransport(sender, c, true)

	msg := auditMessage()
	msg.DisplayOnly = true
	require.NoError(t, tr.Send(context.Background(), msg))
	assert.Empty(t, sender.sent)

	q := SearchQuery{Subject: msg.Subject, Token: tok, MaxItems: 10}
	drafts, err := c.SearchSent(context.Background(), "Drafts", q)
	require.NoError(t, err)
	assert.Equal(t, "Drafts:2:1", drafts.EntryID)

	sent, err := c.SearchSent(context.Background(), "Sent", q)
	require.NoError(t, err)
	assert.Empty(t, sent.EntryID, "drafts are not copied to Sent")
}
