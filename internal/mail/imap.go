package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/audit-mailer/internal/model"
)

// IMAPClient wraps go-imap v2 for the sent-items search and for storing
// drafts. One authenticated session is reused across calls and re-opened
// after a failure.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool

	client *imapclient.Client
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authentication failed for %s: %w", c.username, err)
	}

	return client, nil
}

// session returns the shared client, connecting on first use.
func (c *IMAPClient) session(ctx context.Context) (*imapclient.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// drop discards the shared client after an error so the next call
// reconnects.
func (c *IMAPClient) drop() {
	if c.client == nil {
		return
	}
	_ = c.client.Close()
	c.client = nil
}

// Close logs out of the shared session.
func (c *IMAPClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout().Wait()
	_ = c.client.Close()
	c.client = nil
	return err
}

// Append stores raw as a new message in mailbox with the given flags.
func (c *IMAPClient) Append(
	ctx context.Context, mailbox string, raw []byte, flags []imap.Flag,
) error {
	client, err := c.session(ctx)
	if err != nil {
		return err
	}

	cmd := client.Append(mailbox, int64(len(raw)), &imap.AppendOptions{
		Flags: flags,
		Time:  time.Now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		c.drop()
		return fmt.Errorf("writing message to %s: %w", mailbox, err)
	}
	if err := cmd.Close(); err != nil {
		c.drop()
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", mailbox, err)
	}

	return nil
}

// SearchSent scans the newest q.MaxItems messages of mailbox for the one
// whose subject equals q.Subject and whose body contains q.Token. Envelopes
// are fetched for the whole window first; bodies are fetched only for
// subject matches, newest first, until the token is found.
func (c *IMAPClient) SearchSent(
	ctx context.Context, mailbox string, q SearchQuery,
) (model.Identifiers, error) {
	client, err := c.session(ctx)
	if err != nil {
		return model.Identifiers{}, err
	}

	selected, err := client.Select(mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		c.drop()
		return model.Identifiers{}, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return model.Identifiers{}, fmt.Errorf("searching %s: %w", mailbox, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return model.Identifiers{}, nil
	}

	// Take the most recent UIDs.
	if q.MaxItems > 0 && len(uids) > q.MaxItems {
		uids = uids[len(uids)-q.MaxItems:]
	}

	window, err := fetchEnvelopes(client, uids)
	if err != nil {
		return model.Identifiers{}, fmt.Errorf("fetching %s envelopes: %w", mailbox, err)
	}

	match, err := FirstMatch(window, q, func(uid uint32) (*ParsedMessage, error) {
		return fetchMessage(client, uid)
	})
	if err != nil {
		return model.Identifiers{}, err
	}
	if match == nil {
		return model.Identifiers{}, nil
	}

	return identifiersFor(mailbox, selected.UIDValidity, match), nil
}

// fetchEnvelopes returns the envelopes for uids, newest first.
func fetchEnvelopes(
	client *imapclient.Client, uids []imap.UID,
) ([]Envelope, error) {
	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var envelopes []Envelope
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		envelopes = append(envelopes, envelopeFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, err
	}

	sort.Slice(envelopes, func(i, j int) bool {
		return envelopes[i].UID > envelopes[j].UID
	})

	return envelopes, nil
}

// fetchMessage fetches and parses the full message for uid from the
// currently selected mailbox.
func fetchMessage(
	client *imapclient.Client, uid uint32,
) (*ParsedMessage, error) {
	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}

	parsed := &ParsedMessage{
		Envelope: envelopeFromBuffer(buf),
	}
	if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
		parseMessage(rawBody, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return parsed, fmt.Errorf("closing fetch: %w", err)
	}

	return parsed, nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
	}

	return env
}

// parseMessage parses a raw RFC 5322 message using go-message and fills in
// the text and HTML bodies and the threading headers. Attachments are
// skipped unread.
func parseMessage(raw []byte, parsed *ParsedMessage) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, treat the whole thing as plain text
		parsed.TextBody = string(raw)
		return
	}
	defer mr.Close()

	parsed.ThreadIndex = strings.TrimSpace(mr.Header.Get("Thread-Index"))
	if refs, err := mr.Header.MsgIDList("References"); err == nil {
		parsed.References = refs
	}
	if parsed.Envelope.MessageID == "" {
		if id, err := mr.Header.MessageID(); err == nil {
			parsed.Envelope.MessageID = id
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			parsed.TextBody = string(body)
		case strings.HasPrefix(contentType, "text/html"):
			parsed.HTMLBody = string(body)
		}
	}
}
