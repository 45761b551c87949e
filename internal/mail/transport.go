package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/nhle/audit-mailer/internal/model"
)

// Transport operations reported in TransportError.
const (
	OpSend   = "send"
	OpDraft  = "draft"
	OpSearch = "search"
)

// TransportError wraps any failure talking to the mail servers.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// ErrNoMailbox is returned for operations that need IMAP when none is
// configured.
var ErrNoMailbox = errors.New("no IMAP mailbox configured")

// Sender transmits composed messages.
type Sender interface {
	Send(ctx context.Context, msg *gomail.Message) error
	Close() error
}

// Mailbox stores and searches messages on the IMAP side.
type Mailbox interface {
	Append(ctx context.Context, mailbox string, raw []byte, flags []imap.Flag) error
	SearchSent(ctx context.Context, mailbox string, q SearchQuery) (model.Identifiers, error)
	Close() error
}

// TransportOptions configures a Transport.
type TransportOptions struct {
	FromAddress   string
	FromName      string
	SentMailbox   string
	DraftsMailbox string

	// AppendToSent stores a copy of transmitted messages in SentMailbox.
	AppendToSent bool
}

// Transport is the single mail session shared by a run: SMTP for sending,
// IMAP for drafts and the sent-items search.
type Transport struct {
	sender  Sender
	mailbox Mailbox
	opts    TransportOptions
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewTransport combines a sender and an optional mailbox. mailbox may be
// nil, in which case display-only sends fail and searches find nothing.
func NewTransport(sender Sender, mailbox Mailbox, opts TransportOptions, logger *zap.SugaredLogger) *Transport {
	if opts.SentMailbox == "" {
		opts.SentMailbox = "Sent"
	}
	if opts.DraftsMailbox == "" {
		opts.DraftsMailbox = "Drafts"
	}
	return &Transport{
		sender:  sender,
		mailbox: mailbox,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Send transmits msg, or saves it as a draft when msg.DisplayOnly is set.
// Once the SMTP server has accepted the message Send reports success even
// if the copy to the sent mailbox fails.
func (t *Transport) Send(ctx context.Context, msg Message) error {
	m := t.compose(msg)

	if msg.DisplayOnly {
		if t.mailbox == nil {
			return &TransportError{Op: OpDraft, Err: ErrNoMailbox}
		}
		raw, err := render(m)
		if err != nil {
			return &TransportError{Op: OpDraft, Err: err}
		}
		if err := t.mailbox.Append(ctx, t.opts.DraftsMailbox, raw, []imap.Flag{imap.FlagDraft}); err != nil {
			return &TransportError{Op: OpDraft, Err: err}
		}
		t.logger.Debugw("Saved message as draft", "mailbox", t.opts.DraftsMailbox, "subject", msg.Subject)
		return nil
	}

	if err := t.sender.Send(ctx, m); err != nil {
		return &TransportError{Op: OpSend, Err: err}
	}

	if t.opts.AppendToSent && t.mailbox != nil {
		raw, err := render(m)
		if err == nil {
			err = t.mailbox.Append(ctx, t.opts.SentMailbox, raw, []imap.Flag{imap.FlagSeen})
		}
		if err != nil {
			t.logger.Warnw("Message sent but copy to sent mailbox failed",
				"mailbox", t.opts.SentMailbox, "subject", msg.Subject, "error", err)
		}
	}

	return nil
}

// SearchSent looks for the message matching q in the sent mailbox. Not
// finding it is not an error.
func (t *Transport) SearchSent(ctx context.Context, q SearchQuery) (model.Identifiers, error) {
	if t.mailbox == nil {
		return model.Identifiers{}, nil
	}
	ids, err := t.mailbox.SearchSent(ctx, t.opts.SentMailbox, q)
	if err != nil {
		return model.Identifiers{}, &TransportError{Op: OpSearch, Err: err}
	}
	return ids, nil
}

// Close ends both sessions.
func (t *Transport) Close() error {
	var errs []error
	if t.sender != nil {
		errs = append(errs, t.sender.Close())
	}
	if t.mailbox != nil {
		errs = append(errs, t.mailbox.Close())
	}
	return errors.Join(errs...)
}

// compose builds the MIME message. A locally generated Message-ID keeps the
// transmitted copy and the sent-mailbox copy identical.
func (t *Transport) compose(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	if t.opts.FromName != "" {
		m.SetAddressHeader("From", t.opts.FromAddress, t.opts.FromName)
	} else {
		m.SetHeader("From", t.opts.FromAddress)
	}
	m.SetHeader("To", msg.To)
	if msg.Cc != "" {
		m.SetHeader("Cc", msg.Cc)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", newMessageID(t.opts.FromAddress))
	m.SetDateHeader("Date", t.now())

	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}
	m.SetBody(contentType, msg.Body)
	return m
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

func render(m *gomail.Message) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("rendering message: %w", err)
	}
	return buf.Bytes(), nil
}
