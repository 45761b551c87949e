package mail

import (
	"fmt"
	"strings"

	"github.com/nhle/audit-mailer/internal/model"
)

// BodyLoader fetches the full message for a UID.
type BodyLoader func(uid uint32) (*ParsedMessage, error)

// FirstMatch walks window, which must be ordered newest first, and returns
// the first message whose subject equals q.Subject exactly and whose body
// contains q.Token. At most q.MaxItems envelopes are considered. It returns
// nil when nothing in the window matches.
func FirstMatch(window []Envelope, q SearchQuery, load BodyLoader) (*ParsedMessage, error) {
	if q.MaxItems > 0 && len(window) > q.MaxItems {
		window = window[:q.MaxItems]
	}

	for _, env := range window {
		if env.Subject != q.Subject {
			continue
		}

		msg, err := load(env.UID)
		if err != nil {
			return nil, fmt.Errorf("loading message UID %d: %w", env.UID, err)
		}
		if containsToken(msg, q.Token) {
			return msg, nil
		}
	}

	return nil, nil
}

func containsToken(msg *ParsedMessage, token string) bool {
	if token == "" {
		return false
	}
	return strings.Contains(msg.HTMLBody, token) || strings.Contains(msg.TextBody, token)
}

// identifiersFor maps a found message to the ids written to the audit
// record. The conversation id prefers the Thread-Index header, then the
// thread root from References, then the message's own id since a fresh
// message starts its own conversation.
func identifiersFor(mailbox string, uidValidity uint32, msg *ParsedMessage) model.Identifiers {
	ids := model.Identifiers{
		InternetMessageID: formatMessageID(msg.Envelope.MessageID),
	}

	switch {
	case msg.ThreadIndex != "":
		ids.ConversationID = msg.ThreadIndex
	case len(msg.References) > 0:
		ids.ConversationID = formatMessageID(msg.References[0])
	default:
		ids.ConversationID = ids.InternetMessageID
	}

	if msg.Envelope.UID != 0 {
		ids.EntryID = fmt.Sprintf("%s:%d:%d", mailbox, uidValidity, msg.Envelope.UID)
	}

	return ids
}

// formatMessageID returns id wrapped in angle brackets, or "" for an empty
// id.
func formatMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	if id == "" {
		return ""
	}
	return "<" + id + ">"
}
