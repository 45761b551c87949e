package mail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tok = "#audit_token:123_20261014093015.123456_0001"

func loaderFrom(bodies map[uint32]*ParsedMessage, loaded *[]uint32) BodyLoader {
	return func(uid uint32) (*ParsedMessage, error) {
		*loaded = append(*loaded, uid)
		msg, ok := bodies[uid]
		if !ok {
			return nil, errors.New("no such message")
		}
		return msg, nil
	}
}

func TestFirstMatch(t *testing.T) {
	window := []Envelope{
		{UID: 30, Subject: "Other"},
		{UID: 20, Subject: "Audit 123"},
		{UID: 10, Subject: "Audit 123"},
	}
	bodies := map[uint32]*ParsedMessage{
		20: {Envelope: Envelope{UID: 20}, HTMLBody: "<p>" + tok + "</p>"},
		10: {Envelope: Envelope{UID: 10}, TextBody: tok},
	}

	var loaded []uint32
	msg, err := FirstMatch(window, SearchQuery{Subject: "Audit 123", Token: tok, MaxItems: 10}, loaderFrom(bodies, &loaded))
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, uint32(20), msg.Envelope.UID, "newest match wins")
	assert.Equal(t, []uint32{20}, loaded, "bodies are only loaded for subject matches")
}

func TestFirstMatch_SubjectMustBeExact(t *testing.T) {
	window := []Envelope{{UID: 1, Subject: "Re: Audit 123"}}
	var loaded []uint32

	msg, err := FirstMatch(window, SearchQuery{Subject: "Audit 123", Token: tok}, loaderFrom(nil, &loaded))
	require.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, loaded)
}

func TestFirstMatch_TokenMustBePresent(t *testing.T) {
	window := []Envelope{{UID: 1, Subject: "Audit 123"}}
	bodies := map[uint32]*ParsedMessage{1: {TextBody: "#audit_token:123_other"}}
	var loaded []uint32

	msg, err := FirstMatch(window, SearchQuery{Subject: "Audit 123", Token: tok}, loaderFrom(bodies, &loaded))
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestFirstMatch_RespectsMaxItems(t *testing.T) {
	window := []Envelope{
		{UID: 3, Subject: "x"},
		{UID: 2, Subject: "x"},
		{UID: 1, Subject: "Audit 123"},
	}
	bodies := map[uint32]*ParsedMessage{1: {TextBody: tok}}
	var loaded []uint32

	msg, err := FirstMatch(window, SearchQuery{Subject: "Audit 123", Token: tok, MaxItems: 2}, loaderFrom(bodies, &loaded))
	require.NoError(t, err)
	assert.Nil(t, msg, "match outside the scan window is ignored")
	assert.Empty(t, loaded)
}

func TestFirstMatch_LoaderError(t *testing.T) {
	window := []Envelope{{UID: 5, Subject: "Audit 123"}}
	var loaded []uint32

	_, err := FirstMatch(window, SearchQuery{Subject: "Audit 123", Token: tok}, loaderFrom(nil, &loaded))
	assert.Error(t, err)
}

func TestIdentifiersFor(t *testing.T) {
	tests := []struct {
		name string
		msg  ParsedMessage
		want string
	}{
		{
			name: "thread index wins",
			msg:  ParsedMessage{Envelope: Envelope{UID: 7, MessageID: "abc@x"}, ThreadIndex: "AdQ1", References: []string{"root@x"}},
			want: "AdQ1",
		},
		{
			name: "references root",
			msg:  ParsedMessage{Envelope: Envelope{UID: 7, MessageID: "abc@x"}, References: []string{"root@x", "mid@x"}},
			want: "<root@x>",
		},
		{
			name: "own message id",
			msg:  ParsedMessage{Envelope: Envelope{UID: 7, MessageID: "<abc@x>"}},
			want: "<abc@x>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := identifiersFor("Sent", 99, &tt.msg)
			assert.Equal(t, tt.want, ids.ConversationID)
			assert.Equal(t, "<abc@x>", ids.InternetMessageID)
			assert.Equal(t, "Sent:99:7", ids.EntryID)
		})
	}
}

func TestIdentifiersFor_Degraded(t *testing.T) {
	ids := identifiersFor("Sent", 1, &ParsedMessage{})
	assert.True(t, ids.Empty())
}
