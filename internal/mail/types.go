package mail

// Envelope holds the envelope fields the sent-items search matches on.
type Envelope struct {
	MessageID string
	Subject   string
	UID       uint32
}

// ParsedMessage holds the full parsed content of an email message.
type ParsedMessage struct {
	Envelope Envelope
	TextBody string
	HTMLBody string

	// ThreadIndex is the Exchange/Outlook conversation header, if any.
	ThreadIndex string

	// References lists the message ids from the References header,
	// oldest first.
	References []string
}

// Message is an outgoing audit email.
type Message struct {
	To      string
	Cc      string
	Subject string
	Body    string

	// HTML marks Body as text/html rather than text/plain.
	HTML bool

	// DisplayOnly saves the message as a draft for a human to review and
	// send instead of transmitting it.
	DisplayOnly bool
}

// SearchQuery describes the sent message to look for.
type SearchQuery struct {
	// Subject must match the sent message's subject exactly.
	Subject string

	// Token must appear literally in the message body.
	Token string

	// MaxItems bounds how many of the most recent sent messages are
	// scanned.
	MaxItems int
}
