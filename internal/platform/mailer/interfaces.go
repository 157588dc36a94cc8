package mailer

import "context"

// Message is a single-recipient email.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
	Inline  []Inline
}

// Inline is an attachment referenced from the HTML body as cid:<ContentID>.
type Inline struct {
	ContentID   string
	Filename    string
	ContentType string
	Data        []byte
}

// Transport delivers a message and returns the provider message id, if any.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
	Enabled() bool
}
