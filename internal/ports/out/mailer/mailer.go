package mailer

import "context"

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	// HTMLBody is sent as text/html.
	HTMLBody string
}

// Sender delivers a single message. Failures are described by the error text only;
// callers must not branch on concrete error types.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
