package mailer

import "context"

// Recipient is a named email address.
type Recipient struct {
	Name  string
	Email string
}

// Message is a rendered outbound email.
type Message struct {
	To       []Recipient
	Subject  string
	TextBody string
	HTMLBody string
}

// HasRecipients reports whether the message can be delivered at all.
func (m *Message) HasRecipients() bool {
	return len(m.To) > 0
}

// Mailer delivers a single message synchronously. Asynchronous, best-effort
// dispatch is the caller's concern (see the notification service).
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
