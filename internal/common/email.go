package common

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender delivers transactional mail. Implementations must be safe for
// concurrent use.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is a single captured email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Outbox records messages instead of delivering them, for tests.
type Outbox struct {
	mu       sync.Mutex
	Messages []Message
}

// Send records the message.
func (o *Outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Messages = append(o.Messages, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of everything captured so far.
func (o *Outbox) Sent() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.Messages))
	copy(out, o.Messages)
	return out
}

// LogEmailSender writes mail to the log instead of an SMTP relay, for
// environments without outbound mail.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// Send logs the message and reports success.
func (s LogEmailSender) Send(_ context.Context, to, subject, _ string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Msg("email suppressed, no relay configured")
	return nil
}
