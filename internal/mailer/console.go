package mailer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyconnect/studyconnect-api/pkg/config"
)

// ConsoleMailer writes messages to the log instead of sending them. It is the
// development and test backend; SentMessages lets tests assert deliveries.
type ConsoleMailer struct {
	from   Recipient
	logger *zap.Logger

	mu   sync.Mutex
	sent []Message
}

var _ Mailer = (*ConsoleMailer)(nil)

// NewConsoleMailer builds a console-backed mailer from config.
func NewConsoleMailer(cfg config.MailConfig, logger *zap.Logger) *ConsoleMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleMailer{
		from:   Recipient{Name: cfg.FromName, Email: cfg.FromAddress},
		logger: logger,
	}
}

// Send records the message and logs a summary.
func (m *ConsoleMailer) Send(_ context.Context, msg *Message) error {
	if !msg.HasRecipients() {
		return nil
	}

	m.mu.Lock()
	m.sent = append(m.sent, *msg)
	m.mu.Unlock()

	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, to.Email)
	}

	m.logger.Info("email",
		zap.String("from", m.from.Email),
		zap.String("to", strings.Join(recipients, ", ")),
		zap.String("subject", msg.Subject),
		zap.Time("at", time.Now().UTC()),
	)
	return nil
}

// SentMessages returns a copy of everything delivered so far.
func (m *ConsoleMailer) SentMessages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
