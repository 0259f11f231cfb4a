// Package mail delivers rendered email over SMTP, through an AMQP queue
// drained by the mail worker, or to the log for local development.
package mail

import (
	"context"
	"log/slog"

	"github.com/msomdec/quill/internal/domain"
)

// LogMailer writes messages to a logger instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a LogMailer. A nil logger uses slog.Default().
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg domain.Email) error {
	m.logger.InfoContext(ctx, "email",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.TextBody,
	)
	return nil
}
