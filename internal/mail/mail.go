// Package mail sends transactional email through a configurable provider.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/cfp-accounts/internal/config"
)

// Message is one outgoing email with HTML and plain-text bodies.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Category string
}

// Sender delivers a Message.  Implementations must honour ctx deadlines.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the Sender selected by cfg.Provider.
func New(cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogSender(logger), nil
	case "mailtrap":
		if cfg.MailtrapURL == "" || cfg.MailtrapAPIKey == "" {
			return nil, fmt.Errorf("mailtrap: MAILTRAP_API_URL and MAILTRAP_API_KEY are required")
		}
		return NewMailtrapSender(cfg.MailtrapURL, cfg.MailtrapAPIKey, cfg.From, cfg.FromName), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("smtp: SMTP_HOST is required")
		}
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.From, cfg.FromName), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.Provider)
	}
}

// LogSender writes messages to the log instead of sending them.  Used in
// development.
type LogSender struct{ logger *slog.Logger }

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail (log provider)", "to", msg.To, "subject", msg.Subject, "category", msg.Category, "text", msg.Text)
	return nil
}
