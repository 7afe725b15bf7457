package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iliyamo/cfp-accounts/internal/mail"
	"github.com/iliyamo/cfp-accounts/internal/reporting"
)

// Inline renders and sends events in the calling goroutine.
type Inline struct {
	Sender   mail.Sender
	Logger   *slog.Logger
	Reporter *reporting.Reporter
}

// Deliver sends the email for ev and returns the delivery error, if any.
// It is also the handler used by the RabbitMQ consumer.
func (d *Inline) Deliver(ctx context.Context, ev AccountEvent) error {
	msg, err := Render(ev)
	if err != nil {
		return err
	}
	if err := d.Sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s to account %d: %w", ev.Kind, ev.AccountID, err)
	}
	d.Logger.Info("mail sent", "kind", ev.Kind, "account_id", ev.AccountID)
	return nil
}

// Dispatch delivers ev and logs any failure.
func (d *Inline) Dispatch(ctx context.Context, ev AccountEvent) error {
	err := d.Deliver(ctx, ev)
	if err != nil {
		d.Logger.Warn("mail delivery failed", "kind", ev.Kind, "account_id", ev.AccountID, "error", err)
		d.Reporter.Capture(err, map[string]string{"component": "mail", "event": string(ev.Kind)})
	}
	return err
}

// Broker publishes events to RabbitMQ and falls back to inline delivery
// when the broker is unreachable.
type Broker struct {
	Publisher *Publisher
	Fallback  *Inline
	Logger    *slog.Logger
}

func (b *Broker) Dispatch(ctx context.Context, ev AccountEvent) error {
	if err := b.Publisher.Publish(ctx, ev); err != nil {
		b.Logger.Warn("event publish failed, sending inline", "kind", ev.Kind, "account_id", ev.AccountID, "error", err)
		return b.Fallback.Dispatch(ctx, ev)
	}
	return nil
}
