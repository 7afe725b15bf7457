// Package queue carries account side-effect events from the request path to
// the mail sender, either directly or through RabbitMQ.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/cfp-accounts/internal/mail"
)

// EventKind names an account side effect that results in an email.
type EventKind string

const (
	EventVerificationCode EventKind = "account.verification_code"
	EventTrainerValidated EventKind = "account.trainer_validated"
	EventLearnerValidated EventKind = "account.learner_validated"
)

// AccountEvent is published when an account transition needs an email.  It
// holds everything the mail worker needs without reading the database.
type AccountEvent struct {
	Kind         EventKind `json:"kind"`
	AccountID    uint64    `json:"account_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Code         string    `json:"code,omitempty"`
	AdminMessage string    `json:"admin_message,omitempty"`
	ValidMinutes int       `json:"valid_minutes,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Render builds the email for an event.
func Render(ev AccountEvent) (mail.Message, error) {
	switch ev.Kind {
	case EventVerificationCode:
		return mail.VerificationCodeMessage(ev.Email, ev.Name, ev.Code, ev.ValidMinutes), nil
	case EventTrainerValidated:
		return mail.TrainerValidatedMessage(ev.Email, ev.Name, ev.Code, ev.AdminMessage), nil
	case EventLearnerValidated:
		return mail.LearnerValidatedMessage(ev.Email, ev.Name), nil
	}
	return mail.Message{}, fmt.Errorf("unknown event kind %q", ev.Kind)
}
