// Package service implements the account workflow: registration, admin
// validation with trainer access codes, email verification and login.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/cfp-accounts/internal/config"
	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/reporting"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// AccountStore is the persistence the workflow needs.  *repository.AccountRepo
// implements it.
type AccountStore interface {
	Create(ctx context.Context, na model.NewAccount, now time.Time) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByGoogleID(ctx context.Context, googleID string) (model.Account, error)
	List(ctx context.Context, f repository.ListFilter) ([]model.Account, error)
	UpdateCredential(ctx context.Context, id uint64, hash string, now time.Time) error
	SetStatus(ctx context.Context, id uint64, st model.Status, now time.Time) error
	SetRole(ctx context.Context, id uint64, role model.Role, now time.Time) error
	UpdateProfile(ctx context.Context, id uint64, p model.Profile, now time.Time) error
	MarkValidated(ctx context.Context, id uint64, forceVerified bool, accessCode *string, now time.Time) error
	SetVerificationCode(ctx context.Context, id uint64, code string, expires, now time.Time) error
	MarkVerified(ctx context.Context, id uint64, now time.Time) error
	LinkGoogle(ctx context.Context, id uint64, googleID string, access, refresh *string, now time.Time) error
}

// NotificationSink records in-app notifications.
type NotificationSink interface {
	Create(ctx context.Context, n model.NewNotification, now time.Time) (model.Notification, error)
}

// Dispatcher hands an email event to the mail pipeline.  Errors are
// advisory.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev queue.AccountEvent) error
}

// Options tunes the workflow.  Zero values fall back to defaults.
type Options struct {
	BcryptCost          int
	PasswordMinLength   int
	SessionTTL          time.Duration
	OAuthSessionTTL     time.Duration
	ChallengeTTL        time.Duration
	VerificationCodeTTL time.Duration
	StrictLogin         bool
	Now                 func() time.Time
}

// OptionsFromConfig maps runtime configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		BcryptCost:          cfg.BcryptCost,
		PasswordMinLength:   cfg.PasswordMinLength,
		SessionTTL:          cfg.SessionTTL,
		OAuthSessionTTL:     cfg.OAuthSessionTTL,
		ChallengeTTL:        cfg.ChallengeTTL,
		VerificationCodeTTL: cfg.VerificationCodeTTL,
		StrictLogin:         cfg.LoginPolicy == config.LoginPolicyStrict,
	}
}

func (o *Options) defaults() {
	if o.BcryptCost == 0 {
		o.BcryptCost = 10
	}
	if o.PasswordMinLength <= 0 {
		o.PasswordMinLength = 6
	}
	if o.SessionTTL == 0 {
		o.SessionTTL = 24 * time.Hour
	}
	if o.OAuthSessionTTL == 0 {
		o.OAuthSessionTTL = 30 * 24 * time.Hour
	}
	if o.ChallengeTTL == 0 {
		o.ChallengeTTL = 5 * time.Minute
	}
	if o.VerificationCodeTTL == 0 {
		o.VerificationCodeTTL = 30 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// AccountService runs the account state machine.  Side effects
// (notifications, email) never fail a transition once it is persisted.
type AccountService struct {
	accounts AccountStore
	notes    NotificationSink
	mail     Dispatcher
	tokens   *utils.Signer
	opts     Options
	logger   *slog.Logger
	reporter *reporting.Reporter
}

func NewAccountService(accounts AccountStore, notes NotificationSink, mail Dispatcher, tokens *utils.Signer,
	opts Options, logger *slog.Logger, reporter *reporting.Reporter) *AccountService {
	opts.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts: accounts,
		notes:    notes,
		mail:     mail,
		tokens:   tokens,
		opts:     opts,
		logger:   logger,
		reporter: reporter,
	}
}

func (s *AccountService) now() time.Time { return s.opts.Now().UTC() }

// notify creates a notification and swallows failures.
func (s *AccountService) notify(ctx context.Context, n model.NewNotification) {
	if _, err := s.notes.Create(ctx, n, s.now()); err != nil {
		s.logger.Warn("notification insert failed", "kind", n.Kind, "error", err)
		s.reporter.Capture(err, map[string]string{"component": "notification", "kind": string(n.Kind)})
	}
}

// dispatch hands ev to the mail pipeline and reports whether it was
// accepted.  Failures are already logged by the dispatcher.
func (s *AccountService) dispatch(ctx context.Context, ev queue.AccountEvent) bool {
	ev.OccurredAt = s.now()
	return s.mail.Dispatch(ctx, ev) == nil
}

func (s *AccountService) hash(plain string) (string, error) {
	return utils.HashPassword(plain, s.opts.BcryptCost)
}
