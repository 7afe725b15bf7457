package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// GoogleIdentity is the verified identity returned by Google's userinfo
// endpoint plus the tokens from the code exchange.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	AccessToken   string
	RefreshToken  string
}

// OAuthLogin signs in with a Google identity.  The account is found by
// Google subject, then by email; otherwise a pending learner is created.
// Trainers still have to present their access code.
func (s *AccountService) OAuthLogin(ctx context.Context, id GoogleIdentity) (LoginResult, error) {
	if id.Subject == "" {
		return LoginResult{}, invalid("google", "missing_subject")
	}
	email := strings.TrimSpace(id.Email)
	if email == "" || !id.EmailVerified {
		return LoginResult{}, invalid("email", "email_unverified")
	}

	acct, err := s.findGoogleAccount(ctx, id.Subject, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		acct, err = s.createGoogleAccount(ctx, id, email)
		if err != nil {
			return LoginResult{}, err
		}
	case err != nil:
		return LoginResult{}, fmt.Errorf("lookup google account: %w", err)
	default:
		if acct.GoogleID != nil && *acct.GoogleID != id.Subject {
			return LoginResult{}, ErrInvalidCredentials
		}
		access, refresh := optional(id.AccessToken), optional(id.RefreshToken)
		if err := s.accounts.LinkGoogle(ctx, acct.ID, id.Subject, access, refresh, s.now()); err != nil {
			if errors.Is(err, repository.ErrForbidden) {
				return LoginResult{}, ErrInvalidCredentials
			}
			return LoginResult{}, fmt.Errorf("link google identity: %w", err)
		}
		acct.GoogleID = &id.Subject
	}

	return s.finishLogin(acct, "", methodGoogle)
}

func (s *AccountService) findGoogleAccount(ctx context.Context, subject, email string) (model.Account, error) {
	acct, err := s.accounts.GetByGoogleID(ctx, subject)
	if err == nil || !errors.Is(err, repository.ErrNotFound) {
		return acct, err
	}
	return s.accounts.GetByEmail(ctx, email)
}

// createGoogleAccount registers a learner whose password is random and
// never disclosed; the account can only sign in through Google until a
// password is set.
func (s *AccountService) createGoogleAccount(ctx context.Context, id GoogleIdentity, email string) (model.Account, error) {
	secret, err := utils.RandomHex(32)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: random password: %v", ErrRegistrationFailed, err)
	}
	hash, err := s.hash(secret)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: hash password: %v", ErrRegistrationFailed, err)
	}
	subject := id.Subject
	acct, err := s.accounts.Create(ctx, model.NewAccount{
		Email:              email,
		PasswordHash:       hash,
		Role:               model.RoleLearner,
		Status:             model.InitialStatus(model.RoleLearner),
		FirstName:          strings.TrimSpace(id.GivenName),
		LastName:           strings.TrimSpace(id.FamilyName),
		Verified:           true,
		GoogleID:           &subject,
		GoogleAccessToken:  optional(id.AccessToken),
		GoogleRefreshToken: optional(id.RefreshToken),
	}, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Account{}, ErrDuplicateEmail
		}
		return model.Account{}, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	s.logger.Info("account registered via google", "account_id", acct.ID)
	s.notify(ctx, model.NewNotification{
		Message: fmt.Sprintf("Nouvel apprenant inscrit via Google : %s", displayName(acct)),
		Kind:    model.KindRegistration,
		Link:    fmt.Sprintf("/admin/apprenants/%d", acct.ID),
		Icon:    "user-plus",
	})
	return acct, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
