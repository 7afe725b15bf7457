package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// RegisterInput is a registration request.  Role is the raw client value.
type RegisterInput struct {
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
	Phone     string
}

// RegisterResult is the created account with a fresh session.
type RegisterResult struct {
	Account model.Account
	Session utils.SignedToken
	Message string
}

// Register creates an account through self-registration and issues a
// session token for it.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	acct, err := s.create(ctx, in)
	if err != nil {
		return RegisterResult{}, err
	}
	session, err := s.tokens.Sign(acct.ID, acct.Email, string(acct.Role), utils.TokenTypeSession, s.opts.SessionTTL)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("issue session: %w", err)
	}
	return RegisterResult{Account: acct, Session: session, Message: registrationMessage(acct.Role)}, nil
}

// CreateAccount is the admin-initiated creation path.  It follows the same
// initial-status rules and side effects as Register but issues no session.
func (s *AccountService) CreateAccount(ctx context.Context, in RegisterInput) (model.Account, error) {
	return s.create(ctx, in)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput) (model.Account, error) {
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return model.Account{}, invalid("role", "unknown_role")
	}
	email := strings.TrimSpace(in.Email)
	if err := validateEmail(email); err != nil {
		return model.Account{}, err
	}
	if err := s.validatePassword(in.Password); err != nil {
		return model.Account{}, err
	}

	switch _, err := s.accounts.GetByEmail(ctx, email); {
	case err == nil:
		return model.Account{}, ErrDuplicateEmail
	case !errors.Is(err, repository.ErrNotFound):
		return model.Account{}, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("%w: hash password: %v", ErrRegistrationFailed, err)
	}

	now := s.now()
	na := model.NewAccount{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       model.InitialStatus(role),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Verified:     role == model.RoleAdmin,
	}
	var code string
	if role == model.RoleTrainer {
		code, err = utils.NewVerificationCode()
		if err != nil {
			return model.Account{}, fmt.Errorf("%w: verification code: %v", ErrRegistrationFailed, err)
		}
		exp := now.Add(s.opts.VerificationCodeTTL)
		na.VerificationCode = &code
		na.VerificationExpiresAt = &exp
	}

	acct, err := s.accounts.Create(ctx, na, now)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.Account{}, ErrDuplicateEmail
		}
		return model.Account{}, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
	}
	s.logger.Info("account registered", "account_id", acct.ID, "role", acct.Role, "status", acct.Status)

	switch role {
	case model.RoleTrainer:
		s.notify(ctx, model.NewNotification{
			Message: fmt.Sprintf("Nouveau formateur inscrit : %s", displayName(acct)),
			Kind:    model.KindRegistration,
			Link:    fmt.Sprintf("/admin/formateurs/%d", acct.ID),
			Icon:    "user-plus",
		})
		s.dispatch(ctx, queue.AccountEvent{
			Kind:         queue.EventVerificationCode,
			AccountID:    acct.ID,
			Email:        acct.Email,
			Name:         acct.FullName(),
			Code:         code,
			ValidMinutes: int(s.opts.VerificationCodeTTL.Minutes()),
		})
	case model.RoleLearner:
		s.notify(ctx, model.NewNotification{
			Message: fmt.Sprintf("Nouvel apprenant inscrit : %s", displayName(acct)),
			Kind:    model.KindRegistration,
			Link:    fmt.Sprintf("/admin/apprenants/%d", acct.ID),
			Icon:    "user-plus",
		})
	}
	return acct, nil
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email_required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "invalid_email_format")
	}
	return nil
}

func (s *AccountService) validatePassword(pw string) error {
	if pw == "" {
		return invalid("password", "password_required")
	}
	if len([]rune(pw)) < s.opts.PasswordMinLength {
		return invalid("password", "password_too_short")
	}
	return nil
}

func registrationMessage(r model.Role) string {
	switch r {
	case model.RoleAdmin:
		return "Compte administrateur créé."
	case model.RoleTrainer:
		return "Inscription réussie. Un code de vérification a été envoyé à votre adresse email. Votre compte est en attente de validation par un administrateur."
	default:
		return "Inscription réussie. Votre compte est en attente de validation par un administrateur."
	}
}

func displayName(a model.Account) string {
	if n := a.FullName(); n != "" {
		return fmt.Sprintf("%s (%s)", n, a.Email)
	}
	return a.Email
}
