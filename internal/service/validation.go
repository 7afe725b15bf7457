package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// ValidateResult is the validated account.  AccessCode is set for trainers.
type ValidateResult struct {
	Account    model.Account
	AccessCode string
	EmailSent  bool
}

// Validate moves an account to validated.  Trainers are force-verified and
// receive an access code, generated only if they have none yet.  The
// status change is a single conditional update, so concurrent calls cannot
// both succeed.
func (s *AccountService) Validate(ctx context.Context, id uint64, adminMessage string) (ValidateResult, error) {
	acct, err := s.load(ctx, id)
	if err != nil {
		return ValidateResult{}, err
	}
	if acct.Status == model.StatusValidated {
		return ValidateResult{}, ErrAlreadyValidated
	}

	isTrainer := acct.Role == model.RoleTrainer
	forceVerified := isTrainer && !acct.Verified

	// A trainer gets exactly one access code, on the first validation.
	// Re-validating after a reject or pending keeps the code already sent.
	var code *string
	if isTrainer {
		if acct.HasAccessCode() {
			existing := *acct.AccessCode
			code = &existing
		} else {
			c, err := utils.NewAccessCode()
			if err != nil {
				return ValidateResult{}, fmt.Errorf("generate access code: %w", err)
			}
			code = &c
		}
	}

	if err := s.accounts.MarkValidated(ctx, id, forceVerified, code, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyValidated):
			return ValidateResult{}, ErrAlreadyValidated
		case errors.Is(err, repository.ErrNotFound):
			return ValidateResult{}, ErrNotFound
		}
		return ValidateResult{}, fmt.Errorf("validate account %d: %w", id, err)
	}

	acct.Status = model.StatusValidated
	if forceVerified {
		acct.Verified = true
		acct.VerificationCode = nil
		acct.VerificationExpiresAt = nil
	}
	acct.AccessCode = code
	s.logger.Info("account validated", "account_id", id, "role", acct.Role)

	res := ValidateResult{Account: acct}
	switch acct.Role {
	case model.RoleTrainer:
		res.AccessCode = *code
		s.notify(ctx, model.NewNotification{
			AccountID: &acct.ID,
			Message:   fmt.Sprintf("Votre compte formateur a été validé. Votre code d'accès : %s", *code),
			Kind:      model.KindValidation,
			Link:      "/formateur/profil",
			Icon:      "check-circle",
		})
		res.EmailSent = s.dispatch(ctx, queue.AccountEvent{
			Kind:         queue.EventTrainerValidated,
			AccountID:    acct.ID,
			Email:        acct.Email,
			Name:         acct.FullName(),
			Code:         *code,
			AdminMessage: adminMessage,
		})
	case model.RoleLearner:
		res.EmailSent = s.dispatch(ctx, queue.AccountEvent{
			Kind:      queue.EventLearnerValidated,
			AccountID: acct.ID,
			Email:     acct.Email,
			Name:      acct.FullName(),
		})
	}
	return res, nil
}

// ResendAccessCode re-sends the validated email with the trainer's existing
// access code.  It never generates a new code.
func (s *AccountService) ResendAccessCode(ctx context.Context, id uint64, message string) (ValidateResult, error) {
	acct, err := s.load(ctx, id)
	if err != nil {
		return ValidateResult{}, err
	}
	if acct.Role != model.RoleTrainer {
		return ValidateResult{}, ErrNotTrainer
	}
	if !acct.HasAccessCode() {
		return ValidateResult{}, ErrNoAccessCode
	}
	sent := s.dispatch(ctx, queue.AccountEvent{
		Kind:         queue.EventTrainerValidated,
		AccountID:    acct.ID,
		Email:        acct.Email,
		Name:         acct.FullName(),
		Code:         *acct.AccessCode,
		AdminMessage: message,
	})
	return ValidateResult{Account: acct, AccessCode: *acct.AccessCode, EmailSent: sent}, nil
}

// Reject sets the account status to rejected.
func (s *AccountService) Reject(ctx context.Context, id uint64) (model.Account, error) {
	return s.setStatus(ctx, id, model.StatusRejected)
}

// SetPending sets the account status back to pending.
func (s *AccountService) SetPending(ctx context.Context, id uint64) (model.Account, error) {
	return s.setStatus(ctx, id, model.StatusPending)
}

func (s *AccountService) setStatus(ctx context.Context, id uint64, st model.Status) (model.Account, error) {
	acct, err := s.load(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.accounts.SetStatus(ctx, id, st, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("set status %s on %d: %w", st, id, err)
	}
	acct.Status = st
	s.logger.Info("account status changed", "account_id", id, "status", st)
	return acct, nil
}

// SetRole changes an account's role.  Only admins reach this path.
func (s *AccountService) SetRole(ctx context.Context, id uint64, rawRole string) (model.Account, error) {
	role, err := model.ParseRole(rawRole)
	if err != nil || rawRole == "" {
		return model.Account{}, invalid("role", "unknown_role")
	}
	acct, err := s.load(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.accounts.SetRole(ctx, id, role, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("set role on %d: %w", id, err)
	}
	acct.Role = role
	return acct, nil
}

func (s *AccountService) load(ctx context.Context, id uint64) (model.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("load account %d: %w", id, err)
	}
	return acct, nil
}
