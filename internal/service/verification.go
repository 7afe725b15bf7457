package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// VerifyEmail confirms an account's email with the pending 6-digit code.
// The expiry is checked before the code, so a late correct code still
// fails as expired.
func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) (model.Account, error) {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return model.Account{}, invalid("email", "email_required")
	}
	if code == "" {
		return model.Account{}, invalid("code", "code_required")
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	if acct.Verified {
		return model.Account{}, ErrAlreadyVerified
	}
	if acct.VerificationCode == nil || *acct.VerificationCode == "" {
		return model.Account{}, ErrNoPendingVerification
	}
	if acct.VerificationExpiresAt != nil && s.now().After(*acct.VerificationExpiresAt) {
		return model.Account{}, ErrVerificationExpired
	}
	if strings.TrimSpace(*acct.VerificationCode) != code {
		return model.Account{}, ErrIncorrectCode
	}

	if err := s.accounts.MarkVerified(ctx, acct.ID, s.now()); err != nil {
		return model.Account{}, fmt.Errorf("mark verified: %w", err)
	}
	acct.Verified = true
	acct.VerificationCode = nil
	acct.VerificationExpiresAt = nil
	s.logger.Info("email verified", "account_id", acct.ID)
	return acct, nil
}

// ResendVerification issues a fresh verification code to an unverified
// trainer and emails it.  The previous code stops working.
func (s *AccountService) ResendVerification(ctx context.Context, email string) (model.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.Account{}, invalid("email", "email_required")
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	if acct.Role != model.RoleTrainer {
		return model.Account{}, ErrNotTrainer
	}
	if acct.Verified {
		return model.Account{}, ErrAlreadyVerified
	}

	code, err := utils.NewVerificationCode()
	if err != nil {
		return model.Account{}, fmt.Errorf("generate verification code: %w", err)
	}
	now := s.now()
	expires := now.Add(s.opts.VerificationCodeTTL)
	if err := s.accounts.SetVerificationCode(ctx, acct.ID, code, expires, now); err != nil {
		return model.Account{}, fmt.Errorf("store verification code: %w", err)
	}
	acct.VerificationCode = &code
	acct.VerificationExpiresAt = &expires

	s.dispatch(ctx, queue.AccountEvent{
		Kind:         queue.EventVerificationCode,
		AccountID:    acct.ID,
		Email:        acct.Email,
		Name:         acct.FullName(),
		Code:         code,
		ValidMinutes: int(s.opts.VerificationCodeTTL.Minutes()),
	})
	return acct, nil
}
