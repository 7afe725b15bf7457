package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// LoginOutcome distinguishes a completed login from one waiting for the
// trainer access code.
type LoginOutcome int

const (
	LoginSucceeded LoginOutcome = iota
	LoginCodeRequired
)

// Authentication methods recorded in the challenge token.
const (
	methodPassword = "pwd"
	methodGoogle   = "google"
)

// LoginResult carries a session on success, or a challenge token when a
// trainer must still supply the access code.
type LoginResult struct {
	Outcome   LoginOutcome
	Account   model.Account
	Session   *utils.SignedToken
	Challenge *utils.SignedToken
}

// Login authenticates email/password.  Trainers additionally need their
// access code; without it the result is LoginCodeRequired.
func (s *AccountService) Login(ctx context.Context, email, password, code string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	// exact, case-sensitive match on the stored email
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		// unknown email and wrong password share one error
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}

	ok, migrate := utils.CheckCredential(acct.Credential, password)
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}
	// Legacy plaintext matched: store a bcrypt hash before going on.
	if migrate {
		hash, err := s.hash(password)
		if err != nil {
			return LoginResult{}, fmt.Errorf("rehash legacy password: %w", err)
		}
		if err := s.accounts.UpdateCredential(ctx, acct.ID, hash, s.now()); err != nil {
			return LoginResult{}, fmt.Errorf("store rehashed password: %w", err)
		}
		acct.Credential = model.ParseCredential(hash)
		s.logger.Info("legacy password migrated", "account_id", acct.ID)
	}

	return s.finishLogin(acct, code, methodPassword)
}

// VerifyTrainerCode completes a trainer login started by Login or the
// Google callback.
func (s *AccountService) VerifyTrainerCode(ctx context.Context, challenge, code string) (LoginResult, error) {
	// only a code_challenge token is accepted here, never a session
	claims, err := s.tokens.Verify(challenge, utils.TokenTypeChallenge)
	if err != nil {
		return LoginResult{}, ErrInvalidChallenge
	}
	id, err := claims.AccountID()
	if err != nil {
		return LoginResult{}, ErrInvalidChallenge
	}
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrInvalidChallenge
		}
		return LoginResult{}, fmt.Errorf("load account %d: %w", id, err)
	}
	if strings.TrimSpace(code) == "" {
		return LoginResult{}, ErrInvalidCode
	}
	// keep the method the challenge was issued for (session lifetime)
	method := methodPassword
	if claims.Method == methodGoogle {
		method = methodGoogle
	}
	return s.finishLogin(acct, code, method)
}

// finishLogin applies the status policy and the trainer code gate, then
// issues the session.
func (s *AccountService) finishLogin(acct model.Account, code, method string) (LoginResult, error) {
	// Status gate: strict mode only lets validated accounts (and admins) in;
	// permissive mode leaves authorization to the route guards.
	if s.opts.StrictLogin && acct.Role != model.RoleAdmin && acct.Status != model.StatusValidated {
		return LoginResult{}, ErrAccountNotValidated
	}

	if acct.Role == model.RoleTrainer {
		code = strings.TrimSpace(code)
		if code == "" {
			// No code yet: hand back a short-lived challenge the client
			// exchanges at /verify-trainer-code together with the code.
			ch, err := s.tokens.SignWithMethod(acct.ID, acct.Email, string(acct.Role), utils.TokenTypeChallenge, method, s.opts.ChallengeTTL)
			if err != nil {
				return LoginResult{}, fmt.Errorf("issue challenge: %w", err)
			}
			return LoginResult{Outcome: LoginCodeRequired, Account: acct, Challenge: &ch}, nil
		}
		// A trainer without an issued code (still pending) can never match.
		if !acct.HasAccessCode() || *acct.AccessCode != code {
			return LoginResult{}, ErrInvalidCode
		}
	}

	// Google sessions live longer than password sessions.
	ttl := s.opts.SessionTTL
	if method == methodGoogle {
		ttl = s.opts.OAuthSessionTTL
	}
	session, err := s.tokens.SignWithMethod(acct.ID, acct.Email, string(acct.Role), utils.TokenTypeSession, method, ttl)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session: %w", err)
	}
	s.logger.Info("login succeeded", "account_id", acct.ID, "role", acct.Role, "method", method)
	return LoginResult{Outcome: LoginSucceeded, Account: acct, Session: &session}, nil
}

// SessionTTL reports the configured lifetime of password sessions.
func (s *AccountService) SessionTTL() time.Duration { return s.opts.SessionTTL }
