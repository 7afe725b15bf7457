package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/repository"
)

// GetAccount returns one account by id.
func (s *AccountService) GetAccount(ctx context.Context, id uint64) (model.Account, error) {
	return s.load(ctx, id)
}

// ListAccounts returns accounts filtered by status and role.  Empty filters
// match everything; unknown values are rejected.
func (s *AccountService) ListAccounts(ctx context.Context, status, role string, limit, offset int) ([]model.Account, error) {
	f := repository.ListFilter{Limit: limit, Offset: offset}
	if status != "" {
		st, ok := model.ParseStatus(status)
		if !ok {
			return nil, invalid("status", "unknown_status")
		}
		f.Status = st
	}
	if role != "" {
		r, err := model.ParseRole(role)
		if err != nil {
			return nil, invalid("role", "unknown_role")
		}
		f.Role = r
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.accounts.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// UpdateProfile edits the caller's own name and phone.  Role and status
// cannot be changed here.
func (s *AccountService) UpdateProfile(ctx context.Context, id uint64, p model.Profile) (model.Account, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Phone = strings.TrimSpace(p.Phone)
	if len(p.Phone) > 32 {
		return model.Account{}, invalid("phone", "too_long")
	}
	acct, err := s.load(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.accounts.UpdateProfile(ctx, id, p, s.now()); err != nil {
		return model.Account{}, fmt.Errorf("update profile %d: %w", id, err)
	}
	acct.FirstName, acct.LastName, acct.Phone = p.FirstName, p.LastName, p.Phone
	return acct, nil
}
