package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cfp-accounts/internal/model"
)

// AccountRepo persists accounts with hand-written SQL.  All timestamps are
// supplied by the caller in UTC so the same statements run on MySQL and
// SQLite.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = `id,email,password,role,status,first_name,last_name,phone,verified,
	verification_code,verification_expires_at,access_code,google_id,google_access_token,
	google_refresh_token,created_at,updated_at`

// ListFilter narrows List results.  Zero values match everything.
type ListFilter struct {
	Status model.Status
	Role   model.Role
	Limit  int
	Offset int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(s rowScanner) (model.Account, error) {
	var (
		a                                    model.Account
		password, role, status               string
		verCode, access, gid, gAccess, gRefr sql.NullString
		verExp                               sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Email, &password, &role, &status, &a.FirstName, &a.LastName, &a.Phone,
		&a.Verified, &verCode, &verExp, &access, &gid, &gAccess, &gRefr, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrNotFound
		}
		return model.Account{}, err
	}
	a.Credential = model.ParseCredential(password)
	a.Role = model.Role(role)
	a.Status = model.Status(status)
	a.VerificationCode = nullString(verCode)
	if verExp.Valid {
		t := verExp.Time.UTC()
		a.VerificationExpiresAt = &t
	}
	a.AccessCode = nullString(access)
	a.GoogleID = nullString(gid)
	a.GoogleAccessToken = nullString(gAccess)
	a.GoogleRefreshToken = nullString(gRefr)
	return a, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Create inserts an account and returns the stored row.
func (r *AccountRepo) Create(ctx context.Context, na model.NewAccount, now time.Time) (model.Account, error) {
	now = now.UTC()
	// timestamps come from the service clock, not NOW(), so tests control them
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO accounts (email,password,role,status,first_name,last_name,phone,verified,
			verification_code,verification_expires_at,google_id,google_access_token,google_refresh_token,
			created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		na.Email, na.PasswordHash, string(na.Role), string(na.Status), na.FirstName, na.LastName, na.Phone,
		na.Verified, na.VerificationCode, utcPtr(na.VerificationExpiresAt), na.GoogleID,
		na.GoogleAccessToken, na.GoogleRefreshToken, now, now)
	if err != nil {
		// unique key on email
		if isDuplicate(err) {
			return model.Account{}, ErrEmailExists
		}
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Account{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches an account by its exact stored email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", email))
}

// GetByGoogleID fetches the account linked to a Google subject.
func (r *AccountRepo) GetByGoogleID(ctx context.Context, googleID string) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE google_id=? LIMIT 1", googleID))
}

// List returns accounts ordered by creation, newest first.
func (r *AccountRepo) List(ctx context.Context, f ListFilter) ([]model.Account, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Role != "" {
		where = append(where, "role=?")
		args = append(args, string(f.Role))
	}
	q := "SELECT " + accountColumns + " FROM accounts"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateCredential replaces the stored password hash.
func (r *AccountRepo) UpdateCredential(ctx context.Context, id uint64, hash string, now time.Time) error {
	return r.execOne(ctx, "UPDATE accounts SET password=?, updated_at=? WHERE id=?", hash, now.UTC(), id)
}

// SetStatus overwrites the status column.
func (r *AccountRepo) SetStatus(ctx context.Context, id uint64, st model.Status, now time.Time) error {
	return r.execOne(ctx, "UPDATE accounts SET status=?, updated_at=? WHERE id=?", string(st), now.UTC(), id)
}

// SetRole overwrites the role column.
func (r *AccountRepo) SetRole(ctx context.Context, id uint64, role model.Role, now time.Time) error {
	return r.execOne(ctx, "UPDATE accounts SET role=?, updated_at=? WHERE id=?", string(role), now.UTC(), id)
}

// UpdateProfile writes the self-service profile fields.
func (r *AccountRepo) UpdateProfile(ctx context.Context, id uint64, p model.Profile, now time.Time) error {
	return r.execOne(ctx, "UPDATE accounts SET first_name=?, last_name=?, phone=?, updated_at=? WHERE id=?",
		p.FirstName, p.LastName, p.Phone, now.UTC(), id)
}

// MarkValidated moves an account to validated in a single conditional
// statement.  forceVerified sets verified=1 and clears any pending
// verification code.  accessCode is written only when non-nil.  Returns
// ErrAlreadyValidated if the row was already validated and ErrNotFound if
// it does not exist.
func (r *AccountRepo) MarkValidated(ctx context.Context, id uint64, forceVerified bool, accessCode *string, now time.Time) error {
	q := "UPDATE accounts SET status=?, updated_at=?"
	args := []any{string(model.StatusValidated), now.UTC()}
	// admin validation stands in for the trainer's own email check
	if forceVerified {
		q += ", verified=1, verification_code=NULL, verification_expires_at=NULL"
	}
	if accessCode != nil {
		q += ", access_code=?"
		args = append(args, *accessCode)
	}
	// The status guard makes the update the arbiter: of two concurrent
	// validations only one matches the row.
	q += " WHERE id=? AND status<>?"
	args = append(args, id, string(model.StatusValidated))

	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Nothing matched: either the row is missing or it was already validated.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrAlreadyValidated
}

// SetVerificationCode stores a pending email verification code.
func (r *AccountRepo) SetVerificationCode(ctx context.Context, id uint64, code string, expires, now time.Time) error {
	return r.execOne(ctx,
		"UPDATE accounts SET verified=0, verification_code=?, verification_expires_at=?, updated_at=? WHERE id=?",
		code, expires.UTC(), now.UTC(), id)
}

// MarkVerified sets verified=1 and clears the verification code and expiry.
func (r *AccountRepo) MarkVerified(ctx context.Context, id uint64, now time.Time) error {
	return r.execOne(ctx,
		"UPDATE accounts SET verified=1, verification_code=NULL, verification_expires_at=NULL, updated_at=? WHERE id=?",
		now.UTC(), id)
}

// LinkGoogle attaches a Google identity and its tokens to an account.
func (r *AccountRepo) LinkGoogle(ctx context.Context, id uint64, googleID string, access, refresh *string, now time.Time) error {
	err := r.execOne(ctx,
		`UPDATE accounts SET google_id=?, google_access_token=?,
			google_refresh_token=COALESCE(?, google_refresh_token), updated_at=? WHERE id=?`,
		googleID, access, refresh, now.UTC(), id)
	if err != nil && isDuplicate(err) {
		return ErrForbidden
	}
	return err
}

// execOne runs an update addressed by id and maps zero matched rows to
// ErrNotFound.  The MySQL DSN sets clientFoundRows so unchanged rows still
// count as matched.
func (r *AccountRepo) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
