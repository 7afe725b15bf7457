package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

// memStore is an in-memory AccountStore with the same conditional
// semantics as the SQL repository.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[uint64]model.Account
}

func newMemStore() *memStore { return &memStore{rows: map[uint64]model.Account{}} }

func strp(s string) *string { return &s }

func clone(a model.Account) model.Account {
	cp := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	a.VerificationCode = cp(a.VerificationCode)
	a.AccessCode = cp(a.AccessCode)
	a.GoogleID = cp(a.GoogleID)
	a.GoogleAccessToken = cp(a.GoogleAccessToken)
	a.GoogleRefreshToken = cp(a.GoogleRefreshToken)
	if a.VerificationExpiresAt != nil {
		t := *a.VerificationExpiresAt
		a.VerificationExpiresAt = &t
	}
	return a
}

func (m *memStore) Create(_ context.Context, na model.NewAccount, now time.Time) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Email == na.Email {
			return model.Account{}, repository.ErrEmailExists
		}
	}
	m.nextID++
	a := model.Account{
		ID:                    m.nextID,
		Email:                 na.Email,
		Credential:            model.ParseCredential(na.PasswordHash),
		Role:                  na.Role,
		Status:                na.Status,
		FirstName:             na.FirstName,
		LastName:              na.LastName,
		Phone:                 na.Phone,
		Verified:              na.Verified,
		VerificationCode:      na.VerificationCode,
		VerificationExpiresAt: na.VerificationExpiresAt,
		GoogleID:              na.GoogleID,
		GoogleAccessToken:     na.GoogleAccessToken,
		GoogleRefreshToken:    na.GoogleRefreshToken,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	m.rows[a.ID] = clone(a)
	return clone(a), nil
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return clone(a), nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *memStore) GetByGoogleID(_ context.Context, gid string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.GoogleID != nil && *a.GoogleID == gid {
			return clone(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *memStore) List(_ context.Context, f repository.ListFilter) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Account
	for _, a := range m.rows {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Role != "" && a.Role != f.Role {
			continue
		}
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) update(id uint64, fn func(*model.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&a)
	m.rows[id] = a
	return nil
}

func (m *memStore) UpdateCredential(_ context.Context, id uint64, hash string, now time.Time) error {
	return m.update(id, func(a *model.Account) {
		a.Credential = model.ParseCredential(hash)
		a.UpdatedAt = now
	})
}

func (m *memStore) SetStatus(_ context.Context, id uint64, st model.Status, now time.Time) error {
	return m.update(id, func(a *model.Account) {
		a.Status = st
		a.UpdatedAt = now
	})
}

func (m *memStore) SetRole(_ context.Context, id uint64, role model.Role, now time.Time) error {
	return m.update(id, func(a *model.Account) {
		a.Role = role
		a.UpdatedAt = now
	})
}

func (m *memStore) UpdateProfile(_ context.Context, id uint64, p model.Profile, now time.Time) error {
	return m.update(id, func(a *model.Account) {
		a.FirstName, a.LastName, a.Phone = p.FirstName, p.LastName, p.Phone
		a.UpdatedAt = now
	})
}

func (m *memStore) MarkValidated(_ context.Context, id uint64, forceVerified bool, code *string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status == model.StatusValidated {
		return repository.ErrAlreadyValidated
	}
	a.Status = model.StatusValidated
	if forceVerified {
		a.Verified = true
		a.VerificationCode = nil
		a.VerificationExpiresAt = nil
	}
	if code != nil {
		a.AccessCode = strp(*code)
	}
	a.UpdatedAt = now
	m.rows[id] = a
	return nil
}

func (m *memStore) SetVerificationCode(_ context.Context, id uint64, code string, expires, now time.Time) error {
	return m.update(id, func(a *model.Account) {
		a.Verified = false
		a.VerificationCode = strp(code)
		a.VerificationExpiresAt = &expires
		a.UpdatedAt = now
	})
}

func (m *memStore) MarkVerified(_ context.Context, id uint64, now time.Time) error {
	return m.update(id, func(a *model.Account) {
		a.Verified = true
		a.VerificationCode = nil
		a.VerificationExpiresAt = nil
		a.UpdatedAt = now
	})
}

func (m *memStore) LinkGoogle(_ context.Context, id uint64, gid string, access, refresh *string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for oid, a := range m.rows {
		if oid != id && a.GoogleID != nil && *a.GoogleID == gid {
			return repository.ErrForbidden
		}
	}
	a, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.GoogleID = strp(gid)
	a.GoogleAccessToken = access
	if refresh != nil {
		a.GoogleRefreshToken = refresh
	}
	a.UpdatedAt = now
	m.rows[id] = a
	return nil
}

// seed inserts a row directly, bypassing the workflow.
func (m *memStore) seed(a model.Account) model.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.rows[a.ID] = clone(a)
	return clone(a)
}

type memNotes struct {
	mu   sync.Mutex
	err  error
	list []model.NewNotification
}

func (n *memNotes) Create(_ context.Context, nn model.NewNotification, now time.Time) (model.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return model.Notification{}, n.err
	}
	n.list = append(n.list, nn)
	return model.Notification{
		ID:        uint64(len(n.list)),
		AccountID: nn.AccountID,
		Message:   nn.Message,
		Kind:      nn.Kind,
		CreatedAt: now,
	}, nil
}

type memMail struct {
	mu     sync.Mutex
	err    error
	events []queue.AccountEvent
}

func (d *memMail) Dispatch(_ context.Context, ev queue.AccountEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return d.err
}

func (d *memMail) last(t *testing.T) queue.AccountEvent {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.events) == 0 {
		t.Fatal("expected a dispatched event, got none")
	}
	return d.events[len(d.events)-1]
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var errBoom = errors.New("boom")

type fixture struct {
	svc    *AccountService
	store  *memStore
	notes  *memNotes
	mail   *memMail
	clock  *clock
	signer *utils.Signer
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		notes: &memNotes{},
		mail:  &memMail{},
		clock: &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	f.signer = utils.NewSigner("test-secret", f.clock.Now)
	opts := Options{BcryptCost: bcrypt.MinCost, Now: f.clock.Now}
	for _, fn := range mutate {
		fn(&opts)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewAccountService(f.store, f.notes, f.mail, f.signer, opts, logger, nil)
	return f
}

func (f *fixture) register(t *testing.T, role, email, password string) model.Account {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Email: email, Password: password, Role: role, FirstName: "Test", LastName: "User",
	})
	if err != nil {
		t.Fatalf("Register(%s, %s) returned error: %v", role, email, err)
	}
	return res.Account
}

func (f *fixture) reload(t *testing.T, id uint64) model.Account {
	t.Helper()
	a, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%d): %v", id, err)
	}
	return a
}
