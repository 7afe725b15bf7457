package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/iliyamo/cfp-accounts/internal/model"
	"github.com/iliyamo/cfp-accounts/internal/queue"
)

var accessCodePattern = regexp.MustCompile(`^CFP-\d{4}$`)

func TestValidateTrainer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.register(t, "formateur", "t@cfp.test", "secret123")
	f.notes.list = nil

	res, err := f.svc.Validate(ctx, tr.ID, "Bienvenue")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !accessCodePattern.MatchString(res.AccessCode) {
		t.Fatalf("access code %q does not match CFP-dddd", res.AccessCode)
	}
	if !res.EmailSent {
		t.Fatal("expected the email to be accepted")
	}

	stored := f.reload(t, tr.ID)
	if stored.Status != model.StatusValidated {
		t.Fatalf("expected validated, got %s", stored.Status)
	}
	if !stored.Verified || stored.VerificationCode != nil || stored.VerificationExpiresAt != nil {
		t.Fatal("validation must force verified and clear the pending code")
	}
	if stored.AccessCode == nil || *stored.AccessCode != res.AccessCode {
		t.Fatalf("stored code %v differs from returned %q", stored.AccessCode, res.AccessCode)
	}

	if len(f.notes.list) != 1 || f.notes.list[0].AccountID == nil || *f.notes.list[0].AccountID != tr.ID {
		t.Fatalf("expected one notification addressed to the trainer, got %+v", f.notes.list)
	}
	ev := f.mail.last(t)
	if ev.Kind != queue.EventTrainerValidated || ev.Code != res.AccessCode || ev.AdminMessage != "Bienvenue" {
		t.Fatalf("unexpected event %+v", ev)
	}

	t.Run("second validate fails and keeps the code", func(t *testing.T) {
		_, err := f.svc.Validate(ctx, tr.ID, "")
		if !errors.Is(err, ErrAlreadyValidated) {
			t.Fatalf("expected ErrAlreadyValidated, got %v", err)
		}
		if got := f.reload(t, tr.ID).AccessCode; got == nil || *got != res.AccessCode {
			t.Fatalf("access code changed to %v", got)
		}
	})

	t.Run("revalidation keeps the existing code", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			var err error
			if i%2 == 0 {
				_, err = f.svc.Reject(ctx, tr.ID)
			} else {
				_, err = f.svc.SetPending(ctx, tr.ID)
			}
			if err != nil {
				t.Fatalf("status change %d returned error: %v", i, err)
			}
			again, err := f.svc.Validate(ctx, tr.ID, "")
			if err != nil {
				t.Fatalf("Validate %d returned error: %v", i, err)
			}
			if again.AccessCode != res.AccessCode {
				t.Fatalf("revalidation %d changed code %q -> %q", i, res.AccessCode, again.AccessCode)
			}
			if got := f.reload(t, tr.ID).AccessCode; got == nil || *got != res.AccessCode {
				t.Fatalf("stored code %v differs from the original %q", got, res.AccessCode)
			}
			if ev := f.mail.last(t); ev.Kind != queue.EventTrainerValidated || ev.Code != res.AccessCode {
				t.Fatalf("revalidation email carried %+v", ev)
			}
		}
	})
}

func TestValidateLearner(t *testing.T) {
	f := newFixture(t)
	l := f.register(t, "apprenant", "l@cfp.test", "secret123")

	res, err := f.svc.Validate(context.Background(), l.ID, "")
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if res.AccessCode != "" || f.reload(t, l.ID).HasAccessCode() {
		t.Fatal("learners never get an access code")
	}
	if ev := f.mail.last(t); ev.Kind != queue.EventLearnerValidated {
		t.Fatalf("expected learner validated event, got %s", ev.Kind)
	}
}

func TestValidateNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Validate(context.Background(), 42, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	tr := f.register(t, "formateur", "t@cfp.test", "secret123")
	f.mail.err = errBoom
	f.notes.err = errBoom

	res, err := f.svc.Validate(context.Background(), tr.ID, "")
	if err != nil {
		t.Fatalf("side-effect failures must not fail validation: %v", err)
	}
	if res.EmailSent {
		t.Fatal("expected EmailSent=false when the dispatcher fails")
	}
	if f.reload(t, tr.ID).Status != model.StatusValidated {
		t.Fatal("validation must persist despite mail failure")
	}
}

func TestConcurrentValidateAssignsOneCode(t *testing.T) {
	f := newFixture(t)
	tr := f.register(t, "formateur", "t@cfp.test", "secret123")

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success []string
		lost    int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Validate(context.Background(), tr.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success = append(success, res.AccessCode)
			case errors.Is(err, ErrAlreadyValidated):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(success) != 1 || lost != n-1 {
		t.Fatalf("expected exactly one winner, got %d successes and %d losses", len(success), lost)
	}
	if got := f.reload(t, tr.ID).AccessCode; got == nil || *got != success[0] {
		t.Fatalf("stored code %v differs from winner %q", got, success[0])
	}
}

func TestResendAccessCode(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps the existing code", func(t *testing.T) {
		f := newFixture(t)
		tr := f.register(t, "formateur", "t@cfp.test", "secret123")
		v, err := f.svc.Validate(ctx, tr.ID, "")
		if err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		for i := 0; i < 3; i++ {
			res, err := f.svc.ResendAccessCode(ctx, tr.ID, "rappel")
			if err != nil {
				t.Fatalf("ResendAccessCode returned error: %v", err)
			}
			if res.AccessCode != v.AccessCode {
				t.Fatalf("resend changed code %q -> %q", v.AccessCode, res.AccessCode)
			}
		}
		if got := f.reload(t, tr.ID).AccessCode; *got != v.AccessCode {
			t.Fatalf("stored code changed to %q", *got)
		}
		if ev := f.mail.last(t); ev.Code != v.AccessCode || ev.AdminMessage != "rappel" {
			t.Fatalf("unexpected event %+v", ev)
		}
	})

	t.Run("mail failure is reported, not returned", func(t *testing.T) {
		f := newFixture(t)
		tr := f.register(t, "formateur", "t@cfp.test", "secret123")
		if _, err := f.svc.Validate(ctx, tr.ID, ""); err != nil {
			t.Fatalf("Validate returned error: %v", err)
		}
		f.mail.err = errBoom
		res, err := f.svc.ResendAccessCode(ctx, tr.ID, "")
		if err != nil {
			t.Fatalf("ResendAccessCode returned error: %v", err)
		}
		if res.EmailSent {
			t.Fatal("expected EmailSent=false")
		}
	})

	t.Run("preconditions", func(t *testing.T) {
		f := newFixture(t)
		l := f.register(t, "apprenant", "l@cfp.test", "secret123")
		tr := f.register(t, "formateur", "t@cfp.test", "secret123")

		if _, err := f.svc.ResendAccessCode(ctx, 999, ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := f.svc.ResendAccessCode(ctx, l.ID, ""); !errors.Is(err, ErrNotTrainer) {
			t.Fatalf("expected ErrNotTrainer, got %v", err)
		}
		if _, err := f.svc.ResendAccessCode(ctx, tr.ID, ""); !errors.Is(err, ErrNoAccessCode) {
			t.Fatalf("expected ErrNoAccessCode, got %v", err)
		}
	})
}

func TestRejectAndSetPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.register(t, "apprenant", "l@cfp.test", "secret123")
	events := len(f.mail.events)

	for i := 0; i < 2; i++ {
		a, err := f.svc.Reject(ctx, l.ID)
		if err != nil {
			t.Fatalf("Reject returned error: %v", err)
		}
		if a.Status != model.StatusRejected {
			t.Fatalf("expected rejected, got %s", a.Status)
		}
	}
	a, err := f.svc.SetPending(ctx, l.ID)
	if err != nil {
		t.Fatalf("SetPending returned error: %v", err)
	}
	if a.Status != model.StatusPending || f.reload(t, l.ID).Status != model.StatusPending {
		t.Fatal("expected pending")
	}
	if len(f.mail.events) != events {
		t.Fatal("reject and pending send no email")
	}
	if _, err := f.svc.Reject(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.register(t, "apprenant", "l@cfp.test", "secret123")

	a, err := f.svc.SetRole(ctx, l.ID, "formateur")
	if err != nil {
		t.Fatalf("SetRole returned error: %v", err)
	}
	if a.Role != model.RoleTrainer || f.reload(t, l.ID).Role != model.RoleTrainer {
		t.Fatal("expected trainer role")
	}
	if _, err := f.svc.SetRole(ctx, l.ID, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty role, got %v", err)
	}
	if _, err := f.svc.SetRole(ctx, l.ID, "root"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
}
