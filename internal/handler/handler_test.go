package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/iliyamo/cfp-accounts/internal/database"
	"github.com/iliyamo/cfp-accounts/internal/mail"
	"github.com/iliyamo/cfp-accounts/internal/queue"
	"github.com/iliyamo/cfp-accounts/internal/repository"
	"github.com/iliyamo/cfp-accounts/internal/service"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func respond(t *testing.T, errs *Errors, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if rerr := errs.Respond(c, err); rerr != nil {
		t.Fatalf("Respond returned error: %v", rerr)
	}
	body := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func TestErrorsRespond(t *testing.T) {
	dev := &Errors{Logger: quietLogger()}
	prod := &Errors{Prod: true, Logger: quietLogger()}

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"duplicate", service.ErrDuplicateEmail, http.StatusBadRequest},
		{"wrapped credentials", fmt.Errorf("login: %w", service.ErrInvalidCredentials), http.StatusUnauthorized},
		{"expired verification", service.ErrVerificationExpired, http.StatusUnauthorized},
		{"strict policy", service.ErrAccountNotValidated, http.StatusForbidden},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"unexpected", errors.New("db gone"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if code, body := respond(t, dev, tc.err); code != tc.code {
				t.Fatalf("status = %d, want %d (body %v)", code, tc.code, body)
			}
		})
	}

	t.Run("validation error names the field", func(t *testing.T) {
		_, err := service.NewAccountService(nil, nil, nil, nil, service.Options{}, quietLogger(), nil).
			ListAccounts(context.Background(), "bogus", "", 0, 0)
		code, body := respond(t, dev, err)
		if code != http.StatusBadRequest || body["field"] != "status" || body["reason"] != "unknown_status" {
			t.Fatalf("unexpected response %d %v", code, body)
		}
	})

	t.Run("detail hidden in production", func(t *testing.T) {
		_, body := respond(t, prod, errors.New("db gone"))
		if _, ok := body["detail"]; ok {
			t.Fatalf("detail leaked in production: %v", body)
		}
		_, body = respond(t, dev, errors.New("db gone"))
		if body["detail"] != "db gone" {
			t.Fatalf("expected detail outside production, got %v", body)
		}
	})

	t.Run("registration failure message", func(t *testing.T) {
		_, body := respond(t, prod, fmt.Errorf("%w: insert", service.ErrRegistrationFailed))
		if body["error"] != "registration failed" {
			t.Fatalf("unexpected body %v", body)
		}
	})
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("down") }

func TestHealth(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)
	if err := Health(downDB{})(c); err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// oauthFixture wires an OAuthHandler to fake Google token and userinfo
// endpoints and a SQLite-backed account service.
func oauthFixture(t *testing.T, profile map[string]any) (*echo.Echo, *repository.AccountRepo) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "g-access", "refresh_token": "g-refresh", "token_type": "Bearer", "expires_in": 3600,
			})
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer g-access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(profile)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(google.Close)

	logger := quietLogger()
	accounts := repository.NewAccountRepo(db)
	svc := service.NewAccountService(accounts, repository.NewNotificationRepo(db),
		&queue.Inline{Sender: mail.NewLogSender(logger), Logger: logger},
		utils.NewSigner("oauth-test", nil), service.Options{BcryptCost: bcrypt.MinCost}, logger, nil)

	h := &OAuthHandler{
		Accounts: svc,
		Conf: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://api.test/v1/auth/google/callback",
			Endpoint:     oauth2.Endpoint{AuthURL: google.URL + "/auth", TokenURL: google.URL + "/token"},
		},
		FrontendURL: "http://front.test",
		UserInfoURL: google.URL + "/userinfo",
		Errors:      &Errors{Logger: logger},
	}
	e := echo.New()
	e.GET("/google", h.Start)
	e.GET("/google/callback", h.Callback)
	return e, accounts
}

func TestOAuthStartSetsState(t *testing.T) {
	e, _ := oauthFixture(t, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/google", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != stateCookie || len(cookies[0].Value) != 32 {
		t.Fatalf("unexpected cookies %v", cookies)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if loc.Query().Get("state") != cookies[0].Value || loc.Query().Get("access_type") != "offline" {
		t.Fatalf("unexpected redirect %s", loc)
	}
}

func callback(e *echo.Echo, state, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/google/callback?code=abc&state="+state, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: cookie})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestOAuthCallback(t *testing.T) {
	profile := map[string]any{
		"sub": "google-sub-1", "email": "g@cfp.test", "email_verified": true,
		"given_name": "Grace", "family_name": "Hopper",
	}

	t.Run("state mismatch", func(t *testing.T) {
		e, _ := oauthFixture(t, profile)
		if rec := callback(e, "abc", "def"); rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if rec := callback(e, "abc", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("status without cookie = %d, want 400", rec.Code)
		}
	})

	t.Run("creates a learner and redirects with a session", func(t *testing.T) {
		e, accounts := oauthFixture(t, profile)
		rec := callback(e, "s1", "s1")
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302 (body %s)", rec.Code, rec.Body.String())
		}
		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "http://front.test/auth/google#token=") {
			t.Fatalf("unexpected redirect %s", loc)
		}

		acct, err := accounts.GetByGoogleID(context.Background(), "google-sub-1")
		if err != nil {
			t.Fatalf("GetByGoogleID returned error: %v", err)
		}
		if acct.Email != "g@cfp.test" || !acct.Verified || acct.Status != "pending" || acct.Role != "apprenant" {
			t.Fatalf("unexpected account %+v", acct)
		}
		if acct.GoogleRefreshToken == nil || *acct.GoogleRefreshToken != "g-refresh" {
			t.Fatal("expected the refresh token to be stored")
		}
	})

	t.Run("unverified email is refused", func(t *testing.T) {
		e, _ := oauthFixture(t, map[string]any{"sub": "x", "email": "x@cfp.test", "email_verified": false})
		if rec := callback(e, "s", "s"); rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}
