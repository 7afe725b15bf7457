package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/iliyamo/cfp-accounts/internal/config"
	"github.com/iliyamo/cfp-accounts/internal/service"
	"github.com/iliyamo/cfp-accounts/internal/utils"
)

const (
	stateCookie     = "cfp_oauth_state"
	googleUserInfo  = "https://openidconnect.googleapis.com/v1/userinfo"
	stateCookieLife = 10 * time.Minute
)

// OAuthHandler runs the Google authorization-code flow and hands the
// verified identity to the account service.
type OAuthHandler struct {
	Accounts    *service.AccountService
	Conf        *oauth2.Config
	FrontendURL string
	UserInfoURL string
	Secure      bool
	Errors      *Errors
}

// NewOAuthHandler builds the Google client from configuration.
func NewOAuthHandler(accounts *service.AccountService, cfg config.OAuthConfig, frontendURL string, secure bool, errs *Errors) *OAuthHandler {
	return &OAuthHandler{
		Accounts: accounts,
		Conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		FrontendURL: strings.TrimRight(frontendURL, "/"),
		UserInfoURL: googleUserInfo,
		Secure:      secure,
		Errors:      errs,
	}
}

// Start redirects the browser to Google's consent page.
func (h *OAuthHandler) Start(c echo.Context) error {
	state, err := utils.RandomHex(16)
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieLife / time.Second),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.Conf.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Callback completes the flow.  The browser is sent back to the frontend
// with the session, or the trainer challenge, in the URL fragment.
func (h *OAuthHandler) Callback(c echo.Context) error {
	ck, err := c.Cookie(stateCookie)
	state := c.QueryParam("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(ck.Value), []byte(state)) != 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid oauth state"})
	}
	c.SetCookie(&http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.Secure})

	if e := c.QueryParam("error"); e != "" {
		return h.redirect(c, url.Values{"error": {e}})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing code"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	tok, err := h.Conf.Exchange(ctx, code)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "oauth exchange failed"})
	}
	profile, err := h.fetchProfile(ctx, tok)
	if err != nil {
		return h.Errors.Respond(c, err)
	}

	res, err := h.Accounts.OAuthLogin(ctx, service.GoogleIdentity{
		Subject:       profile.Sub,
		Email:         profile.Email,
		EmailVerified: profile.EmailVerified,
		GivenName:     profile.GivenName,
		FamilyName:    profile.FamilyName,
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
	})
	if err != nil {
		return h.Errors.Respond(c, err)
	}
	if res.Outcome == service.LoginCodeRequired {
		return h.redirect(c, url.Values{"challenge": {res.Challenge.Token}})
	}
	return h.redirect(c, url.Values{"token": {res.Session.Token}})
}

func (h *OAuthHandler) fetchProfile(ctx context.Context, tok *oauth2.Token) (googleProfile, error) {
	resp, err := h.Conf.Client(ctx, tok).Get(h.UserInfoURL)
	if err != nil {
		return googleProfile{}, fmt.Errorf("fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return googleProfile{}, fmt.Errorf("google userinfo: status %d: %s", resp.StatusCode, b)
	}
	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, fmt.Errorf("decode google userinfo: %w", err)
	}
	return p, nil
}

func (h *OAuthHandler) redirect(c echo.Context, frag url.Values) error {
	return c.Redirect(http.StatusFound, h.FrontendURL+"/auth/google#"+frag.Encode())
}
