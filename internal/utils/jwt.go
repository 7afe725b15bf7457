package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "typ" claim.  Only session tokens are accepted
// by the auth middleware; challenge tokens are exchanged for a session once
// a trainer supplies the access code.
const (
	TokenTypeSession   = "session"
	TokenTypeChallenge = "code_challenge"

	Issuer = "cfp-accounts"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
)

// Claims are the identity claims of a signed token.  Subject holds the
// account id in decimal.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
	// Method is the authentication method ("pwd" or "google").
	Method string `json:"amr,omitempty"`
	jwt.RegisteredClaims
}

// AccountID parses the subject as an account id.
func (c *Claims) AccountID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// SignedToken is a serialized token with its id and expiry.
type SignedToken struct {
	Token string    `json:"token"`
	ID    string    `json:"-"`
	Exp   time.Time `json:"expires"`
}

// Signer issues and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer for secret.  now may be nil.
func NewSigner(secret string, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: []byte(secret), now: now}
}

// Sign builds and signs a token of the given type for an account.
func (s *Signer) Sign(accountID uint64, email, role, typ string, ttl time.Duration) (SignedToken, error) {
	return s.SignWithMethod(accountID, email, role, typ, "", ttl)
}

// SignWithMethod is Sign with an authentication method claim.
func (s *Signer) SignWithMethod(accountID uint64, email, role, typ, method string, ttl time.Duration) (SignedToken, error) {
	if len(s.secret) == 0 {
		return SignedToken{}, errors.New("signing secret not configured")
	}
	now := s.now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := &Claims{
		Email:  email,
		Role:   role,
		Type:   typ,
		Method: method,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.FormatUint(accountID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, ID: jti, Exp: exp}, nil
}

// Verify parses raw, checks signature, issuer and expiry, and requires the
// token type to equal typ.
func (s *Signer) Verify(raw, typ string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Type != typ {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
