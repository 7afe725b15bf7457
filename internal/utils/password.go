package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cfp-accounts/internal/model"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CheckCredential verifies plain against a stored credential.  The second
// result is true when the credential matched in legacy plaintext form and
// must be re-hashed by the caller.
func CheckCredential(c model.Credential, plain string) (ok, migrate bool) {
	switch c.Kind {
	case model.CredentialHashed:
		return VerifyPassword(c.Value, plain), false
	case model.CredentialLegacyPlaintext:
		if c.Value == "" {
			return false, false
		}
		match := subtle.ConstantTimeCompare([]byte(c.Value), []byte(plain)) == 1
		return match, match
	}
	return false, false
}
