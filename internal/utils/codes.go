package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// AccessCodePrefix starts every trainer access code.
const AccessCodePrefix = "CFP-"

// randomDigits returns n decimal digits from crypto/rand, leading zeros kept.
func randomDigits(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// NewVerificationCode returns a 6-digit numeric email verification code.
func NewVerificationCode() (string, error) { return randomDigits(6) }

// NewAccessCode returns a trainer access code of the form CFP-dddd.
func NewAccessCode() (string, error) {
	d, err := randomDigits(4)
	if err != nil {
		return "", err
	}
	return AccessCodePrefix + d, nil
}

// RandomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
