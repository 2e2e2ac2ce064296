// Package auth implements the single-operator session scheme: one
// credential pair from the environment, a signed-in marker carried in an
// httpOnly cookie.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// CookieName is the session cookie carried by staff requests.
const CookieName = "auth-token"

// TokenTTL bounds how long a session cookie stays valid.
const TokenTTL = 7 * 24 * time.Hour

// Verifier checks submitted credentials.
type Verifier interface {
	Verify(email, password string) bool
}

// StaticVerifier compares against the single operator credential pair from
// configuration. Comparison is constant-time.
type StaticVerifier struct {
	Email    string
	Password string
}

// Verify reports whether the submitted pair matches the configured one. A
// verifier with no configured credentials rejects everything.
func (v StaticVerifier) Verify(email, password string) bool {
	if v.Email == "" || v.Password == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(email)), []byte(strings.ToLower(v.Email)))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(v.Password))
	return emailOK&passOK == 1
}

// NewToken mints the session marker for an authenticated email.
func (v StaticVerifier) NewToken(email string) string {
	return NewTokenAt(email, time.Now())
}

// NewTokenAt mints a token with an explicit issue time.
func NewTokenAt(email string, issuedAt time.Time) string {
	payload := email + ":" + strconv.FormatInt(issuedAt.UnixMilli(), 10)
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

var errInvalidToken = errors.New("auth: invalid token")

// ParseToken extracts the email and issue time from a session token.
func ParseToken(token string) (email string, issuedAt time.Time, err error) {
	raw, decodeErr := base64.StdEncoding.DecodeString(token)
	if decodeErr != nil {
		return "", time.Time{}, errInvalidToken
	}
	payload := string(raw)
	idx := strings.LastIndex(payload, ":")
	if idx <= 0 || idx == len(payload)-1 {
		return "", time.Time{}, errInvalidToken
	}
	ms, parseErr := strconv.ParseInt(payload[idx+1:], 10, 64)
	if parseErr != nil {
		return "", time.Time{}, errInvalidToken
	}
	return payload[:idx], time.UnixMilli(ms), nil
}

// ValidToken reports whether token parses and was issued within TokenTTL of
// now.
func ValidToken(token string, now time.Time) bool {
	_, issuedAt, err := ParseToken(token)
	if err != nil {
		return false
	}
	if issuedAt.After(now.Add(time.Minute)) {
		return false
	}
	return now.Sub(issuedAt) <= TokenTTL
}
