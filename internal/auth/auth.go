// Package auth resolves user identity from bearer tokens. Tokens are HS256
// JWTs whose subject claim carries the user id.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"timekeeper/internal/apperr"
)

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for the given secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// WithClock overrides the validation clock. Test hook.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// UserID validates the token and returns its subject. All failures are
// reported as CodeUnauthenticated; the caller never learns which check
// failed.
func (v *Verifier) UserID(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.New(apperr.CodeUnauthenticated, "missing bearer token")
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token rejected")
		}
		return "", apperr.Wrap(apperr.CodeUnauthenticated, "invalid bearer token", err)
	}
	if claims.Subject == "" {
		return "", apperr.New(apperr.CodeUnauthenticated, "token has no subject")
	}
	return claims.Subject, nil
}

// Sign issues a token for userID, valid for ttl. Used by tooling and tests;
// production tokens come from the identity provider sharing the secret.
func Sign(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
