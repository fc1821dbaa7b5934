// Package unlock issues the capability tokens that open password-protected
// forms. A token is bound to the form slug and to the password it was issued
// for, so changing the password revokes every outstanding token.
package unlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mbolis/survey-builder/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrWrongPassword = errors.New("wrong password")
	ErrInvalidToken  = errors.New("invalid unlock token")
)

const audience = "form-unlock"

type claims struct {
	Fingerprint string `json:"pwf"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

// Unlock checks password against the form and returns a token for it.
func (iss *Issuer) Unlock(form model.Form, password string) (token string, expires time.Time, err error) {
	if !form.HasPassword() {
		return "", time.Time{}, errors.New("form has no password")
	}
	if bcrypt.CompareHashAndPassword([]byte(form.PasswordHash), []byte(password)) != nil {
		return "", time.Time{}, ErrWrongPassword
	}

	now := iss.now()
	expires = now.Add(iss.ttl)
	c := claims{
		Fingerprint: fingerprint(form.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   form.Slug,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(iss.secret)
	return token, expires, err
}

// Verify reports whether token opens form. Forms without a password are
// always open.
func (iss *Issuer) Verify(form model.Form, token string) error {
	if !form.HasPassword() {
		return nil
	}
	if token == "" {
		return ErrInvalidToken
	}

	c := claims{}
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return iss.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithSubject(form.Slug),
		jwt.WithTimeFunc(iss.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Fingerprint != fingerprint(form.PasswordHash) {
		return fmt.Errorf("%w: password changed", ErrInvalidToken)
	}
	return nil
}
