// Package auth issues and parses the stateless session tokens handed to
// clients after a successful login.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLen is the shortest HS256 secret accepted for signing.
const MinSecretLen = 32

var ErrSecretTooShort = errors.New("session secret shorter than 32 bytes")

// Claims carries the canonical identifier and role of the account next to
// the standard iat/exp claims.
type Claims struct {
	jwt.RegisteredClaims
	Identifier string `json:"emailOrTelegramId"`
	Role       string `json:"role"`
}

// Token is a freshly signed session token.
type Token struct {
	Value     string
	ExpiresAt time.Time
	Lifetime  time.Duration
}

type Issuer struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewIssuer(secret []byte, lifetime time.Duration) *Issuer {
	return &Issuer{secret: secret, lifetime: lifetime, now: time.Now}
}

// WithClock replaces the time source. Tests only.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token for user. It never returns an unsigned token: a
// misconfigured secret fails with ErrSecretTooShort.
func (i *Issuer) Issue(user *models.User) (*Token, error) {
	if len(i.secret) < MinSecretLen {
		return nil, ErrSecretTooShort
	}

	now := i.now()
	exp := now.Add(i.lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Identifier: user.Identifier,
		Role:       user.Role,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &Token{Value: tokenString, ExpiresAt: exp, Lifetime: i.lifetime}, nil
}

// Parse validates the signature and expiry of tokenString.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Identifier == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
