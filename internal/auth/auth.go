// Package auth provides authentication and authorization support.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
)

// These are the expected values for Claims.Role.
const (
	RoleAdmin     = "ADMIN"
	RoleMember    = "MEMBER"
	RoleReader    = "READER"
	RoleDashboard = "DASHBOARD"
)

// ctxKey represents the type of value for the context key.
type ctxKey int

// Key is used to store/retrieve a Claims value from a context.Context.
const Key ctxKey = 1

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	UserId int    `json:"user_id"`
	Role   string `json:"role"`
}

// Authorized returns true if the claims has at least one of the provided roles.
func (c Claims) Authorized(roles ...string) bool {
	for _, has := range roles {
		if c.Role == has {
			return true
		}
	}
	return false
}

// ActsFor reports whether the holder may act on behalf of userID. Members only
// act for themselves, staff roles act for anyone.
func (c Claims) ActsFor(userID int) bool {
	if c.Authorized(RoleAdmin, RoleReader) {
		return true
	}
	return c.UserId == userID
}

// FromContext returns the claims stored by the authentication middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(Key).(Claims)
	return claims, ok
}

// Auth is used to authenticate clients. It can generate a token for a
// set of user claims and recreate the claims by parsing the token.
type Auth struct {
	key    []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// New creates an *Auth signing tokens with an HMAC key.
func New(key string, ttl time.Duration) (*Auth, error) {
	if len(key) < 16 {
		return nil, errors.New("jwt key must be at least 16 characters")
	}

	a := Auth{
		key:    []byte(key),
		ttl:    ttl,
		parser: &jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Name}},
	}

	return &a, nil
}

// GenerateToken generates a signed JWT token string for the user.
func (a *Auth) GenerateToken(userID int, role string, now time.Time) (string, error) {
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(userID),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(a.ttl).Unix(),
		},
		UserId: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	str, err := token.SignedString(a.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}

	return str, nil
}

// ValidateToken recreates the Claims that were used to generate a token. It
// verifies that the token was signed using our key.
func (a *Auth) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims

	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return a.key, nil
	}

	token, err := a.parser.ParseWithClaims(tokenStr, &claims, keyFunc)
	if err != nil {
		return Claims{}, errors.Wrap(err, "parsing token")
	}

	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	return claims, nil
}
