// Package token issues and validates the signed session credentials used by
// the authorization pipeline. Access and refresh tokens are two families of
// HS256 JWTs differing only in lifetime.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenInvalid indicates a malformed, tampered or wrongly signed token.
	ErrTokenInvalid = errors.New("token: invalid")
)

// Claims carried by both token families.
type Claims struct {
	RoleIDs []int64 `json:"role_ids,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewCodec constructs a Codec. The secret must not be empty.
func NewCodec(secret string, accessTTL, refreshTTL time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: secret is required")
	}
	return &Codec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL exposes the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL exposes the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue creates an access and a refresh token for the principal, snapshotting
// the role set at issue time.
func (c *Codec) Issue(principalID int64, roleIDs []int64) (access, refresh string, err error) {
	access, err = c.sign(principalID, roleIDs, c.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = c.sign(principalID, roleIDs, c.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (c *Codec) sign(principalID int64, roleIDs []int64, ttl time.Duration) (string, error) {
	now := c.now()
	claims := &Claims{
		RoleIDs: roleIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principalID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Validate verifies signature and expiry and returns the principal id.
// Expired and malformed tokens fail with distinct errors so the middleware
// can answer with the matching status code.
func (c *Codec) Validate(tokenString string) (int64, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// Parse verifies the token and returns its claims.
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
