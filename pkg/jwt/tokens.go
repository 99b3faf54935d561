package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped on every dashboard session token and required on parse.
const Issuer = "projects-dashboard"

const clockSkew = 30 * time.Second

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("jwt: session expired")
	// ErrTokenInvalid covers bad signatures, foreign issuers and malformed claims.
	ErrTokenInvalid = errors.New("jwt: invalid session token")
)

// Claims is the dashboard session payload. Subject and UserID always match.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

// GenerateToken issues an HS256 session token for a user.
func GenerateToken(userID, email, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt: signing secret is empty")
	}
	if userID == "" {
		return "", errors.New("jwt: user id is empty")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse verifies a session token and returns its claims. Errors wrap
// ErrTokenExpired or ErrTokenInvalid.
func Parse(token, secret string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer(Issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(clockSkew),
	)
	switch {
	case errors.Is(err, jwtlib.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: subject does not match user", ErrTokenInvalid)
	}
	return claims, nil
}
