package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrNoExpiry       = errors.New("token has no expiry")
	ErrInvalidSubject = errors.New("token has no subject")
)

// ExpiresAt reads the exp claim without verifying the signature. The client
// never holds the signing key, it only needs to know when to refresh.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := parse(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}

// UserID returns the numeric user id the backend stores in the user_id claim.
func UserID(token string) (uint, error) {
	claims, err := parse(token)
	if err != nil {
		return 0, err
	}

	switch v := claims["user_id"].(type) {
	case float64:
		return uint(v), nil
	default:
		return 0, ErrInvalidSubject
	}
}

func parse(token string) (jwt.MapClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
