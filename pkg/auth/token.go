package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a bearer JWT without verifying its
// signature. The result is informational only. ok is false when the value
// is not a JWT or carries no exp claim.
func TokenExpiry(authorization string) (exp time.Time, ok bool) {
	token := strings.TrimSpace(authorization)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	numeric, err := claims.GetExpirationTime()
	if err != nil || numeric == nil {
		return time.Time{}, false
	}
	return numeric.Time, true
}
