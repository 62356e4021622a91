// internal/identity/jwt.go
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoIdentity means the request carried no resolvable caller identity.
var ErrNoIdentity = errors.New("no caller identity")

// ValidateToken parses and validates a bearer token, returning the holder id
// from the subject claim.
func ValidateToken(secret, tokenStr string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	holderID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing subject claim: %w", err)
	}

	return holderID, nil
}

// Middleware authenticates requests from the Authorization header and puts
// the holder id on the context. Requests without a valid token pass through
// unauthenticated; the service rejects them when identity is required.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				if holderID, err := ValidateToken(secret, token); err == nil {
					r = r.WithContext(WithHolder(r.Context(), holderID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
