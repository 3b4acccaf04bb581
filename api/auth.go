/*
auth.go - JWT bearer authentication for the API

PURPOSE:
  Parses and validates JWT bearer tokens and makes the authenticated
  principal (staff ID + role) available to handlers via the request
  context. Token issuance is also here so deployments can mint tokens
  from their identity provider of choice.

TOKEN SHAPE:
  HS256, with custom claims:
    sid  staff ID
    role role name (normalized on parse)

AUTHORIZATION NOTE:
  This layer only authenticates. Whether the caller may act on a given
  request is decided inside the workflow engine against the directory,
  never from the token's role claim alone.

SEE ALSO:
  - handlers.go: reads the principal from context
  - leave/workflow.go: per-step authorization
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kaacquah2/leave-portal-sub009/leave"
)

// Principal is the authenticated caller.
type Principal struct {
	StaffID leave.StaffID
	Role    leave.Role
}

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	StaffID string `json:"sid"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

type contextKey string

const principalKey contextKey = "principal"

// GenerateToken mints a signed token for the given principal.
func GenerateToken(secret string, p Principal, ttl time.Duration) (string, error) {
	claims := Claims{
		StaffID: string(p.StaffID),
		Role:    string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a token string and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Authenticate is middleware that requires a valid bearer token and
// stores the resulting Principal in the request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			claims, err := ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}
			role, err := leave.ParseRole(claims.Role)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unknown role", err)
				return
			}
			p := Principal{StaffID: leave.StaffID(claims.StaffID), Role: role}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
		})
	}
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from a context.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
