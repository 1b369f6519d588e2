package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// IdentityClaims is the payload of an identity token issued by the
// identity service.
type IdentityClaims struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Principal is an authenticated caller.
type Principal struct {
	Identity models.Identity
	Provider string
}

// AuthMiddleware verifies HS256 identity tokens.
type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Verify parses and validates a raw token.
func (m *AuthMiddleware) Verify(raw string) (*Principal, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return &Principal{
		Identity: models.Identity{
			ID:          claims.Subject,
			DisplayName: claims.Name,
			Email:       claims.Email,
			AvatarURL:   claims.Picture,
		},
		Provider: claims.Provider,
	}, nil
}

// RequireAuth rejects requests without a valid token. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted
// as well as the Authorization header.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			jsonError(w, http.StatusUnauthorized, "missing token")
			return
		}

		principal, err := m.Verify(raw)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SignToken issues a token for identity. The identity service does this in
// production; cmd/token and the tests use it directly.
func SignToken(secret string, identity models.Identity, provider string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Name:     identity.DisplayName,
		Email:    identity.Email,
		Picture:  identity.AvatarURL,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetPrincipalFromContext retrieves the authenticated caller from the
// request context.
func GetPrincipalFromContext(ctx context.Context) *Principal {
	principal, ok := ctx.Value(IdentityContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
