// ABOUTME: HTTP middleware gate that validates access tokens on non-public requests
// ABOUTME: Public routes bypass auth via an immutable allow-list fixed at construction

package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// PublicRoute is a (method, path prefix) pair that bypasses the gate
type PublicRoute struct {
	Method     string
	PathPrefix string
}

// Gate validates the access token on every request whose route is not on
// the public allow-list, and injects the verified Identity into the
// request context. The allow-list is fixed at construction; the gate
// holds no mutable state.
type Gate struct {
	codec  *TokenCodec
	public []PublicRoute
	logger *slog.Logger
}

// NewGate creates a gate with the given public allow-list
func NewGate(codec *TokenCodec, public []PublicRoute) *Gate {
	return &Gate{
		codec:  codec,
		public: public,
		logger: slog.Default().With("component", "auth.gate"),
	}
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// isPublic reports whether the request matches the allow-list. A prefix
// only matches on a path-segment boundary, so a public /api/sessions
// never leaks /api/sessionsfoo past the gate.
func (g *Gate) isPublic(r *http.Request) bool {
	for _, route := range g.public {
		if r.Method != route.Method {
			continue
		}
		if r.URL.Path == route.PathPrefix || strings.HasPrefix(r.URL.Path, route.PathPrefix+"/") {
			return true
		}
	}
	return false
}

// Middleware wraps a handler with access token validation. The response
// for any validation failure is a generic 401: the boundary does not
// distinguish expired from malformed tokens, while the log keeps the
// specific cause.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.isPublic(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
		if errMsg != "" {
			g.logger.Debug("rejected request", "path", r.URL.Path, "reason", errMsg)
			unauthorized(w)
			return
		}

		claims, err := g.codec.ValidateWithDevice(token, ScopeAccess)
		if err != nil {
			g.logger.Debug("rejected request", "path", r.URL.Path, "reason", err)
			unauthorized(w)
			return
		}

		identity := &Identity{UserID: claims.UserID, DeviceID: claims.DeviceID}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
