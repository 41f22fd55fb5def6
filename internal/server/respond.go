// ABOUTME: JSON response helpers and error → HTTP status mapping
// ABOUTME: Token failures are reported generically; logs keep the specific cause

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hollowgrove/vaultgate/internal/auth"
	"github.com/hollowgrove/vaultgate/internal/store"
)

// writeJSON writes a JSON response body with the given status
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.Error("encoding response", "error", err)
		}
	}
}

// sendJSONError writes a JSON error response
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps a domain error onto the HTTP boundary. Credential and
// token failures all collapse to a generic 401 so the response does not
// reveal whether a token was expired, malformed, or signed for another
// scope.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingClaim),
		errors.Is(err, auth.ErrRefreshMismatch):
		s.logger.Debug("unauthorized", "path", r.URL.Path, "cause", err)
		s.sendJSONError(w, http.StatusUnauthorized, "unauthorized")

	case errors.Is(err, auth.ErrChallengeExpired),
		errors.Is(err, auth.ErrChallengeMismatch):
		s.logger.Warn("challenge verification failed", "path", r.URL.Path, "cause", err)
		s.sendJSONError(w, http.StatusForbidden, "challenge verification failed")

	case errors.Is(err, auth.ErrMalformedChallenge),
		errors.Is(err, auth.ErrInvalidPublicKey):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, store.ErrUsernameExists):
		s.sendJSONError(w, http.StatusConflict, "username already exists")

	case errors.Is(err, store.ErrEmailExists):
		s.sendJSONError(w, http.StatusConflict, "email already exists")

	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Error("request timed out", "path", r.URL.Path)
		s.sendJSONError(w, http.StatusServiceUnavailable, "temporarily unavailable, retry")

	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes a request body, rejecting unparseable input
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
