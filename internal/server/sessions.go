// ABOUTME: Handlers for the login protocol endpoints under /api/sessions
// ABOUTME: Credential exchange, challenge issuance, verification, and token refresh

package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/auth"
	"github.com/hollowgrove/vaultgate/internal/store"
)

// CredentialsRequest is the JSON request body for POST /api/sessions/credentials
type CredentialsRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	PasswordHash    string `json:"passwordHash"`
}

// CredentialsResponse carries the challenge-access token for the next stage
type CredentialsResponse struct {
	ChallengeAccessToken string `json:"challengeAccessToken"`
}

// ChallengeRequest is the JSON request body for POST /api/sessions/challenges
type ChallengeRequest struct {
	ChallengeAccessToken string `json:"challengeAccessToken"`
	PublicKey            string `json:"publicKey"`
}

// ChallengeResponse carries the encrypted challenge and the session-access token
type ChallengeResponse struct {
	EncryptedChallenge []byte `json:"encryptedChallenge"`
	SessionAccessToken string `json:"sessionAccessToken"`
}

// VerifyRequest is the JSON request body for POST /api/sessions
type VerifyRequest struct {
	SessionAccessToken string `json:"sessionAccessToken"`
	ClientResponse     []byte `json:"clientResponse"`
}

// TokenPairResponse carries the access/refresh pair of a full login
type TokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshRequest is the JSON request body for POST /api/sessions/tokens/refresh-tokens
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AccessTokenResponse carries a freshly issued access token
type AccessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// handleCredentials verifies the client password hash and issues the
// challenge-access token that starts a device challenge.
func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UsernameOrEmail == "" || req.PasswordHash == "" {
		s.sendJSONError(w, http.StatusBadRequest, "usernameOrEmail and passwordHash are required")
		return
	}

	userID, err := s.verifier.Authenticate(r.Context(), req.UsernameOrEmail, req.PasswordHash)
	if err != nil {
		// An unknown login and a wrong hash must be indistinguishable
		if errors.Is(err, store.ErrNotFound) {
			err = auth.ErrInvalidCredentials
		}
		s.writeError(w, r, err)
		return
	}

	token, err := s.codec.Issue(auth.ScopeChallenge, userID, uuid.Nil, s.cfg.Auth.ChallengeTTL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, CredentialsResponse{ChallengeAccessToken: token})
}

// handleChallenges resolves the device for the submitted public key,
// issues an encrypted one-time challenge, and hands back the
// session-access token the client must present with its response.
func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ChallengeAccessToken == "" || req.PublicKey == "" {
		s.sendJSONError(w, http.StatusBadRequest, "challengeAccessToken and publicKey are required")
		return
	}

	claims, err := s.codec.Validate(req.ChallengeAccessToken, auth.ScopeChallenge)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	device, err := s.registry.FindOrRegister(r.Context(), []byte(req.PublicKey))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	encrypted, err := s.challenges.Issue(r.Context(), claims.UserID, device)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sessionToken, err := s.codec.Issue(auth.ScopeSession, claims.UserID, device.ID, s.cfg.Auth.SessionTTL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ChallengeResponse{
		EncryptedChallenge: encrypted,
		SessionAccessToken: sessionToken,
	})
}

// handleVerifyChallenge checks the decrypted challenge and, on success,
// establishes the session and returns the access/refresh token pair.
func (s *Server) handleVerifyChallenge(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionAccessToken == "" || len(req.ClientResponse) == 0 {
		s.sendJSONError(w, http.StatusBadRequest, "sessionAccessToken and clientResponse are required")
		return
	}

	identity, err := s.challenges.VerifyResponse(r.Context(), req.SessionAccessToken, req.ClientResponse)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pair, err := s.sessions.CreateOrRotate(r.Context(), identity.UserID, identity.DeviceID, clientIP(r), r.UserAgent())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// handleRefresh exchanges a valid refresh token for a new access token
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		s.sendJSONError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	accessToken, err := s.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AccessTokenResponse{AccessToken: accessToken})
}
