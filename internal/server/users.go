// ABOUTME: Handlers for registration, email verification, profile, and settings
// ABOUTME: Registration derives the server-side hash and sends a verification mail

package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/auth"
	"github.com/hollowgrove/vaultgate/internal/store"
)

// saltLen is the per-user salt size in bytes
const saltLen = 32

// KDFParamsBody mirrors the client-declared key derivation parameters
type KDFParamsBody struct {
	Algorithm   string `json:"algorithm"`
	Iterations  int    `json:"iterations"`
	KeyLength   int    `json:"keyLength"`
	MemoryKB    int    `json:"memoryKb"`
	Parallelism int    `json:"parallelism"`
}

// RegisterRequest is the JSON request body for POST /api/users
type RegisterRequest struct {
	Username     string        `json:"username"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"passwordHash"`
	KDFParams    KDFParamsBody `json:"kdfParams"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	VaultBlob     []byte `json:"vaultBlob,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

// VerifyEmailRequest is the JSON request body for POST /api/users/email-verifications
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// UpdateProfileRequest is the JSON request body for PATCH /api/users/me
type UpdateProfileRequest struct {
	Username  string `json:"username"`
	VaultBlob []byte `json:"vaultBlob"`
}

// SettingsBody is the JSON shape for user settings
type SettingsBody struct {
	SessionTimeoutMinutes int    `json:"sessionTimeoutMinutes"`
	Theme                 string `json:"theme"`
}

func userResponse(user *store.User) UserResponse {
	return UserResponse{
		ID:            user.ID.String(),
		Username:      user.Username,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		VaultBlob:     user.EncryptedVaultBlob,
		CreatedAt:     user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func validateRegistration(req *RegisterRequest) string {
	if req.Username == "" || req.Email == "" || req.PasswordHash == "" {
		return "username, email, and passwordHash are required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "email is not a valid address"
	}
	if req.KDFParams.Iterations <= 0 || req.KDFParams.KeyLength <= 0 {
		return "kdfParams.iterations and kdfParams.keyLength must be positive"
	}
	return ""
}

// handleRegister creates a new user account. The client sends its
// password digest, never the plaintext; the server re-hashes it with a
// fresh salt and the pepper before storing. A verification mail with a
// short-lived email-scope token goes out on success; delivery failure
// does not fail the registration.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateRegistration(&req); msg != "" {
		s.sendJSONError(w, http.StatusBadRequest, msg)
		return
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		s.writeError(w, r, fmt.Errorf("generating salt: %w", err))
		return
	}

	user := &store.User{
		ID:       uuid.New(),
		Username: req.Username,
		Email:    req.Email,
		PasswordHash: auth.DeriveServerHash(
			req.PasswordHash, []byte(s.cfg.Auth.Pepper), salt,
			req.KDFParams.Iterations, req.KDFParams.KeyLength),
		Salt: base64.StdEncoding.EncodeToString(salt),
		KDF: store.KDFParams{
			Algorithm:   req.KDFParams.Algorithm,
			Iterations:  req.KDFParams.Iterations,
			KeyLength:   req.KDFParams.KeyLength,
			MemoryKB:    req.KDFParams.MemoryKB,
			Parallelism: req.KDFParams.Parallelism,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	s.sendVerificationMail(r, user)

	s.writeJSON(w, http.StatusCreated, userResponse(user))
}

func (s *Server) sendVerificationMail(r *http.Request, user *store.User) {
	token, err := s.codec.Issue(auth.ScopeEmail, user.ID, uuid.Nil, s.cfg.Auth.EmailTTL)
	if err != nil {
		s.logger.Error("issuing email verification token", "user_id", user.ID, "error", err)
		return
	}
	if err := s.mailer.SendVerification(r.Context(), user.Email, user.Username, token); err != nil {
		s.logger.Error("sending verification mail", "user_id", user.ID, "error", err)
	}
}

// handleVerifyEmail validates an email-scope token and marks the user verified
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		s.sendJSONError(w, http.StatusBadRequest, "token is required")
		return
	}

	claims, err := s.codec.Validate(req.Token, auth.ScopeEmail)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.MarkEmailVerified(r.Context(), claims.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetProfile returns the authenticated user's own record
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	user, err := s.store.GetUser(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, userResponse(user))
}

// handleUpdateProfile updates the username and encrypted vault blob
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" {
		s.sendJSONError(w, http.StatusBadRequest, "username is required")
		return
	}

	if err := s.store.UpdateUserProfile(r.Context(), identity.UserID, req.Username, req.VaultBlob); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse(user))
}

// handleDeleteAccount removes the user and everything owned by them
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	if err := s.store.DeleteUser(r.Context(), identity.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("account deleted", "user_id", identity.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetSettings returns the settings for the authenticated (user, device)
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	settings, err := s.store.GetUserSettings(r.Context(), identity.UserID, identity.DeviceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, SettingsBody{
		SessionTimeoutMinutes: settings.SessionTimeoutMinutes,
		Theme:                 settings.Theme,
	})
}

// handlePutSettings replaces the settings for the authenticated (user, device)
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	var req SettingsBody
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionTimeoutMinutes <= 0 {
		s.sendJSONError(w, http.StatusBadRequest, "sessionTimeoutMinutes must be positive")
		return
	}
	if req.Theme == "" {
		s.sendJSONError(w, http.StatusBadRequest, "theme is required")
		return
	}

	err := s.store.ReplaceUserSettings(r.Context(), &store.UserSettings{
		UserID:                identity.UserID,
		DeviceID:              identity.DeviceID,
		SessionTimeoutMinutes: req.SessionTimeoutMinutes,
		Theme:                 req.Theme,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, req)
}
