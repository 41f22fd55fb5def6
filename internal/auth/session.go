// ABOUTME: Session creation with refresh token rotation and access token refresh
// ABOUTME: One durable session per (user, device); rotation only on full login

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/store"
)

// ErrRefreshMismatch is returned when a presented refresh token does not
// match the session's currently stored value. A stale token from before
// a rotation lands here.
var ErrRefreshMismatch = errors.New("refresh token does not match session")

// TokenPair is the result of a successful full login
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionManager establishes and refreshes per-(user, device) sessions
type SessionManager struct {
	sessions   store.SessionStore
	devices    store.DeviceStore
	codec      *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewSessionManager creates a session manager with the given token TTLs
func NewSessionManager(sessions store.SessionStore, devices store.DeviceStore, codec *TokenCodec, accessTTL, refreshTTL time.Duration) *SessionManager {
	return &SessionManager{
		sessions:   sessions,
		devices:    devices,
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     slog.Default().With("component", "auth.session"),
	}
}

// CreateOrRotate establishes the session for a (user, device) pair after
// a successful challenge verification. A fresh refresh token is minted
// and stored even when a session already exists, invalidating any
// previously issued refresh token for the pair.
func (m *SessionManager) CreateOrRotate(ctx context.Context, userID, deviceID uuid.UUID, ipAddress, userAgent string) (*TokenPair, error) {
	refreshToken, err := m.codec.Issue(ScopeRefresh, userID, deviceID, m.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing refresh token: %w", err)
	}

	session := &store.Session{
		ID:           uuid.New(),
		UserID:       userID,
		DeviceID:     deviceID,
		RefreshToken: refreshToken,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.sessions.UpsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	accessToken, err := m.codec.Issue(ScopeAccess, userID, deviceID, m.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	m.logger.Info("session established", "user_id", userID, "device_id", deviceID, "ip", ipAddress)
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// token must exactly equal the session's stored value; anything else,
// including a token rotated away by a later full login, is rejected.
// The stored refresh token is never changed by this operation.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := m.codec.ValidateWithDevice(refreshToken, ScopeRefresh)
	if err != nil {
		return "", err
	}

	session, err := m.sessions.GetSession(ctx, claims.UserID, claims.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrRefreshMismatch
	}
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(refreshToken), []byte(session.RefreshToken)) != 1 {
		m.logger.Warn("stale refresh token presented", "user_id", claims.UserID, "device_id", claims.DeviceID)
		return "", ErrRefreshMismatch
	}

	if err := m.devices.TouchDevice(ctx, claims.DeviceID); err != nil {
		return "", fmt.Errorf("updating device last seen: %w", err)
	}

	accessToken, err := m.codec.Issue(ScopeAccess, claims.UserID, claims.DeviceID, m.accessTTL)
	if err != nil {
		return "", fmt.Errorf("issuing access token: %w", err)
	}

	m.logger.Debug("access token refreshed", "user_id", claims.UserID, "device_id", claims.DeviceID)
	return accessToken, nil
}
