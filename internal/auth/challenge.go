// ABOUTME: One-time device challenge issuance and verification
// ABOUTME: Encrypts a random payload to the device key, verifies byte-exact echo within TTL

package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/store"
)

// Challenge errors
var (
	// ErrChallengeExpired covers both an elapsed TTL and the absence of a
	// pending challenge (never issued, or already consumed).
	ErrChallengeExpired = errors.New("challenge expired or not pending")

	// ErrChallengeMismatch is returned when the client's response does not
	// byte-exactly match the issued challenge, or names the wrong device.
	ErrChallengeMismatch = errors.New("challenge response mismatch")

	// ErrMalformedChallenge is returned when the client's response does
	// not deserialize as a challenge payload.
	ErrMalformedChallenge = errors.New("malformed challenge response")
)

// challengeRandomLen is the number of random bytes in each challenge
const challengeRandomLen = 32

// challengePayload is the canonical challenge shape. The byte form is
// the compact JSON encoding with fields in struct order; verification
// compares raw bytes, so clients must echo the decrypted plaintext
// verbatim rather than re-serializing.
type challengePayload struct {
	DeviceID uuid.UUID `json:"deviceId"`
	UserID   uuid.UUID `json:"userId"`
	Random   []byte    `json:"random"`
}

// ChallengeManager drives the per-device challenge state machine:
// no challenge, pending, then verified, expired, or mismatched.
// At most one challenge is outstanding per device; issuing a new one
// overwrites any prior pending challenge.
type ChallengeManager struct {
	devices store.DeviceStore
	codec   *TokenCodec
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewChallengeManager creates a challenge manager with the given TTL
func NewChallengeManager(devices store.DeviceStore, codec *TokenCodec, ttl time.Duration) *ChallengeManager {
	return &ChallengeManager{
		devices: devices,
		codec:   codec,
		ttl:     ttl,
		logger:  slog.Default().With("component", "auth.challenge"),
		now:     time.Now,
	}
}

// Issue builds a fresh challenge for the (user, device) pair, persists
// the plaintext as the device's pending challenge, and returns the
// payload encrypted to the device's public key with RSA-OAEP-SHA256.
// Only the holder of the matching private key can recover it.
func (m *ChallengeManager) Issue(ctx context.Context, userID uuid.UUID, device *store.Device) ([]byte, error) {
	random := make([]byte, challengeRandomLen)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("generating challenge randomness: %w", err)
	}

	plaintext, err := json.Marshal(challengePayload{
		DeviceID: device.ID,
		UserID:   userID,
		Random:   random,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding challenge: %w", err)
	}

	publicKey, err := ParseRSAPublicKey(device.PublicKey)
	if err != nil {
		return nil, err
	}

	// Encrypt before persisting so a failure here leaves no dangling
	// pending challenge on the device row
	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, publicKey, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypting challenge: %v", ErrInvalidPublicKey, err)
	}

	if err := m.devices.SetDeviceChallenge(ctx, device.ID, plaintext, m.now().UTC()); err != nil {
		return nil, fmt.Errorf("persisting challenge: %w", err)
	}

	m.logger.Debug("issued challenge", "user_id", userID, "device_id", device.ID)
	return ciphertext, nil
}

// VerifyResponse validates the session-access token, then checks the
// client's decrypted challenge against the device's pending challenge.
// Verification fails closed: malformed payloads, byte mismatches, wrong
// device ids, and elapsed TTLs are all rejected. On success the pending
// challenge is consumed exactly once, the user-device link is created
// idempotently, and the verified identity is returned. A second call
// with the same response fails because the challenge is already cleared.
func (m *ChallengeManager) VerifyResponse(ctx context.Context, sessionToken string, clientResponse []byte) (*Identity, error) {
	claims, err := m.codec.ValidateWithDevice(sessionToken, ScopeSession)
	if err != nil {
		return nil, err
	}

	device, err := m.devices.GetDevice(ctx, claims.DeviceID)
	if err != nil {
		return nil, err
	}

	if device.PendingChallenge == nil || device.ChallengeIssuedAt == nil {
		return nil, ErrChallengeExpired
	}
	if m.now().Sub(*device.ChallengeIssuedAt) > m.ttl {
		return nil, ErrChallengeExpired
	}

	var payload challengePayload
	if err := json.Unmarshal(clientResponse, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedChallenge, err)
	}

	if payload.DeviceID != device.ID {
		m.logger.Warn("challenge response for wrong device", "expected", device.ID, "got", payload.DeviceID)
		return nil, ErrChallengeMismatch
	}

	// Exact byte comparison binds the response to the exact issued nonce
	if !bytes.Equal(clientResponse, device.PendingChallenge) {
		return nil, ErrChallengeMismatch
	}

	// Consumption is conditional on the exact bytes read above, so a
	// challenge reissued between the read and the consume stays pending
	err = m.devices.ConsumeDeviceChallenge(ctx, claims.UserID, device.ID, device.PendingChallenge)
	if errors.Is(err, store.ErrChallengeConsumed) {
		return nil, ErrChallengeExpired
	}
	if err != nil {
		return nil, fmt.Errorf("consuming challenge: %w", err)
	}

	m.logger.Info("device verified", "user_id", claims.UserID, "device_id", device.ID)
	return &Identity{UserID: claims.UserID, DeviceID: device.ID}, nil
}
