// ABOUTME: Device registry keyed by the SHA-256 fingerprint of a public key
// ABOUTME: Finds or lazily creates device records on first challenge request

package auth

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/store"
)

// ErrInvalidPublicKey is returned when the submitted key is not a valid
// PEM-encoded RSA public key of at least minRSABits.
var ErrInvalidPublicKey = errors.New("invalid public key")

// minRSABits is the smallest accepted key size. OAEP-SHA256 under a
// 2048-bit key carries up to 190 bytes, comfortably above the challenge
// payload; smaller keys could not receive a challenge at all.
const minRSABits = 2048

// Fingerprint computes the device fingerprint: lowercase hex SHA-256 of
// the raw public key bytes as submitted.
func Fingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:])
}

// ParseRSAPublicKey decodes a PEM-encoded RSA public key (PKIX form)
func ParseRSAPublicKey(publicKey []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicKey)
	if block == nil {
		return nil, fmt.Errorf("%w: not PEM encoded", ErrInvalidPublicKey)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPublicKey)
	}
	if bits := rsaKey.N.BitLen(); bits < minRSABits {
		return nil, fmt.Errorf("%w: %d-bit key below %d-bit minimum", ErrInvalidPublicKey, bits, minRSABits)
	}
	return rsaKey, nil
}

// DeviceRegistry identifies devices by public key fingerprint and
// creates records lazily on first contact. Devices are root entities,
// not scoped to any user.
type DeviceRegistry struct {
	devices store.DeviceStore
	logger  *slog.Logger
}

// NewDeviceRegistry creates a registry backed by the given device store
func NewDeviceRegistry(devices store.DeviceStore) *DeviceRegistry {
	return &DeviceRegistry{
		devices: devices,
		logger:  slog.Default().With("component", "auth.devices"),
	}
}

// FindOrRegister returns the device for the given public key, creating
// it if no device with that fingerprint exists. Identical key bytes
// always resolve to the same device. Returns ErrInvalidPublicKey if the
// key does not parse.
func (r *DeviceRegistry) FindOrRegister(ctx context.Context, publicKey []byte) (*store.Device, error) {
	if _, err := ParseRSAPublicKey(publicKey); err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(publicKey)

	device, err := r.devices.GetDeviceByFingerprint(ctx, fingerprint)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up device: %w", err)
	}

	device = &store.Device{
		ID:          uuid.New(),
		Fingerprint: fingerprint,
		PublicKey:   publicKey,
		CreatedAt:   time.Now().UTC(),
	}
	err = r.devices.CreateDevice(ctx, device)
	if err == nil {
		r.logger.Info("registered new device", "device_id", device.ID, "fingerprint", fingerprint)
		return device, nil
	}

	// Lost a race with a concurrent registration of the same key
	if errors.Is(err, store.ErrDuplicateDevice) {
		return r.devices.GetDeviceByFingerprint(ctx, fingerprint)
	}
	return nil, fmt.Errorf("creating device: %w", err)
}
