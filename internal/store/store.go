// ABOUTME: Store interfaces and data types for vaultgate persistence
// ABOUTME: Defines User, Device, Session, VaultItem structs and the store interfaces

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when registering a user with a taken username
var ErrUsernameExists = errors.New("username already exists")

// ErrEmailExists is returned when registering a user with a taken email
var ErrEmailExists = errors.New("email already exists")

// ErrDuplicateDevice is returned when creating a device whose fingerprint
// already exists. Callers treat this as a lost race and re-read.
var ErrDuplicateDevice = errors.New("device already exists")

// ErrChallengeConsumed is returned when consuming a pending challenge that
// has already been cleared. Exactly one verification may succeed per issued
// challenge; concurrent verifiers lose this race.
var ErrChallengeConsumed = errors.New("challenge already consumed")

// KDFParams records the client-side key derivation parameters declared at
// registration. Iterations and KeyLength are also reused for the server-side
// PBKDF2 re-hash of the client-supplied password hash.
type KDFParams struct {
	Algorithm   string `json:"algorithm"`
	Iterations  int    `json:"iterations"`
	KeyLength   int    `json:"keyLength"`
	MemoryKB    int    `json:"memoryKb"`
	Parallelism int    `json:"parallelism"`
}

// User represents a registered vault owner. PasswordHash and Salt never
// leave the server.
type User struct {
	ID                 uuid.UUID
	Username           string
	Email              string
	PasswordHash       string // base64, PBKDF2 over pepper+client hash
	Salt               string // base64, 32 random bytes
	KDF                KDFParams
	EmailVerified      bool
	EncryptedVaultBlob []byte
	CreatedAt          time.Time
}

// Device is a root entity identified by the SHA-256 fingerprint of its
// public key. It may be linked to any number of users via UserDevice.
type Device struct {
	ID                 uuid.UUID
	Fingerprint        string // lowercase hex SHA-256 of the public key PEM
	PublicKey          []byte // PEM-encoded RSA public key
	PendingChallenge   []byte // nil when no challenge is outstanding
	ChallengeIssuedAt  *time.Time
	CreatedAt          time.Time
	LastSeen           *time.Time
}

// UserDevice links a user to a device after a successful challenge
// verification. The composite key makes link creation idempotent.
type UserDevice struct {
	UserID   uuid.UUID
	DeviceID uuid.UUID
	LinkedAt time.Time
}

// Session holds the durable per-(user,device) login state. The refresh
// token value is rotated on every full re-authentication.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	DeviceID     uuid.UUID
	RefreshToken string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

// VaultItemType constants for vault item kinds
const (
	VaultItemTypeLogin    = "login"
	VaultItemTypeIdentity = "identity"
	VaultItemTypeCard     = "card"
	VaultItemTypeNote     = "note"
	VaultItemTypeSSHKey   = "ssh_key"
)

// MaxVaultItemSize is the maximum encrypted payload size in bytes (50 KB).
const MaxVaultItemSize = 50_000

// VaultItem is an encrypted blob owned by a user. Deletion is soft:
// DeletedAt marks the item as trashed until it is restored or purged.
type VaultItem struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Type          string
	EncryptedData []byte // encrypted client-side before reaching the server
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// UserSettings holds per-(user,device) preferences. A default row is
// created when the user-device link is established.
type UserSettings struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	DeviceID              uuid.UUID
	SessionTimeoutMinutes int
	Theme                 string
}

// UserStore defines user persistence operations
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (*User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, username string, encryptedVaultBlob []byte) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// DeviceStore defines device and challenge persistence operations.
// SetDeviceChallenge and ConsumeDeviceChallenge are the two atomic halves
// of the challenge lifecycle: issuance overwrites any outstanding
// challenge, consumption clears it exactly once and links the device.
// Consumption is conditional on the exact challenge bytes, so a response
// to a superseded challenge can never clear its replacement.
type DeviceStore interface {
	CreateDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (*Device, error)
	GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*Device, error)
	SetDeviceChallenge(ctx context.Context, deviceID uuid.UUID, challenge []byte, issuedAt time.Time) error
	ConsumeDeviceChallenge(ctx context.Context, userID, deviceID uuid.UUID, challenge []byte) error
	TouchDevice(ctx context.Context, deviceID uuid.UUID) error
	DeleteStaleChallenges(ctx context.Context, olderThan time.Time) (int64, error)
}

// SessionStore defines session persistence operations
type SessionStore interface {
	UpsertSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, userID, deviceID uuid.UUID) (*Session, error)
}

// VaultItemStore defines vault item persistence operations
type VaultItemStore interface {
	CreateVaultItem(ctx context.Context, item *VaultItem) error
	GetVaultItem(ctx context.Context, userID, itemID uuid.UUID) (*VaultItem, error)
	ListVaultItems(ctx context.Context, userID uuid.UUID) ([]*VaultItem, error)
	ListTrashedVaultItems(ctx context.Context, userID uuid.UUID) ([]*VaultItem, error)
	UpdateVaultItem(ctx context.Context, item *VaultItem) error
	TrashVaultItem(ctx context.Context, userID, itemID uuid.UUID) error
	RestoreVaultItem(ctx context.Context, userID, itemID uuid.UUID) error
	PurgeVaultItem(ctx context.Context, userID, itemID uuid.UUID) error
	PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingsStore defines user settings persistence operations
type SettingsStore interface {
	GetUserSettings(ctx context.Context, userID, deviceID uuid.UUID) (*UserSettings, error)
	ReplaceUserSettings(ctx context.Context, settings *UserSettings) error
}

// Store is the complete persistence surface consumed by the rest of
// vaultgate. SQLiteStore implements all of it in a single struct.
type Store interface {
	UserStore
	DeviceStore
	SessionStore
	VaultItemStore
	SettingsStore

	// Ping reports whether the backing database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
