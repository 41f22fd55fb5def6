// Package store provides persistent storage for vaultgate using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with multiple
// specialized interfaces:
//
//   - UserStore: Account registration, login lookup, profile updates
//   - DeviceStore: Device records, pending challenges, user-device links
//   - SessionStore: Durable per-(user, device) sessions
//   - VaultItemStore: Encrypted vault item CRUD with soft delete
//   - SettingsStore: Per-(user, device) preferences
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Data Models
//
//   - User: Vault owner with server-side password hash and KDF parameters
//   - Device: Root entity keyed by public key fingerprint, holding at
//     most one pending challenge
//   - UserDevice: Idempotent link established on challenge verification
//   - Session: One row per (user, device), refresh token rotated on
//     full re-authentication
//   - VaultItem: Encrypted client-side blob with trash/restore lifecycle
//   - UserSettings: Timeout and theme preferences per linked device
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC 3339 text in UTC. UUIDs are stored as
// their canonical string form.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrUsernameExists / ErrEmailExists: Registration conflicts
//   - ErrDuplicateDevice: Fingerprint already registered
//   - ErrChallengeConsumed: Pending challenge already cleared
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewSQLiteStore(":memory:") for integration tests with real SQLite.
package store
