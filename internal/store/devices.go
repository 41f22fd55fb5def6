// ABOUTME: Device and challenge persistence operations for the SQLite store
// ABOUTME: Implements exactly-once challenge consumption and user-device linking

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const deviceColumns = `id, fingerprint, public_key, pending_challenge, challenge_issued_at, created_at, last_seen`

// CreateDevice inserts a new device row.
// Returns ErrDuplicateDevice if a device with the same fingerprint
// already exists.
func (s *SQLiteStore) CreateDevice(ctx context.Context, device *Device) error {
	query := `
		INSERT INTO devices (id, fingerprint, public_key, pending_challenge, challenge_issued_at, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		device.ID.String(),
		device.Fingerprint,
		device.PublicKey,
		device.PendingChallenge,
		nullTime(device.ChallengeIssuedAt),
		formatTime(device.CreatedAt),
		nullTime(device.LastSeen),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateDevice
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	s.logger.Debug("created device", "id", device.ID, "fingerprint", device.Fingerprint)
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrNotFound if the device doesn't exist.
func (s *SQLiteStore) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	return s.scanDevice(s.db.QueryRowContext(ctx, query, id.String()))
}

// GetDeviceByFingerprint retrieves a device by its public key fingerprint.
// Returns ErrNotFound if no device matches.
func (s *SQLiteStore) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE fingerprint = ?`
	return s.scanDevice(s.db.QueryRowContext(ctx, query, fingerprint))
}

func (s *SQLiteStore) scanDevice(row *sql.Row) (*Device, error) {
	var device Device
	var idStr, createdAtStr string
	var issuedAt, lastSeen sql.NullString

	err := row.Scan(
		&idStr,
		&device.Fingerprint,
		&device.PublicKey,
		&device.PendingChallenge,
		&issuedAt,
		&createdAtStr,
		&lastSeen,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	device.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing device id: %w", err)
	}

	device.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	device.ChallengeIssuedAt, err = parseNullTime(issuedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing challenge_issued_at: %w", err)
	}

	device.LastSeen, err = parseNullTime(lastSeen)
	if err != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", err)
	}

	return &device, nil
}

// SetDeviceChallenge stores a pending challenge on a device, replacing
// any outstanding one. A device holds at most one pending challenge.
// Returns ErrNotFound if the device doesn't exist.
func (s *SQLiteStore) SetDeviceChallenge(ctx context.Context, deviceID uuid.UUID, challenge []byte, issuedAt time.Time) error {
	query := `UPDATE devices SET pending_challenge = ?, challenge_issued_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, challenge, formatTime(issuedAt), deviceID.String())
	if err != nil {
		return fmt.Errorf("setting challenge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("issued challenge", "device_id", deviceID)
	return nil
}

// ConsumeDeviceChallenge atomically clears the device's pending challenge,
// links the device to the user, and creates default settings for the pair.
// The conditional UPDATE guarantees that when two verifications race over
// the same challenge, exactly one succeeds; the loser gets
// ErrChallengeConsumed. The UPDATE also requires the pending bytes to
// equal the challenge being consumed, so a reissue interleaved between a
// verifier's read and its consume cannot be cleared by the stale response.
func (s *SQLiteStore) ConsumeDeviceChallenge(ctx context.Context, userID, deviceID uuid.UUID, challenge []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())

	result, err := tx.ExecContext(ctx, `
		UPDATE devices
		SET pending_challenge = NULL, challenge_issued_at = NULL, last_seen = ?
		WHERE id = ? AND pending_challenge = ?
	`, now, deviceID.String(), challenge)
	if err != nil {
		return fmt.Errorf("clearing challenge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrChallengeConsumed
	}

	// Linking is idempotent: re-verifying an already linked device is fine
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_devices (user_id, device_id, linked_at)
		VALUES (?, ?, ?)
	`, userID.String(), deviceID.String(), now); err != nil {
		return fmt.Errorf("linking device: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_settings (id, user_id, device_id)
		VALUES (?, ?, ?)
	`, uuid.NewString(), userID.String(), deviceID.String()); err != nil {
		return fmt.Errorf("creating default settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing challenge consumption: %w", err)
	}

	s.logger.Debug("consumed challenge", "user_id", userID, "device_id", deviceID)
	return nil
}

// TouchDevice updates the device's last_seen timestamp.
// Returns ErrNotFound if the device doesn't exist.
func (s *SQLiteStore) TouchDevice(ctx context.Context, deviceID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE devices SET last_seen = ? WHERE id = ?`,
		formatTime(time.Now()), deviceID.String())
	if err != nil {
		return fmt.Errorf("touching device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteStaleChallenges clears pending challenges issued before the
// cutoff. Expired challenges are already rejected at verification time;
// this keeps the table from accumulating dead blobs.
func (s *SQLiteStore) DeleteStaleChallenges(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE devices
		SET pending_challenge = NULL, challenge_issued_at = NULL
		WHERE pending_challenge IS NOT NULL AND challenge_issued_at < ?
	`, formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("deleting stale challenges: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Debug("cleared stale challenges", "count", rowsAffected)
	}
	return rowsAffected, nil
}
