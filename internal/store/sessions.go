// ABOUTME: Session persistence operations for the SQLite store
// ABOUTME: One durable session per (user, device) pair with refresh token rotation

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertSession creates or replaces the session for a (user, device)
// pair. A full re-authentication on the same device overwrites the
// previous refresh token, IP, and user agent in place.
func (s *SQLiteStore) UpsertSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (id, user_id, device_id, refresh_token, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			ip_address = excluded.ip_address,
			user_agent = excluded.user_agent,
			created_at = excluded.created_at
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID.String(),
		session.UserID.String(),
		session.DeviceID.String(),
		session.RefreshToken,
		session.IPAddress,
		session.UserAgent,
		formatTime(session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	s.logger.Debug("upserted session", "user_id", session.UserID, "device_id", session.DeviceID)
	return nil
}

// GetSession retrieves the session for a (user, device) pair.
// Returns ErrNotFound if no session exists.
func (s *SQLiteStore) GetSession(ctx context.Context, userID, deviceID uuid.UUID) (*Session, error) {
	query := `
		SELECT id, user_id, device_id, refresh_token, ip_address, user_agent, created_at
		FROM sessions
		WHERE user_id = ? AND device_id = ?
	`

	var session Session
	var idStr, userIDStr, deviceIDStr, createdAtStr string
	var ipAddress, userAgent sql.NullString

	err := s.db.QueryRowContext(ctx, query, userID.String(), deviceID.String()).Scan(
		&idStr,
		&userIDStr,
		&deviceIDStr,
		&session.RefreshToken,
		&ipAddress,
		&userAgent,
		&createdAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing session id: %w", err)
	}
	session.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	session.DeviceID, err = uuid.Parse(deviceIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing device id: %w", err)
	}

	session.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	session.IPAddress = ipAddress.String
	session.UserAgent = userAgent.String
	return &session, nil
}
