// ABOUTME: User settings persistence operations for the SQLite store
// ABOUTME: Per (user, device) preference rows created on device linking

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// GetUserSettings retrieves settings for a (user, device) pair.
// Returns ErrNotFound if the device was never linked to the user.
func (s *SQLiteStore) GetUserSettings(ctx context.Context, userID, deviceID uuid.UUID) (*UserSettings, error) {
	query := `
		SELECT id, user_id, device_id, session_timeout, theme
		FROM user_settings
		WHERE user_id = ? AND device_id = ?
	`

	var settings UserSettings
	var idStr, userIDStr, deviceIDStr string

	err := s.db.QueryRowContext(ctx, query, userID.String(), deviceID.String()).Scan(
		&idStr,
		&userIDStr,
		&deviceIDStr,
		&settings.SessionTimeoutMinutes,
		&settings.Theme,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user settings: %w", err)
	}

	settings.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing settings id: %w", err)
	}
	settings.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	settings.DeviceID, err = uuid.Parse(deviceIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing device id: %w", err)
	}

	return &settings, nil
}

// ReplaceUserSettings updates the settings row for a (user, device) pair.
// The row must already exist; linking creates it.
// Returns ErrNotFound otherwise.
func (s *SQLiteStore) ReplaceUserSettings(ctx context.Context, settings *UserSettings) error {
	query := `
		UPDATE user_settings
		SET session_timeout = ?, theme = ?
		WHERE user_id = ? AND device_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		settings.SessionTimeoutMinutes,
		settings.Theme,
		settings.UserID.String(),
		settings.DeviceID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating user settings: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("replaced user settings", "user_id", settings.UserID, "device_id", settings.DeviceID)
	return nil
}
