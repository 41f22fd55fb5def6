// ABOUTME: User persistence operations for the SQLite store
// ABOUTME: Handles registration, login lookups, profile updates, and account deletion

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const userColumns = `id, username, email, password_hash, salt, kdf_params, email_verified, vault_blob, created_at`

// CreateUser inserts a new user row.
// Returns ErrUsernameExists or ErrEmailExists when the corresponding
// unique constraint is violated.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	kdfJSON, err := json.Marshal(user.KDF)
	if err != nil {
		return fmt.Errorf("encoding kdf params: %w", err)
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, salt, kdf_params, email_verified, vault_blob, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Salt,
		string(kdfJSON),
		user.EmailVerified,
		user.EncryptedVaultBlob,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			if strings.Contains(err.Error(), "users.email") {
				return ErrEmailExists
			}
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id.String()))
}

// GetUserByLogin retrieves a user by username or email. The same input
// is matched against both columns so clients can log in with either.
// Returns ErrNotFound if no user matches.
func (s *SQLiteStore) GetUserByLogin(ctx context.Context, usernameOrEmail string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? OR email = ?`
	return s.scanUser(s.db.QueryRowContext(ctx, query, usernameOrEmail, usernameOrEmail))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var idStr, kdfJSON, createdAtStr string
	var vaultBlob []byte

	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Salt,
		&kdfJSON,
		&user.EmailVerified,
		&vaultBlob,
		&createdAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}

	if err := json.Unmarshal([]byte(kdfJSON), &user.KDF); err != nil {
		return nil, fmt.Errorf("decoding kdf params: %w", err)
	}

	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	user.EncryptedVaultBlob = vaultBlob
	return &user, nil
}

// UpdateUserProfile updates the username and encrypted vault blob.
// Returns ErrNotFound if the user doesn't exist, ErrUsernameExists if
// the new username is taken by another user.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, username string, encryptedVaultBlob []byte) error {
	query := `UPDATE users SET username = ?, vault_blob = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, username, encryptedVaultBlob, id.String())
	if err != nil {
		if isConstraintViolation(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("updating user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated user profile", "id", id)
	return nil
}

// MarkEmailVerified flips the email_verified flag for a user.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("marking email verified: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("email verified", "user_id", id)
	return nil
}

// DeleteUser removes a user and all dependent rows in one transaction.
// Devices are root entities and survive; only the user's links,
// sessions, vault items, and settings go with the account.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	idStr := id.String()
	for _, query := range []string{
		`DELETE FROM sessions WHERE user_id = ?`,
		`DELETE FROM user_settings WHERE user_id = ?`,
		`DELETE FROM vault_items WHERE user_id = ?`,
		`DELETE FROM user_devices WHERE user_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, idStr); err != nil {
			return fmt.Errorf("deleting user data: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, idStr)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user deletion: %w", err)
	}

	s.logger.Info("deleted user", "id", id)
	return nil
}
