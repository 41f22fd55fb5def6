// ABOUTME: Vault item persistence operations for the SQLite store
// ABOUTME: Encrypted blob CRUD with soft delete, trash listing, restore, and purge

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const vaultItemColumns = `id, user_id, type, encrypted_data, created_at, updated_at, deleted_at`

// CreateVaultItem inserts a new vault item
func (s *SQLiteStore) CreateVaultItem(ctx context.Context, item *VaultItem) error {
	query := `
		INSERT INTO vault_items (id, user_id, type, encrypted_data, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		item.ID.String(),
		item.UserID.String(),
		item.Type,
		item.EncryptedData,
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
		nullTime(item.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting vault item: %w", err)
	}

	s.logger.Debug("created vault item", "id", item.ID, "user_id", item.UserID, "type", item.Type)
	return nil
}

// GetVaultItem retrieves a vault item by ID, scoped to the owning user.
// Returns ErrNotFound if the item doesn't exist or belongs to another user.
func (s *SQLiteStore) GetVaultItem(ctx context.Context, userID, itemID uuid.UUID) (*VaultItem, error) {
	query := `SELECT ` + vaultItemColumns + ` FROM vault_items WHERE id = ? AND user_id = ?`
	return scanVaultItem(s.db.QueryRowContext(ctx, query, itemID.String(), userID.String()))
}

// ListVaultItems returns all active (non-trashed) items for a user,
// most recently updated first.
func (s *SQLiteStore) ListVaultItems(ctx context.Context, userID uuid.UUID) ([]*VaultItem, error) {
	query := `
		SELECT ` + vaultItemColumns + `
		FROM vault_items
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`
	return s.queryVaultItems(ctx, query, userID.String())
}

// ListTrashedVaultItems returns all soft-deleted items for a user,
// most recently deleted first.
func (s *SQLiteStore) ListTrashedVaultItems(ctx context.Context, userID uuid.UUID) ([]*VaultItem, error) {
	query := `
		SELECT ` + vaultItemColumns + `
		FROM vault_items
		WHERE user_id = ? AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC
	`
	return s.queryVaultItems(ctx, query, userID.String())
}

func (s *SQLiteStore) queryVaultItems(ctx context.Context, query string, args ...any) ([]*VaultItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vault items: %w", err)
	}
	defer rows.Close()

	var items []*VaultItem
	for rows.Next() {
		item, err := scanVaultItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vault item rows: %w", err)
	}
	return items, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan code
type scanner interface {
	Scan(dest ...any) error
}

func scanVaultItem(row scanner) (*VaultItem, error) {
	var item VaultItem
	var idStr, userIDStr, createdAtStr, updatedAtStr string
	var deletedAt sql.NullString

	err := row.Scan(
		&idStr,
		&userIDStr,
		&item.Type,
		&item.EncryptedData,
		&createdAtStr,
		&updatedAtStr,
		&deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning vault item: %w", err)
	}

	item.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parsing item id: %w", err)
	}
	item.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}

	item.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	item.UpdatedAt, err = parseTime(updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	item.DeletedAt, err = parseNullTime(deletedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}

	return &item, nil
}

// UpdateVaultItem replaces an item's type and encrypted payload.
// Trashed items cannot be updated. Returns ErrNotFound if the item
// doesn't exist, is trashed, or belongs to another user.
func (s *SQLiteStore) UpdateVaultItem(ctx context.Context, item *VaultItem) error {
	query := `
		UPDATE vault_items
		SET type = ?, encrypted_data = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL
	`

	result, err := s.db.ExecContext(ctx, query,
		item.Type,
		item.EncryptedData,
		formatTime(item.UpdatedAt),
		item.ID.String(),
		item.UserID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating vault item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated vault item", "id", item.ID)
	return nil
}

// TrashVaultItem soft-deletes an active item.
// Returns ErrNotFound if the item doesn't exist, is already trashed,
// or belongs to another user.
func (s *SQLiteStore) TrashVaultItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.setVaultItemDeleted(ctx, userID, itemID, true)
}

// RestoreVaultItem moves a trashed item back to the active set.
// Returns ErrNotFound if the item doesn't exist, is not trashed,
// or belongs to another user.
func (s *SQLiteStore) RestoreVaultItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.setVaultItemDeleted(ctx, userID, itemID, false)
}

func (s *SQLiteStore) setVaultItemDeleted(ctx context.Context, userID, itemID uuid.UUID, deleted bool) error {
	var query string
	var args []any
	if deleted {
		query = `UPDATE vault_items SET deleted_at = ? WHERE id = ? AND user_id = ? AND deleted_at IS NULL`
		args = []any{formatTime(time.Now()), itemID.String(), userID.String()}
	} else {
		query = `UPDATE vault_items SET deleted_at = NULL WHERE id = ? AND user_id = ? AND deleted_at IS NOT NULL`
		args = []any{itemID.String(), userID.String()}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating vault item deletion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("changed vault item trash state", "id", itemID, "deleted", deleted)
	return nil
}

// PurgeVaultItem permanently removes a trashed item.
// Only trashed items can be purged; active items must be trashed first.
// Returns ErrNotFound otherwise.
func (s *SQLiteStore) PurgeVaultItem(ctx context.Context, userID, itemID uuid.UUID) error {
	query := `DELETE FROM vault_items WHERE id = ? AND user_id = ? AND deleted_at IS NOT NULL`

	result, err := s.db.ExecContext(ctx, query, itemID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("purging vault item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("purged vault item", "id", itemID, "user_id", userID)
	return nil
}

// PurgeTrashedBefore permanently removes all items trashed before the
// cutoff, across all users. Used by the hygiene sweep.
func (s *SQLiteStore) PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM vault_items WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purging trashed items: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		s.logger.Info("purged expired trash", "count", rowsAffected)
	}
	return rowsAffected, nil
}
