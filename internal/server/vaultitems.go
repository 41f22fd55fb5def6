// ABOUTME: Handlers for vault item CRUD, trash, restore, and permanent delete
// ABOUTME: Every operation is scoped to the authenticated user

package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/auth"
	"github.com/hollowgrove/vaultgate/internal/store"
)

// VaultItemBody is the JSON request body for creating or updating an item
type VaultItemBody struct {
	Type          string `json:"type"`
	EncryptedData []byte `json:"encryptedData"`
}

// VaultItemResponse is the public view of a vault item
type VaultItemResponse struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	EncryptedData []byte `json:"encryptedData"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
	DeletedAt     string `json:"deletedAt,omitempty"`
}

func vaultItemResponse(item *store.VaultItem) VaultItemResponse {
	resp := VaultItemResponse{
		ID:            item.ID.String(),
		Type:          item.Type,
		EncryptedData: item.EncryptedData,
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if item.DeletedAt != nil {
		resp.DeletedAt = item.DeletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func vaultItemList(items []*store.VaultItem) []VaultItemResponse {
	out := make([]VaultItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, vaultItemResponse(item))
	}
	return out
}

var validItemTypes = map[string]bool{
	store.VaultItemTypeLogin:    true,
	store.VaultItemTypeIdentity: true,
	store.VaultItemTypeCard:     true,
	store.VaultItemTypeNote:     true,
	store.VaultItemTypeSSHKey:   true,
}

func validateItemBody(req *VaultItemBody) string {
	if !validItemTypes[req.Type] {
		return "unknown item type"
	}
	if len(req.EncryptedData) == 0 {
		return "encryptedData is required"
	}
	if len(req.EncryptedData) > store.MaxVaultItemSize {
		return "encryptedData exceeds maximum item size"
	}
	return ""
}

func itemIDFromPath(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	return id, err == nil
}

// handleListVaultItems returns the user's active (non-trashed) items
func (s *Server) handleListVaultItems(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	items, err := s.store.ListVaultItems(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vaultItemList(items))
}

// handleListTrash returns the user's trashed items
func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	items, err := s.store.ListTrashedVaultItems(r.Context(), identity.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vaultItemList(items))
}

// handleCreateVaultItem stores a new encrypted item for the user
func (s *Server) handleCreateVaultItem(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	var req VaultItemBody
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateItemBody(&req); msg != "" {
		s.sendJSONError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now().UTC()
	item := &store.VaultItem{
		ID:            uuid.New(),
		UserID:        identity.UserID,
		Type:          req.Type,
		EncryptedData: req.EncryptedData,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateVaultItem(r.Context(), item); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, vaultItemResponse(item))
}

// handleGetVaultItem returns a single item owned by the user
func (s *Server) handleGetVaultItem(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	itemID, ok := itemIDFromPath(r)
	if !ok {
		s.sendJSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := s.store.GetVaultItem(r.Context(), identity.UserID, itemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vaultItemResponse(item))
}

// handleUpdateVaultItem replaces an active item's type and payload
func (s *Server) handleUpdateVaultItem(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	itemID, ok := itemIDFromPath(r)
	if !ok {
		s.sendJSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req VaultItemBody
	if err := decodeJSON(r, &req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := validateItemBody(&req); msg != "" {
		s.sendJSONError(w, http.StatusBadRequest, msg)
		return
	}

	item := &store.VaultItem{
		ID:            itemID,
		UserID:        identity.UserID,
		Type:          req.Type,
		EncryptedData: req.EncryptedData,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.store.UpdateVaultItem(r.Context(), item); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.store.GetVaultItem(r.Context(), identity.UserID, itemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vaultItemResponse(updated))
}

// handleTrashVaultItem soft-deletes an item; it stays recoverable until purged
func (s *Server) handleTrashVaultItem(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	itemID, ok := itemIDFromPath(r)
	if !ok {
		s.sendJSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := s.store.TrashVaultItem(r.Context(), identity.UserID, itemID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRestoreVaultItem moves a trashed item back to the active set
func (s *Server) handleRestoreVaultItem(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	itemID, ok := itemIDFromPath(r)
	if !ok {
		s.sendJSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := s.store.RestoreVaultItem(r.Context(), identity.UserID, itemID); err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.store.GetVaultItem(r.Context(), identity.UserID, itemID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vaultItemResponse(item))
}

// handlePurgeVaultItem permanently deletes a trashed item
func (s *Server) handlePurgeVaultItem(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	itemID, ok := itemIDFromPath(r)
	if !ok {
		s.sendJSONError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	if err := s.store.PurgeVaultItem(r.Context(), identity.UserID, itemID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
