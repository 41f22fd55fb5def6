// ABOUTME: HTTP-level tests for vault item CRUD, trash, restore, and purge
// ABOUTME: Builds on the harness in server_test.go

package server

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/hollowgrove/vaultgate/internal/store"
)

func loginNewUser(t *testing.T, srv *Server, username string) TokenPairResponse {
	t.Helper()
	registerUser(t, srv, username, username+"@example.com", "hash-"+username)
	key, pubPEM := newDeviceKey(t)
	return login(t, srv, username, "hash-"+username, key, pubPEM)
}

func TestVaultItemLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	pair := loginNewUser(t, srv, "mona")

	rec := doJSON(t, srv, http.MethodPost, "/api/vault-items", pair.AccessToken, VaultItemBody{
		Type:          store.VaultItemTypeLogin,
		EncryptedData: []byte("ciphertext-v1"),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[VaultItemResponse](t, rec)
	if created.ID == "" || created.Type != store.VaultItemTypeLogin {
		t.Fatalf("unexpected created item: %+v", created)
	}

	items := decodeBody[[]VaultItemResponse](t, doJSON(t, srv, http.MethodGet, "/api/vault-items", pair.AccessToken, nil))
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("list: got %d items", len(items))
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/vault-items/"+created.ID, pair.AccessToken, VaultItemBody{
		Type:          store.VaultItemTypeNote,
		EncryptedData: []byte("ciphertext-v2"),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[VaultItemResponse](t, rec)
	if updated.Type != store.VaultItemTypeNote || string(updated.EncryptedData) != "ciphertext-v2" {
		t.Fatalf("unexpected updated item: %+v", updated)
	}

	// Trash: gone from the active list, present in trash
	if rec := doJSON(t, srv, http.MethodDelete, "/api/vault-items/"+created.ID, pair.AccessToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("trash: got %d", rec.Code)
	}
	items = decodeBody[[]VaultItemResponse](t, doJSON(t, srv, http.MethodGet, "/api/vault-items", pair.AccessToken, nil))
	if len(items) != 0 {
		t.Fatalf("active list after trash: got %d items", len(items))
	}
	trash := decodeBody[[]VaultItemResponse](t, doJSON(t, srv, http.MethodGet, "/api/vault-items/trash", pair.AccessToken, nil))
	if len(trash) != 1 || trash[0].DeletedAt == "" {
		t.Fatalf("trash list: got %+v", trash)
	}

	// Trashed items cannot be updated in place
	rec = doJSON(t, srv, http.MethodPut, "/api/vault-items/"+created.ID, pair.AccessToken, VaultItemBody{
		Type: store.VaultItemTypeNote, EncryptedData: []byte("x"),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update while trashed: got %d, want 404", rec.Code)
	}

	// Restore brings it back untouched
	rec = doJSON(t, srv, http.MethodPost, "/api/vault-items/"+created.ID+"/restore", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: got %d", rec.Code)
	}
	restored := decodeBody[VaultItemResponse](t, rec)
	if restored.DeletedAt != "" || string(restored.EncryptedData) != "ciphertext-v2" {
		t.Fatalf("unexpected restored item: %+v", restored)
	}

	// Permanent delete requires the item to be in the trash first
	rec = doJSON(t, srv, http.MethodDelete, "/api/vault-items/"+created.ID+"/permanent", pair.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("purge active item: got %d, want 404", rec.Code)
	}
	doJSON(t, srv, http.MethodDelete, "/api/vault-items/"+created.ID, pair.AccessToken, nil)
	rec = doJSON(t, srv, http.MethodDelete, "/api/vault-items/"+created.ID+"/permanent", pair.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("purge trashed item: got %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/vault-items/"+created.ID, pair.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after purge: got %d, want 404", rec.Code)
	}
}

func TestVaultItem_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	pair := loginNewUser(t, srv, "nina")

	cases := []struct {
		name string
		body VaultItemBody
	}{
		{"unknown type", VaultItemBody{Type: "passport", EncryptedData: []byte("x")}},
		{"empty data", VaultItemBody{Type: store.VaultItemTypeLogin}},
		{"oversized data", VaultItemBody{Type: store.VaultItemTypeLogin, EncryptedData: make([]byte, store.MaxVaultItemSize+1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/vault-items", pair.AccessToken, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", rec.Code)
			}
		})
	}

	// Exactly at the limit is allowed
	rec := doJSON(t, srv, http.MethodPost, "/api/vault-items", pair.AccessToken, VaultItemBody{
		Type: store.VaultItemTypeLogin, EncryptedData: make([]byte, store.MaxVaultItemSize),
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("max-size item: got %d, want 201", rec.Code)
	}
}

func TestVaultItem_OwnershipScoping(t *testing.T) {
	srv, _ := newTestServer(t)
	owner := loginNewUser(t, srv, "oscar")
	other := loginNewUser(t, srv, "peggy")

	rec := doJSON(t, srv, http.MethodPost, "/api/vault-items", owner.AccessToken, VaultItemBody{
		Type: store.VaultItemTypeCard, EncryptedData: []byte("oscar-secret"),
	})
	created := decodeBody[VaultItemResponse](t, rec)

	// Another user's token sees 404, never 403, for every operation
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/vault-items/" + created.ID},
		{http.MethodDelete, "/api/vault-items/" + created.ID},
		{http.MethodPost, "/api/vault-items/" + created.ID + "/restore"},
		{http.MethodDelete, "/api/vault-items/" + created.ID + "/permanent"},
	}
	for _, p := range paths {
		rec := doJSON(t, srv, p.method, p.path, other.AccessToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s as other user: got %d, want 404", p.method, p.path, rec.Code)
		}
	}
	rec = doJSON(t, srv, http.MethodPut, "/api/vault-items/"+created.ID, other.AccessToken, VaultItemBody{
		Type: store.VaultItemTypeCard, EncryptedData: []byte("stolen"),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("update as other user: got %d, want 404", rec.Code)
	}

	items := decodeBody[[]VaultItemResponse](t, doJSON(t, srv, http.MethodGet, "/api/vault-items", other.AccessToken, nil))
	if len(items) != 0 {
		t.Errorf("other user's list: got %d items, want 0", len(items))
	}
}

func TestVaultItem_BadID(t *testing.T) {
	srv, _ := newTestServer(t)
	pair := loginNewUser(t, srv, "quinn")

	if rec := doJSON(t, srv, http.MethodGet, "/api/vault-items/not-a-uuid", pair.AccessToken, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: got %d, want 400", rec.Code)
	}
	if rec := doJSON(t, srv, http.MethodGet, "/api/vault-items/"+uuid.NewString(), pair.AccessToken, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", rec.Code)
	}
}
