// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user CRUD, device challenges, sessions, vault items, and settings

package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testUser(username, email string) *User {
	return &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: "aGFzaA==",
		Salt:         "c2FsdA==",
		KDF: KDFParams{
			Algorithm:   "argon2id",
			Iterations:  3,
			KeyLength:   32,
			MemoryKB:    65536,
			Parallelism: 4,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func testDevice() *Device {
	return &Device{
		ID:          uuid.New(),
		Fingerprint: uuid.NewString(),
		PublicKey:   []byte("-----BEGIN PUBLIC KEY-----\nfake\n-----END PUBLIC KEY-----\n"),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("alice", "alice@example.com")
	user.EncryptedVaultBlob = []byte{0x01, 0x02, 0x03}

	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	if got.Username != "alice" {
		t.Errorf("Username mismatch: got %q, want %q", got.Username, "alice")
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email mismatch: got %q, want %q", got.Email, "alice@example.com")
	}
	if got.KDF.Algorithm != "argon2id" || got.KDF.MemoryKB != 65536 {
		t.Errorf("KDF params not preserved: got %+v", got.KDF)
	}
	if got.EmailVerified {
		t.Error("new user should not be email verified")
	}
	if string(got.EncryptedVaultBlob) != string(user.EncryptedVaultBlob) {
		t.Error("vault blob mismatch")
	}
	if !got.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, user.CreatedAt)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("bob", "bob@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := store.CreateUser(ctx, testUser("bob", "other@example.com"))
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateUser(ctx, testUser("carol", "carol@example.com")); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := store.CreateUser(ctx, testUser("carol2", "carol@example.com"))
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestGetUserByLogin(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("dave", "dave@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byUsername, err := store.GetUserByLogin(ctx, "dave")
	if err != nil {
		t.Fatalf("GetUserByLogin by username failed: %v", err)
	}
	if byUsername.ID != user.ID {
		t.Error("lookup by username returned wrong user")
	}

	byEmail, err := store.GetUserByLogin(ctx, "dave@example.com")
	if err != nil {
		t.Fatalf("GetUserByLogin by email failed: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Error("lookup by email returned wrong user")
	}

	if _, err := store.GetUserByLogin(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkEmailVerified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("erin", "erin@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := store.MarkEmailVerified(ctx, user.ID); err != nil {
		t.Fatalf("MarkEmailVerified failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !got.EmailVerified {
		t.Error("email_verified flag not set")
	}

	if err := store.MarkEmailVerified(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("frank", "frank@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	newBlob := []byte{0xde, 0xad}
	if err := store.UpdateUserProfile(ctx, user.ID, "franklin", newBlob); err != nil {
		t.Fatalf("UpdateUserProfile failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "franklin" {
		t.Errorf("username not updated: got %q", got.Username)
	}
	if string(got.EncryptedVaultBlob) != string(newBlob) {
		t.Error("vault blob not updated")
	}
}

func TestDeleteUser_Cascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("grace", "grace@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("challenge"), time.Now()); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}
	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("challenge")); err != nil {
		t.Fatalf("ConsumeDeviceChallenge failed: %v", err)
	}

	session := &Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		DeviceID:     device.ID,
		RefreshToken: "tok",
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.UpsertSession(ctx, session); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	item := &VaultItem{
		ID:            uuid.New(),
		UserID:        user.ID,
		Type:          VaultItemTypeLogin,
		EncryptedData: []byte("secret"),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := store.CreateVaultItem(ctx, item); err != nil {
		t.Fatalf("CreateVaultItem failed: %v", err)
	}

	if err := store.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if _, err := store.GetUser(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("user should be gone, got %v", err)
	}
	if _, err := store.GetSession(ctx, user.ID, device.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("session should be gone, got %v", err)
	}
	if _, err := store.GetVaultItem(ctx, user.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("vault item should be gone, got %v", err)
	}
	if _, err := store.GetUserSettings(ctx, user.ID, device.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("settings should be gone, got %v", err)
	}

	// Devices are root entities and survive account deletion
	if _, err := store.GetDevice(ctx, device.ID); err != nil {
		t.Errorf("device should survive user deletion, got %v", err)
	}
}

func TestCreateDevice_DuplicateFingerprint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	dup := testDevice()
	dup.Fingerprint = device.Fingerprint
	if err := store.CreateDevice(ctx, dup); !errors.Is(err, ErrDuplicateDevice) {
		t.Errorf("expected ErrDuplicateDevice, got %v", err)
	}
}

func TestGetDeviceByFingerprint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	got, err := store.GetDeviceByFingerprint(ctx, device.Fingerprint)
	if err != nil {
		t.Fatalf("GetDeviceByFingerprint failed: %v", err)
	}
	if got.ID != device.ID {
		t.Error("wrong device returned")
	}
	if got.PendingChallenge != nil {
		t.Error("new device should have no pending challenge")
	}

	if _, err := store.GetDeviceByFingerprint(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetDeviceChallenge_ReplacesPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	first := time.Now().UTC().Truncate(time.Second)
	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("first"), first); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}

	second := first.Add(time.Minute)
	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("second"), second); err != nil {
		t.Fatalf("SetDeviceChallenge replace failed: %v", err)
	}

	got, err := store.GetDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if string(got.PendingChallenge) != "second" {
		t.Errorf("pending challenge not replaced: got %q", got.PendingChallenge)
	}
	if got.ChallengeIssuedAt == nil || !got.ChallengeIssuedAt.Equal(second) {
		t.Errorf("challenge_issued_at mismatch: got %v", got.ChallengeIssuedAt)
	}
}

func TestConsumeDeviceChallenge_ExactlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("henry", "henry@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("once"), time.Now()); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}

	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("once")); err != nil {
		t.Fatalf("first ConsumeDeviceChallenge failed: %v", err)
	}

	// Second consumption of the same challenge must fail
	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("once")); !errors.Is(err, ErrChallengeConsumed) {
		t.Errorf("expected ErrChallengeConsumed, got %v", err)
	}

	got, err := store.GetDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if got.PendingChallenge != nil {
		t.Error("pending challenge should be cleared")
	}
	if got.LastSeen == nil {
		t.Error("last_seen should be set after consumption")
	}

	// Default settings row created with the link
	settings, err := store.GetUserSettings(ctx, user.ID, device.ID)
	if err != nil {
		t.Fatalf("GetUserSettings failed: %v", err)
	}
	if settings.SessionTimeoutMinutes != 3 || settings.Theme != "dark" {
		t.Errorf("unexpected default settings: %+v", settings)
	}
}

func TestConsumeDeviceChallenge_SupersededBytes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("hugo", "hugo@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("first"), time.Now()); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}
	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("second"), time.Now()); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}

	// Consuming with the replaced bytes must fail and leave the
	// replacement untouched
	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("first")); !errors.Is(err, ErrChallengeConsumed) {
		t.Fatalf("expected ErrChallengeConsumed for superseded bytes, got %v", err)
	}
	got, err := store.GetDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if string(got.PendingChallenge) != "second" {
		t.Fatalf("current challenge lost: got %q", got.PendingChallenge)
	}

	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("second")); err != nil {
		t.Errorf("consuming current challenge failed: %v", err)
	}
}

func TestConsumeDeviceChallenge_Relink(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("iris", "iris@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	// Linking the same pair twice (two full logins) is idempotent
	for i := 0; i < 2; i++ {
		if err := store.SetDeviceChallenge(ctx, device.ID, []byte("c"), time.Now()); err != nil {
			t.Fatalf("SetDeviceChallenge failed: %v", err)
		}
		if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("c")); err != nil {
			t.Fatalf("ConsumeDeviceChallenge round %d failed: %v", i, err)
		}
	}
}

func TestConsumeDeviceChallenge_PreservesSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("jack", "jack@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("c"), time.Now()); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}
	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("c")); err != nil {
		t.Fatalf("ConsumeDeviceChallenge failed: %v", err)
	}

	custom := &UserSettings{UserID: user.ID, DeviceID: device.ID, SessionTimeoutMinutes: 15, Theme: "light"}
	if err := store.ReplaceUserSettings(ctx, custom); err != nil {
		t.Fatalf("ReplaceUserSettings failed: %v", err)
	}

	// A later full login must not reset customized settings
	if err := store.SetDeviceChallenge(ctx, device.ID, []byte("c2"), time.Now()); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}
	if err := store.ConsumeDeviceChallenge(ctx, user.ID, device.ID, []byte("c2")); err != nil {
		t.Fatalf("ConsumeDeviceChallenge failed: %v", err)
	}

	got, err := store.GetUserSettings(ctx, user.ID, device.ID)
	if err != nil {
		t.Fatalf("GetUserSettings failed: %v", err)
	}
	if got.SessionTimeoutMinutes != 15 || got.Theme != "light" {
		t.Errorf("settings were reset: %+v", got)
	}
}

func TestDeleteStaleChallenges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := testDevice()
	fresh := testDevice()
	for _, d := range []*Device{stale, fresh} {
		if err := store.CreateDevice(ctx, d); err != nil {
			t.Fatalf("CreateDevice failed: %v", err)
		}
	}

	now := time.Now().UTC()
	if err := store.SetDeviceChallenge(ctx, stale.ID, []byte("old"), now.Add(-time.Hour)); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}
	if err := store.SetDeviceChallenge(ctx, fresh.ID, []byte("new"), now); err != nil {
		t.Fatalf("SetDeviceChallenge failed: %v", err)
	}

	count, err := store.DeleteStaleChallenges(ctx, now.Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("DeleteStaleChallenges failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 cleared challenge, got %d", count)
	}

	gotStale, _ := store.GetDevice(ctx, stale.ID)
	if gotStale.PendingChallenge != nil {
		t.Error("stale challenge not cleared")
	}
	gotFresh, _ := store.GetDevice(ctx, fresh.ID)
	if string(gotFresh.PendingChallenge) != "new" {
		t.Error("fresh challenge should survive")
	}
}

func TestUpsertSession_RotatesToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("kate", "kate@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	device := testDevice()
	if err := store.CreateDevice(ctx, device); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	first := &Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		DeviceID:     device.ID,
		RefreshToken: "first-token",
		IPAddress:    "10.0.0.1",
		UserAgent:    "client/1.0",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := store.UpsertSession(ctx, first); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	second := &Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		DeviceID:     device.ID,
		RefreshToken: "second-token",
		IPAddress:    "10.0.0.2",
		UserAgent:    "client/2.0",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := store.UpsertSession(ctx, second); err != nil {
		t.Fatalf("UpsertSession replace failed: %v", err)
	}

	got, err := store.GetSession(ctx, user.ID, device.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.RefreshToken != "second-token" {
		t.Errorf("refresh token not rotated: got %q", got.RefreshToken)
	}
	if got.IPAddress != "10.0.0.2" || got.UserAgent != "client/2.0" {
		t.Errorf("session metadata not replaced: %+v", got)
	}
	// The original row id is kept on conflict
	if got.ID != first.ID {
		t.Errorf("session row id changed: got %v, want %v", got.ID, first.ID)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVaultItemLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("lena", "lena@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	item := &VaultItem{
		ID:            uuid.New(),
		UserID:        user.ID,
		Type:          VaultItemTypeNote,
		EncryptedData: []byte("ciphertext"),
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := store.CreateVaultItem(ctx, item); err != nil {
		t.Fatalf("CreateVaultItem failed: %v", err)
	}

	active, err := store.ListVaultItems(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListVaultItems failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active item, got %d", len(active))
	}

	// Update
	item.Type = VaultItemTypeCard
	item.EncryptedData = []byte("new-ciphertext")
	item.UpdatedAt = item.UpdatedAt.Add(time.Minute)
	if err := store.UpdateVaultItem(ctx, item); err != nil {
		t.Fatalf("UpdateVaultItem failed: %v", err)
	}

	got, err := store.GetVaultItem(ctx, user.ID, item.ID)
	if err != nil {
		t.Fatalf("GetVaultItem failed: %v", err)
	}
	if got.Type != VaultItemTypeCard || string(got.EncryptedData) != "new-ciphertext" {
		t.Errorf("item not updated: %+v", got)
	}

	// Trash
	if err := store.TrashVaultItem(ctx, user.ID, item.ID); err != nil {
		t.Fatalf("TrashVaultItem failed: %v", err)
	}
	active, _ = store.ListVaultItems(ctx, user.ID)
	if len(active) != 0 {
		t.Errorf("trashed item still listed as active")
	}
	trashed, err := store.ListTrashedVaultItems(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListTrashedVaultItems failed: %v", err)
	}
	if len(trashed) != 1 || trashed[0].DeletedAt == nil {
		t.Fatalf("expected 1 trashed item with deleted_at set, got %+v", trashed)
	}

	// Trashed items refuse updates
	if err := store.UpdateVaultItem(ctx, item); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound updating trashed item, got %v", err)
	}

	// Restore
	if err := store.RestoreVaultItem(ctx, user.ID, item.ID); err != nil {
		t.Fatalf("RestoreVaultItem failed: %v", err)
	}
	active, _ = store.ListVaultItems(ctx, user.ID)
	if len(active) != 1 {
		t.Errorf("restored item not listed as active")
	}

	// Active items cannot be purged directly
	if err := store.PurgeVaultItem(ctx, user.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound purging active item, got %v", err)
	}

	// Trash then purge
	if err := store.TrashVaultItem(ctx, user.ID, item.ID); err != nil {
		t.Fatalf("TrashVaultItem failed: %v", err)
	}
	if err := store.PurgeVaultItem(ctx, user.ID, item.ID); err != nil {
		t.Fatalf("PurgeVaultItem failed: %v", err)
	}
	if _, err := store.GetVaultItem(ctx, user.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("purged item still present, got %v", err)
	}
}

func TestVaultItem_OwnershipScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := testUser("mona", "mona@example.com")
	other := testUser("nick", "nick@example.com")
	for _, u := range []*User{owner, other} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	item := &VaultItem{
		ID:            uuid.New(),
		UserID:        owner.ID,
		Type:          VaultItemTypeLogin,
		EncryptedData: []byte("x"),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := store.CreateVaultItem(ctx, item); err != nil {
		t.Fatalf("CreateVaultItem failed: %v", err)
	}

	if _, err := store.GetVaultItem(ctx, other.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user read should be ErrNotFound, got %v", err)
	}
	if err := store.TrashVaultItem(ctx, other.ID, item.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user trash should be ErrNotFound, got %v", err)
	}
}

func TestPurgeTrashedBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := testUser("olga", "olga@example.com")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	old := time.Now().UTC().Add(-48 * time.Hour)
	oldItem := &VaultItem{
		ID:            uuid.New(),
		UserID:        user.ID,
		Type:          VaultItemTypeNote,
		EncryptedData: []byte("old"),
		CreatedAt:     old,
		UpdatedAt:     old,
		DeletedAt:     &old,
	}
	if err := store.CreateVaultItem(ctx, oldItem); err != nil {
		t.Fatalf("CreateVaultItem failed: %v", err)
	}

	recent := &VaultItem{
		ID:            uuid.New(),
		UserID:        user.ID,
		Type:          VaultItemTypeNote,
		EncryptedData: []byte("recent"),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := store.CreateVaultItem(ctx, recent); err != nil {
		t.Fatalf("CreateVaultItem failed: %v", err)
	}
	if err := store.TrashVaultItem(ctx, user.ID, recent.ID); err != nil {
		t.Fatalf("TrashVaultItem failed: %v", err)
	}

	count, err := store.PurgeTrashedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeTrashedBefore failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 purged item, got %d", count)
	}

	trashed, _ := store.ListTrashedVaultItems(ctx, user.ID)
	if len(trashed) != 1 || trashed[0].ID != recent.ID {
		t.Errorf("recently trashed item should survive the sweep")
	}
}

func TestReplaceUserSettings_NotLinked(t *testing.T) {
	store := newTestStore(t)

	settings := &UserSettings{
		UserID:                uuid.New(),
		DeviceID:              uuid.New(),
		SessionTimeoutMinutes: 5,
		Theme:                 "light",
	}
	err := store.ReplaceUserSettings(context.Background(), settings)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
