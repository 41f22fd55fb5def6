// ABOUTME: Credential verification against the server-side password hash
// ABOUTME: Re-derives PBKDF2(clientHash+pepper, salt) and compares in constant time

package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/hollowgrove/vaultgate/internal/store"
)

// ErrInvalidCredentials is returned when the supplied password hash does
// not match the stored server-side hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier checks a client-supplied password digest against
// the stored server-side hash. The client hash is already derived from
// the plaintext password on the client; the server never sees plaintext.
type CredentialVerifier struct {
	users  store.UserStore
	pepper []byte
	logger *slog.Logger
}

// NewCredentialVerifier creates a verifier backed by the given user store
func NewCredentialVerifier(users store.UserStore, pepper string) *CredentialVerifier {
	return &CredentialVerifier{
		users:  users,
		pepper: []byte(pepper),
		logger: slog.Default().With("component", "auth.credentials"),
	}
}

// DeriveServerHash computes the stored server-side hash from a client
// password hash: PBKDF2-SHA256 over clientHash||pepper with the per-user
// salt and the iteration/key-length parameters recorded for that user.
// Registration and verification must use the same derivation.
func DeriveServerHash(clientHash string, pepper, salt []byte, iterations, keyLength int) string {
	material := append([]byte(clientHash), pepper...)
	key := pbkdf2.Key(material, salt, iterations, keyLength, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// Authenticate looks up the user by username or email and verifies the
// client password hash. Returns the user's ID on success.
// Returns store.ErrNotFound for unknown users and ErrInvalidCredentials
// for a hash mismatch.
func (v *CredentialVerifier) Authenticate(ctx context.Context, usernameOrEmail, clientPasswordHash string) (uuid.UUID, error) {
	user, err := v.users.GetUserByLogin(ctx, usernameOrEmail)
	if err != nil {
		return uuid.Nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(user.Salt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decoding stored salt: %w", err)
	}

	derived := DeriveServerHash(clientPasswordHash, v.pepper, salt, user.KDF.Iterations, user.KDF.KeyLength)
	if subtle.ConstantTimeCompare([]byte(derived), []byte(user.PasswordHash)) != 1 {
		v.logger.Debug("credential mismatch", "user_id", user.ID)
		return uuid.Nil, ErrInvalidCredentials
	}

	return user.ID, nil
}
