// Package server exposes vaultgate over HTTP.
//
// # Routes
//
// The login protocol lives under /api/sessions:
//
//   - POST /api/sessions/credentials — verify the client password digest,
//     returns a challenge-access token
//   - POST /api/sessions/challenges — register or look up the device by
//     its public key, returns an encrypted challenge and a session-access
//     token
//   - POST /api/sessions — verify the decrypted challenge, returns the
//     access/refresh token pair
//   - POST /api/sessions/tokens/refresh-tokens — exchange a refresh token
//     for a fresh access token
//
// Accounts live under /api/users (registration and email verification
// are public; /api/users/me requires an access token), and encrypted
// vault items under /api/vault-items.
//
// # Middleware
//
// Requests flow through the metrics middleware (when enabled) and then
// the auth gate before reaching the mux. The gate rejects anything
// without a valid access token unless the route is on the public
// allow-list.
//
// # Error Mapping
//
// Domain errors are translated in respond.go. All token and credential
// failures collapse to a generic 401 at the boundary; the specific
// cause is only logged.
//
// # Background Work
//
// Sweeper runs the periodic hygiene sweep: stale device challenges are
// cleared and vault items trashed past the retention window are purged.
package server
