// Package auth implements the device-trust and session-issuance protocol.
//
// # Protocol
//
// A full login converts a username/password credential into a durable,
// device-bound session through three scoped token exchanges:
//
//  1. CredentialVerifier.Authenticate checks the client password hash
//     and yields a challenge-access token.
//  2. DeviceRegistry.FindOrRegister resolves the client's public key to
//     a device; ChallengeManager.Issue encrypts a one-time challenge to
//     that key and yields a session-access token.
//  3. ChallengeManager.VerifyResponse checks the decrypted challenge
//     byte-for-byte; SessionManager.CreateOrRotate then mints the
//     access/refresh token pair, rotating any prior refresh token for
//     the (user, device) pair.
//
// Later requests carry the access token through the Gate middleware;
// SessionManager.Refresh exchanges a refresh token for a new access
// token without rotating the stored refresh value.
//
// # Token Scopes
//
// Every stage signs with its own secret (TokenCodec): challenge-access,
// session-access, access, refresh, and email-verification. A token
// issued for one stage fails validation at any other, so leaking a
// single stage token never shortcuts the rest of the protocol.
//
// # Error Handling
//
// Failures fail closed and map onto the HTTP boundary as follows:
// unknown user/device → 404, bad credentials or token problems → 401,
// expired or mismatched challenges → 403, malformed payloads → 400.
// Token errors are reported generically at the boundary; logs retain
// the specific cause.
package auth
