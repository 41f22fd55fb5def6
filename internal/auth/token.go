// ABOUTME: Scoped JWT issuance and validation for the login protocol stages
// ABOUTME: Each scope signs with a distinct HS256 secret so tokens cannot cross stages

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrTTLTooLong   = errors.New("requested ttl exceeds maximum")
)

// MaxRefreshTTL is the hard upper bound on refresh token lifetime.
// Issuance requests above it are rejected.
const MaxRefreshTTL = 3 * time.Hour

// Scope identifies which stage of the login protocol a token belongs to.
// Every scope is signed with its own secret, so a token presented at a
// different stage fails signature validation even though the claim shape
// is identical.
type Scope string

const (
	ScopeChallenge Scope = "challenge-access"
	ScopeSession   Scope = "session-access"
	ScopeAccess    Scope = "access"
	ScopeRefresh   Scope = "refresh"
	ScopeEmail     Scope = "email-verification"
)

// Secrets holds the per-scope signing keys. All five must be distinct;
// config validation enforces that before the codec is built.
type Secrets struct {
	Challenge []byte
	Session   []byte
	Access    []byte
	Refresh   []byte
	Email     []byte
}

// Claims is the verified content of a token: the subject user and,
// for device-bound scopes, the device.
type Claims struct {
	UserID   uuid.UUID
	DeviceID uuid.UUID // uuid.Nil when the scope carries no device
}

// TokenCodec issues and validates scoped tokens
type TokenCodec struct {
	secrets map[Scope][]byte
}

// NewTokenCodec creates a codec from the per-scope secrets
func NewTokenCodec(secrets Secrets) *TokenCodec {
	return &TokenCodec{
		secrets: map[Scope][]byte{
			ScopeChallenge: secrets.Challenge,
			ScopeSession:   secrets.Session,
			ScopeAccess:    secrets.Access,
			ScopeRefresh:   secrets.Refresh,
			ScopeEmail:     secrets.Email,
		},
	}
}

// Issue creates a signed token for the given scope and subject.
// deviceID may be uuid.Nil for scopes issued before a device is known
// (challenge-access, email-verification). Refresh tokens are capped at
// MaxRefreshTTL.
func (c *TokenCodec) Issue(scope Scope, userID uuid.UUID, deviceID uuid.UUID, ttl time.Duration) (string, error) {
	secret, ok := c.secrets[scope]
	if !ok {
		return "", fmt.Errorf("unknown token scope %q", scope)
	}
	if scope == ScopeRefresh && ttl > MaxRefreshTTL {
		return "", fmt.Errorf("%w: %s > %s", ErrTTLTooLong, ttl, MaxRefreshTTL)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if deviceID != uuid.Nil {
		claims["deviceId"] = deviceID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Validate checks the token's signature, algorithm, and expiry against
// the given scope's secret, then extracts the subject and device claims.
// Expiry is enforced with zero clock-skew tolerance.
func (c *TokenCodec) Validate(tokenString string, scope Scope) (*Claims, error) {
	secret, ok := c.secrets[scope]
	if !ok {
		return nil, fmt.Errorf("unknown token scope %q", scope)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, ok := mapClaims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: sub is not a uuid", ErrInvalidToken)
	}

	claims := &Claims{UserID: userID}
	if raw, ok := mapClaims["deviceId"]; ok {
		str, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: deviceId is not a string", ErrInvalidToken)
		}
		claims.DeviceID, err = uuid.Parse(str)
		if err != nil {
			return nil, fmt.Errorf("%w: deviceId is not a uuid", ErrInvalidToken)
		}
	}

	return claims, nil
}

// ValidateWithDevice is Validate plus a requirement that the deviceId
// claim is present. Session, access, and refresh tokens are device-bound.
func (c *TokenCodec) ValidateWithDevice(tokenString string, scope Scope) (*Claims, error) {
	claims, err := c.Validate(tokenString, scope)
	if err != nil {
		return nil, err
	}
	if claims.DeviceID == uuid.Nil {
		return nil, fmt.Errorf("%w: deviceId", ErrMissingClaim)
	}
	return claims, nil
}
