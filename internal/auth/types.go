package auth

import (
	"context"
	"errors"
	"time"
)

// Identity is the caller a verified token describes.
type Identity struct {
	Subject   string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenOptions configures token signing and verification.
type TokenOptions struct {
	// Secret is the HMAC key shared by issuer and verifier.
	Secret string

	// Issuer is written into new tokens and, when non-empty, required on parse.
	Issuer string

	// Audience is written into new tokens and, when non-empty, required on parse.
	Audience string

	// TTL is the lifetime of generated tokens. Zero means defaultTokenTTL.
	TTL time.Duration
}

const defaultTokenTTL = 15 * time.Minute

// Sentinel errors for auth operations.
var (
	ErrTokenMissing = errors.New("auth: token missing")
	ErrTokenInvalid = errors.New("auth: invalid token")
	ErrNoSecret     = errors.New("auth: signing secret not configured")
)

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity) //nolint:errcheck // type assertion, nil when absent
	return id
}
