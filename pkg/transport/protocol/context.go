package protocol

import (
	"context"

	"github.com/galleralive/realtime/pkg/domain"
)

type contextKey string

const (
	identityKey     contextKey = "identity"
	connectionIDKey contextKey = "connection_id"
)

// WithIdentity stores the authenticated identity of the calling connection.
func WithIdentity(ctx context.Context, ident domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext retrieves the calling identity.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(domain.Identity)
	return ident, ok
}

// WithConnectionID stores the registry id of the calling connection.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, connectionIDKey, id)
}

// ConnectionIDFromContext retrieves the calling connection id.
func ConnectionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(connectionIDKey).(string)
	return id, ok
}
