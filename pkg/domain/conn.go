package domain

import (
	"context"
	"net/http"
)

// Conn is one live push-transport instance to a single client.
type Conn interface {
	// Send writes an already-encoded frame to the client. A returned error
	// means the transport is broken and the connection should be pruned.
	Send(ctx context.Context, frame []byte) error

	// Close closes the underlying transport. Safe to call more than once.
	Close() error
}

// Identity is the authenticated principal behind a connection. Anonymous
// connections on public channels carry an empty UserID.
type Identity struct {
	UserID string
	Role   string
}

// Authenticator is the identity/session collaborator consulted before a
// client is admitted to the registry. The core treats its answer as an
// opaque precondition.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(r *http.Request) (Identity, error)

func (f AuthenticatorFunc) Authenticate(r *http.Request) (Identity, error) {
	return f(r)
}
