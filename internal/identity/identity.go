// internal/identity/identity.go
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Resolver answers "who is making this request". Implementations return the
// holder id or an error when no identity can be established; the reservation
// service maps that to its unauthenticated error.
type Resolver interface {
	CurrentHolder(ctx context.Context) (uuid.UUID, error)
}

type contextKey struct{}

// WithHolder returns a context carrying the authenticated holder id.
func WithHolder(ctx context.Context, holderID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, holderID)
}

// HolderFrom extracts the holder id placed on the context by the middleware.
func HolderFrom(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok
}

// ContextResolver resolves the caller from the request context.
type ContextResolver struct{}

func (ContextResolver) CurrentHolder(ctx context.Context) (uuid.UUID, error) {
	id, ok := HolderFrom(ctx)
	if !ok {
		return uuid.Nil, ErrNoIdentity
	}
	return id, nil
}
