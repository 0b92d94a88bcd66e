package auth

import (
	"context"

	"github.com/me/folio/pkg/model"
)

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext retrieves the identity placed by the gate, or nil.
func IdentityFromContext(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityContextKey).(*model.Identity)
	return id
}
