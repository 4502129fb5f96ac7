package web

import (
	"context"

	"github.com/and161185/patient-registry/internal/model"
)

type ctxKey string

const identityKey ctxKey = "pr.identity"

// WithIdentity stores the authenticated caller in context.
func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromCtx fetches the caller from context; nil means anonymous.
func IdentityFromCtx(ctx context.Context) *model.Identity {
	id, _ := ctx.Value(identityKey).(*model.Identity)
	return id
}
