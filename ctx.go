package auth

import (
	"context"

	"github.com/IngAlexfit/caribeVibes-system-sub001/middleware/jwtware"
)

var principalCtxKey = &contextKey{"principal"}

type contextKey struct {
	name string
}

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok && raw != nil
}

// HasRole is a convenience function to check a role of the principal in ctx
func HasRole(ctx context.Context, role string) bool {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return p.HasRole(role)
}

func enrichContext(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	if p, ok := claims.(*Principal); ok {
		return WithPrincipal(ctx, p)
	}
	return ctx
}
