package escrow

import (
	"context"

	"github.com/goliatone/go-router"
)

var actorCtxKey = &contextKey{"actor"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithActorContext sets the Actor in the given context
func WithActorContext(r context.Context, actor Actor) context.Context {
	return context.WithValue(r, actorCtxKey, actor)
}

// ActorFromContext finds the actor in the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	raw, ok := ctx.Value(actorCtxKey).(Actor)
	return raw, ok
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetRouterClaims extracts the AuthClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// ActorFromRouter resolves the acting principal for a request. A missing
// or foreign claims value yields the zero Actor, which the state machine
// rejects as unauthenticated.
func ActorFromRouter(ctx router.Context, key string) Actor {
	claims, ok := GetRouterClaims(ctx, key)
	if !ok {
		return Actor{}
	}
	return ActorFromClaims(claims)
}
