package projects

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var identityCtxKey = &contextKey{"identity"}
var claimsCtxKey = &contextKey{"claims"}

// LocalsIdentityKey is where the guard pipeline stores the caller on fiber.Ctx
const LocalsIdentityKey = "identity"

// LocalsClaimsKey is where the guard pipeline stores the verified claims
const LocalsClaimsKey = "claims"

type contextKey struct {
	name string
}

// WithIdentity sets the Identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok && raw != nil
}

// CurrentIdentity returns the identity stored by the guard pipeline
func CurrentIdentity(c *fiber.Ctx) (Identity, bool) {
	if identity, ok := c.Locals(LocalsIdentityKey).(Identity); ok && identity != nil {
		return identity, true
	}
	return IdentityFromContext(c.UserContext())
}

// CurrentClaims returns the verified claims stored by the guard pipeline
func CurrentClaims(c *fiber.Ctx) (AuthClaims, bool) {
	if claims, ok := c.Locals(LocalsClaimsKey).(AuthClaims); ok && claims != nil {
		return claims, true
	}
	return GetClaims(c.UserContext())
}

func storeIdentity(c *fiber.Ctx, identity Identity, claims AuthClaims) {
	c.Locals(LocalsIdentityKey, identity)
	c.Locals(LocalsClaimsKey, claims)

	ctx := WithIdentity(c.UserContext(), identity)
	ctx = WithClaimsContext(ctx, claims)
	c.SetUserContext(ctx)
}
