package rbac

import "context"

type principalContextKey struct{}

type permissionContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal, nil when anonymous.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// ContextWithPermission stamps the route's required permission identifier.
// The stamping stage must run before Authorize; the route declarations make
// that ordering explicit.
func ContextWithPermission(ctx context.Context, perm string) context.Context {
	return context.WithValue(ctx, permissionContextKey{}, perm)
}

// PermissionFromContext returns the stamped identifier, empty when none.
func PermissionFromContext(ctx context.Context) string {
	perm, _ := ctx.Value(permissionContextKey{}).(string)
	return perm
}
