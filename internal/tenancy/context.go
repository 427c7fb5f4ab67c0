// Package tenancy carries the tenant identity through request contexts.
package tenancy

import (
	"context"
	"net/http"
)

type ctxKey string

const tenantKey ctxKey = "leadrail.tenant_id"

// WithTenantID stores the tenant id in context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantIDFromContext extracts the tenant id if present.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(tenantKey)
	if val == nil {
		return "", false
	}
	tenantID, ok := val.(string)
	return tenantID, ok && tenantID != ""
}

// Middleware stashes the deployment's configured tenant in every request
// context. Webhook routes are unauthenticated, so nothing request-supplied
// (headers included) may select the tenant.
func Middleware(tenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), tenant)))
		})
	}
}
