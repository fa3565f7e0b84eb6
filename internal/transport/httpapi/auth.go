package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JuanCabardoneschi/clip-search-api/internal/domain"
)

// APIKeyHeader carries the tenant credential on every search request.
const APIKeyHeader = "X-API-Key"

// TenantResolver maps an API key to its tenant.
type TenantResolver interface {
	TenantByAPIKey(ctx context.Context, apiKey string) (domain.Tenant, error)
}

type ctxKey int

const (
	tenantKey ctxKey = iota
	apiKeyKey
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyMiddleware resolves X-API-Key to a tenant and stores it in the
// request context. Missing keys get 401; unknown or inactive tenants 403.
func APIKeyMiddleware(resolver TenantResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "missing_api_key", "missing X-API-Key header")
				return
			}

			tenant, err := resolver.TenantByAPIKey(r.Context(), apiKey)
			switch {
			case errors.Is(err, domain.ErrTenantNotFound):
				writeError(w, http.StatusForbidden, "invalid_api_key", "invalid API key")
				return
			case err != nil:
				logger.Error("tenant resolution failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				return
			case !tenant.Active:
				writeError(w, http.StatusForbidden, "tenant_inactive", "tenant is inactive")
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, tenant)
			ctx = context.WithValue(ctx, apiKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFromContext returns the tenant stored by APIKeyMiddleware.
func TenantFromContext(ctx context.Context) (domain.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(domain.Tenant)
	return t, ok
}

// APIKeyFromContext returns the raw API key stored by APIKeyMiddleware.
func APIKeyFromContext(ctx context.Context) string {
	k, _ := ctx.Value(apiKeyKey).(string)
	return k
}
