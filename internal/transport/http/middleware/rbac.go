package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"apar/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission checks the caller's role id first and falls back to the
// role name, so tokens minted without a database role id still resolve.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			allowed, err := hasPermission(r.Context(), store, user.RoleID, user.RoleName, permission)
			if err != nil {
				slog.Warn("permission check failed", "permission", permission, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
				return
			}
			if !allowed {
				api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasPermission(ctx context.Context, store PermissionStore, roleID, roleName, permission string) (bool, error) {
	if roleID != "" {
		allowed, err := store.HasPermission(ctx, roleID, permission)
		if err != nil || allowed {
			return allowed, err
		}
	}
	if roleName != "" && roleName != roleID {
		return store.HasPermission(ctx, roleName, permission)
	}
	return false, nil
}
