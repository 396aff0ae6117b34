package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"mesa-table-service/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID   int64
	TenantID int64
	Role     auth.UserRole
	Email    string
	IsOwner  bool
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	writeAuthErrorDebug(w, status, message, "")
}

func writeAuthErrorDebug(w http.ResponseWriter, status int, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth guards the staff API: a valid token, a live staff account and an
// active tenant are all required on every request.
func StaffAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Authorization token required", err.Error())
				return
			}

			if claims.Role != auth.RoleTenantOwner && claims.Role != auth.RoleTenantStaff {
				writeAuthError(w, http.StatusForbidden, "Staff access required")
				return
			}

			if claims.TenantID == nil {
				writeAuthError(w, http.StatusUnauthorized, "Tenant not found")
				return
			}
			tenantID, err := parseInt64(*claims.TenantID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Tenant not found")
				return
			}
			userID, err := parseInt64(claims.UserID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			var (
				role         string
				userActive   bool
				tenantActive bool
			)
			query := `
				select u.role, u.is_active, t.is_active
				from staff_users u
				join tenants t on t.id = u.tenant_id
				where u.id = $1 and u.tenant_id = $2
			`
			err = db.QueryRow(r.Context(), query, userID, tenantID).Scan(&role, &userActive, &tenantActive)
			if err != nil {
				writeAuthErrorDebug(w, http.StatusUnauthorized, "Staff access required", err.Error())
				return
			}

			if !userActive {
				writeAuthError(w, http.StatusForbidden, "Staff access is disabled")
				return
			}
			if !tenantActive {
				writeAuthError(w, http.StatusForbidden, "Tenant is currently disabled")
				return
			}

			authCtx := &AuthContext{
				UserID:   userID,
				TenantID: tenantID,
				Role:     claims.Role,
				Email:    claims.Email,
				IsOwner:  claims.Role == auth.RoleTenantOwner,
			}

			ctx := WithAuthContext(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseInt64(value string) (int64, error) {
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}
