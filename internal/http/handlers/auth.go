package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mesa-table-service/internal/auth"
	"mesa-table-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type staffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) StaffLogin(w http.ResponseWriter, r *http.Request) {
	var req staffLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password are required")
		return
	}

	var (
		userID       int64
		tenantID     int64
		name         string
		role         string
		passwordHash string
		userActive   bool
		tenantActive bool
	)
	err := h.DB.QueryRow(r.Context(), `
		select u.id, u.tenant_id, u.name, u.role, u.password_hash, u.is_active, t.is_active
		from staff_users u
		join tenants t on t.id = u.tenant_id
		where lower(u.email) = $1
	`, email).Scan(&userID, &tenantID, &name, &role, &passwordHash, &userActive, &tenantActive)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
		return
	}
	if err != nil {
		h.Logger.Error("staff login lookup failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "DEPENDENCY_FAILURE", "Login failed")
		return
	}

	if !auth.CheckPassword(passwordHash, req.Password) {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password")
		return
	}
	if !userActive {
		response.Error(w, http.StatusForbidden, "UNAUTHORIZED", "Staff access is disabled")
		return
	}
	if !tenantActive {
		response.Error(w, http.StatusForbidden, "UNAUTHORIZED", "Tenant is currently disabled")
		return
	}

	token, err := auth.IssueAccessToken(userID, tenantID, auth.UserRole(role), email, name, h.Config.JWTSecret, h.Config.JWTExpirySeconds)
	if err != nil {
		h.Logger.Error("staff token issue failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "DEPENDENCY_FAILURE", "Login failed")
		return
	}

	response.Success(w, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":       userID,
			"tenantId": tenantID,
			"name":     name,
			"email":    email,
			"role":     role,
		},
	})
}
