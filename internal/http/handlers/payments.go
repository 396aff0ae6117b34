package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"mesa-table-service/internal/middleware"
	"mesa-table-service/pkg/response"
)

type paymentProofRequest struct {
	TenantID    int64  `json:"tenantId"`
	TableNumber string `json:"tableNumber"`
	Method      string `json:"method"`
}

// PublicPaymentProof records a diner's "I have paid" claim against the table's
// active bill and pings the cashier to verify it.
func (h *Handler) PublicPaymentProof(w http.ResponseWriter, r *http.Request) {
	var req paymentProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.TenantID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenantId is required")
		return
	}

	confirmation, appErr := h.Settlement.SubmitProof(r.Context(), req.TenantID, strings.TrimSpace(req.TableNumber), strings.TrimSpace(req.Method))
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Created(w, confirmation)
}

type paymentResolveRequest struct {
	Decision string `json:"decision"`
}

func (h *Handler) StaffPaymentResolve(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid confirmation id")
		return
	}

	var req paymentResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	if appErr := h.Settlement.Resolve(r.Context(), authCtx.TenantID, id, decision); appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, map[string]any{"id": id, "decision": decision})
}
