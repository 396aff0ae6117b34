package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"mesa-table-service/internal/middleware"
	"mesa-table-service/internal/orders"
	"mesa-table-service/pkg/response"
)

type publicOrderCreateRequest struct {
	TenantID    int64             `json:"tenantId"`
	TableNumber string            `json:"tableNumber"`
	Items       []orders.CartItem `json:"items"`
}

// PublicOrderCreate accepts a diner's cart and parks it for staff approval.
// Nothing touches the table bill until staff approve.
func (h *Handler) PublicOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req publicOrderCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.TenantID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenantId is required")
		return
	}

	pending, appErr := h.Intake.Submit(r.Context(), req.TenantID, strings.TrimSpace(req.TableNumber), req.Items)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Created(w, pending)
}

func (h *Handler) StaffOrdersPending(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	pending, appErr := h.Intake.Pending(r.Context(), authCtx.TenantID)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, pending)
}

func (h *Handler) StaffOrderApprove(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	order, appErr := h.Coordinator.Approve(r.Context(), authCtx.TenantID, id)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, order)
}

func (h *Handler) StaffOrderReject(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	if appErr := h.Coordinator.Reject(r.Context(), authCtx.TenantID, id); appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, map[string]any{"rejected": true})
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) StaffOrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}

	var req orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if appErr := h.Coordinator.UpdateStatus(r.Context(), authCtx.TenantID, id, status); appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, map[string]any{"id": id, "status": status})
}
