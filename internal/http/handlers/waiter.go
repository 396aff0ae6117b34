package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"mesa-table-service/pkg/response"
)

type waiterCallRequest struct {
	TenantID    int64  `json:"tenantId"`
	TableNumber string `json:"tableNumber"`
	Note        string `json:"note"`
}

func (h *Handler) PublicWaiterCall(w http.ResponseWriter, r *http.Request) {
	var req waiterCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if req.TenantID <= 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "tenantId is required")
		return
	}

	if appErr := h.Intake.CallWaiter(r.Context(), req.TenantID, strings.TrimSpace(req.TableNumber), strings.TrimSpace(req.Note)); appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Created(w, map[string]any{"called": true})
}
