package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mesa-table-service/internal/dayclose"
	"mesa-table-service/internal/middleware"
	"mesa-table-service/pkg/response"
)

// StaffDayClose snapshots today's trading into a day report. Closing twice
// produces two reports; the caller decides when the day is really over.
func (h *Handler) StaffDayClose(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var cashier dayclose.CashierInfo
	if err := json.NewDecoder(r.Body).Decode(&cashier); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	report, appErr := h.DayClose.CloseDay(r.Context(), authCtx.TenantID, cashier)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Created(w, report)
}

func (h *Handler) StaffDayReport(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid report id")
		return
	}

	report, appErr := h.DayClose.Report(r.Context(), authCtx.TenantID, id)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	response.Success(w, report)
}

func (h *Handler) StaffDayReportPDF(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid report id")
		return
	}

	pdf, appErr := h.DayClose.ReportPDF(r.Context(), authCtx.TenantID, id)
	if appErr != nil {
		writeErr(w, appErr)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="day-report-%d.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
