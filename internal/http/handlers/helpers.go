package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"mesa-table-service/internal/apperr"
	"mesa-table-service/pkg/response"

	"github.com/go-chi/chi/v5"
)

func writeErr(w http.ResponseWriter, appErr *apperr.Error) {
	response.Error(w, appErr.StatusCode, string(appErr.Code), appErr.Message)
}

func idParam(r *http.Request, name string) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func tenantQueryParam(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("tenantId"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
