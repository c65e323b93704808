package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/export"
	"github.com/courtcut/courtcut-agent/internal/pipeline"
)

// writeServiceError maps domain errors to status codes. Unknown errors are
// logged and reported generically so driver messages never reach the UI.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var pe *pipeline.Error
	switch {
	case errors.As(err, &pe):
		status := http.StatusBadRequest
		switch pe.Code {
		case pipeline.CodeCreationInProgress:
			status = http.StatusConflict
		case pipeline.CodeSystemCheckFailed:
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, ErrorResponse{Error: pe.Code.Message(), Code: string(pe.Code), Issues: pe.Issues})
	case errors.Is(err, catalog.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not found", "NOT_FOUND")
	case errors.Is(err, catalog.ErrInvalidParent):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_PARENT")
	case errors.Is(err, catalog.ErrInvalidKeyBinding):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_KEY_BINDING")
	case errors.Is(err, catalog.ErrDuplicate):
		WriteError(w, http.StatusConflict, err.Error(), "DUPLICATE")
	case errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, export.ErrInvalidDestination),
		errors.Is(err, export.ErrNoCategories):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, name+" must be a positive integer", "BAD_REQUEST")
		return 0, false
	}
	return id, true
}
