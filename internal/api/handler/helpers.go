package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/holtet/backstack/internal/api/response"
	"github.com/holtet/backstack/internal/core"
)

// writeServiceError maps core service errors to HTTP statuses: missing
// rows to 404, refused state transitions to 409, everything else to 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrBackupProtected),
		errors.Is(err, core.ErrHasDependents),
		errors.Is(err, core.ErrBackendInUse),
		errors.Is(err, core.ErrSlotTaken),
		errors.Is(err, core.ErrNotCancellable):
		response.WriteError(w, http.StatusConflict, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
