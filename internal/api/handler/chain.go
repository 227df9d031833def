package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holtet/backstack/internal/api/request"
	"github.com/holtet/backstack/internal/api/response"
	"github.com/holtet/backstack/internal/core"
)

type Chain struct {
	backups   *core.BackupService
	integrity *core.IntegrityService
}

func NewChain(backups *core.BackupService, integrity *core.IntegrityService) *Chain {
	return &Chain{backups: backups, integrity: integrity}
}

// Members lists every live backup of a chain in sequence order.
func (h *Chain) Members(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	members, err := h.backups.ListChain(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(members) == 0 {
		response.WriteError(w, http.StatusNotFound, "chain "+id+" has no backups")
		return
	}

	response.WriteJSON(w, http.StatusOK, members)
}

// Integrity runs the chain integrity check and returns the report.
func (h *Chain) Integrity(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.integrity.CheckChain(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, report)
}
