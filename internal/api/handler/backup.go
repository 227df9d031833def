package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/holtet/backstack/internal/api/request"
	"github.com/holtet/backstack/internal/api/response"
	"github.com/holtet/backstack/internal/core"
	"github.com/holtet/backstack/internal/model"
	"github.com/holtet/backstack/internal/platform"
)

type Backup struct {
	svc       *core.BackupService
	backends  *core.StorageBackendService
	integrity *core.IntegrityService
}

func NewBackup(svc *core.BackupService, backends *core.StorageBackendService, integrity *core.IntegrityService) *Backup {
	return &Backup{svc: svc, backends: backends, integrity: integrity}
}

func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)
	q := r.URL.Query()
	filter := core.ListFilter{
		SourceType: q.Get("source_type"),
		SourceID:   q.Get("source_id"),
		ChainID:    q.Get("chain_id"),
		ScheduleID: q.Get("schedule_id"),
		Status:     q.Get("status"),
	}

	backups, hasMore, err := h.svc.List(r.Context(), filter, pg.Limit, pg.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(backups) > 0 {
		nextCursor = backups[len(backups)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, backups, nextCursor, hasMore)
}

func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backend, err := h.backends.GetByID(r.Context(), req.StorageBackendID)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, "storage backend not found: "+err.Error())
		return
	}
	if !backend.Enabled {
		response.WriteError(w, http.StatusConflict, "storage backend "+backend.ID+" is disabled")
		return
	}

	now := time.Now()
	backup := &model.Backup{
		ID:               platform.NewID(),
		ChainID:          platform.NewID(),
		SequenceNumber:   0,
		Mode:             model.ModeFull,
		Status:           model.StatusPending,
		SourceType:       req.SourceType,
		SourceID:         req.SourceID,
		StorageBackendID: backend.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.svc.CreateManual(r.Context(), backup); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, backup)
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, backup)
}

func (h *Backup) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Backup) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Restore(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Cancel asks the run behind a pending or running backup to stop. The
// row moves to cancelled once the run observes the request.
func (h *Backup) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Plan returns the restoration plan for a backup without staging anything.
func (h *Backup) Plan(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := h.integrity.PlanRestore(r.Context(), id, 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, plan)
}

// SetProtection tightens deletion protection on a backup. Omitted fields
// keep their current value.
func (h *Backup) SetProtection(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.SetProtection
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backup, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	immutable := backup.Immutable
	if req.Immutable != nil {
		immutable = *req.Immutable
	}
	legalHold := backup.LegalHold
	if req.LegalHoldEnabled != nil {
		legalHold = *req.LegalHoldEnabled
	}
	retentionUntil := backup.RetentionUntil
	if req.RetentionUntil != nil {
		retentionUntil = req.RetentionUntil
	}

	if err := h.svc.SetProtection(r.Context(), id, immutable, legalHold, retentionUntil); err != nil {
		writeServiceError(w, err)
		return
	}

	updated, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, updated)
}
