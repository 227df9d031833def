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

type Schedule struct {
	svc      *core.ScheduleService
	backends *core.StorageBackendService
}

func NewSchedule(svc *core.ScheduleService, backends *core.StorageBackendService) *Schedule {
	return &Schedule{svc: svc, backends: backends}
}

func (h *Schedule) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	schedules, hasMore, err := h.svc.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(schedules) > 0 {
		nextCursor = schedules[len(schedules)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, schedules, nextCursor, hasMore)
}

func (h *Schedule) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.backends.GetByID(r.Context(), req.StorageBackendID); err != nil {
		response.WriteError(w, http.StatusNotFound, "storage backend not found: "+err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	policy := req.ModePolicy
	if policy == "" {
		policy = model.PolicyAuto
	}

	now := time.Now()
	sched := &model.Schedule{
		ID:               platform.NewID(),
		Name:             req.Name,
		SourceType:       req.SourceType,
		SourceID:         req.SourceID,
		StorageBackendID: req.StorageBackendID,
		CronExpression:   req.CronExpression,
		Enabled:          enabled,
		ModePolicy:       policy,
		MaxChainLength:   req.MaxChainLength,
		FullBackupDay:    req.FullBackupDay,
		Retention: model.RetentionConfig{
			Daily:   req.Retention.Daily,
			Weekly:  req.Retention.Weekly,
			Monthly: req.Retention.Monthly,
			Yearly:  req.Retention.Yearly,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.svc.Create(r.Context(), sched); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, sched)
}

func (h *Schedule) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, sched)
}

func (h *Schedule) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateSchedule
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	sched, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.StorageBackendID != nil {
		if _, err := h.backends.GetByID(r.Context(), *req.StorageBackendID); err != nil {
			response.WriteError(w, http.StatusNotFound, "storage backend not found: "+err.Error())
			return
		}
		sched.StorageBackendID = *req.StorageBackendID
	}
	if req.CronExpression != nil {
		sched.CronExpression = *req.CronExpression
	}
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}
	if req.ModePolicy != nil {
		sched.ModePolicy = *req.ModePolicy
	}
	if req.MaxChainLength != nil {
		sched.MaxChainLength = *req.MaxChainLength
	}
	if req.FullBackupDay != nil {
		sched.FullBackupDay = req.FullBackupDay
	}
	if req.Retention != nil {
		sched.Retention = model.RetentionConfig{
			Daily:   req.Retention.Daily,
			Weekly:  req.Retention.Weekly,
			Monthly: req.Retention.Monthly,
			Yearly:  req.Retention.Yearly,
		}
	}
	sched.UpdatedAt = time.Now()

	if err := h.svc.Update(r.Context(), sched); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, sched)
}

func (h *Schedule) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Run triggers the schedule's backup workflow outside its cron.
func (h *Schedule) Run(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.RunNow(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
