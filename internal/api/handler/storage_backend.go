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

type StorageBackend struct {
	svc *core.StorageBackendService
}

func NewStorageBackend(svc *core.StorageBackendService) *StorageBackend {
	return &StorageBackend{svc: svc}
}

func (h *StorageBackend) List(w http.ResponseWriter, r *http.Request) {
	backends, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, backends)
}

func (h *StorageBackend) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateStorageBackend
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Type {
	case model.BackendTypeLocal, model.BackendTypeSMB:
		if req.BasePath == "" {
			response.WriteError(w, http.StatusBadRequest, "base_path is required for "+req.Type+" backends")
			return
		}
	case model.BackendTypeS3:
		if req.Bucket == "" {
			response.WriteError(w, http.StatusBadRequest, "bucket is required for s3 backends")
			return
		}
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now()
	backend := &model.StorageBackend{
		ID:            platform.NewID(),
		Name:          req.Name,
		Type:          req.Type,
		Enabled:       enabled,
		BasePath:      req.BasePath,
		Endpoint:      req.Endpoint,
		Region:        req.Region,
		Bucket:        req.Bucket,
		AccessKey:     req.AccessKey,
		SecretKey:     req.SecretKey,
		CapacityBytes: req.CapacityBytes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.svc.Create(r.Context(), backend); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, backend)
}

func (h *StorageBackend) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backend, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, backend)
}

func (h *StorageBackend) Update(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateStorageBackend
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	backend, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	if req.Name != nil {
		backend.Name = *req.Name
	}
	if req.Enabled != nil {
		backend.Enabled = *req.Enabled
	}
	if req.BasePath != nil {
		backend.BasePath = *req.BasePath
	}
	if req.Endpoint != nil {
		backend.Endpoint = *req.Endpoint
	}
	if req.Region != nil {
		backend.Region = *req.Region
	}
	if req.Bucket != nil {
		backend.Bucket = *req.Bucket
	}
	if req.AccessKey != nil {
		backend.AccessKey = *req.AccessKey
	}
	if req.SecretKey != nil {
		backend.SecretKey = *req.SecretKey
	}
	if req.CapacityBytes != nil {
		backend.CapacityBytes = *req.CapacityBytes
	}
	backend.UpdatedAt = time.Now()

	if err := h.svc.Update(r.Context(), backend); err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, backend)
}

func (h *StorageBackend) Delete(w http.ResponseWriter, r *http.Request) {
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

// UsageAll reports current consumption of every enabled backend.
func (h *StorageBackend) UsageAll(w http.ResponseWriter, r *http.Request) {
	usages, err := h.svc.UsageAll(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, usages)
}

// Usage reports current consumption of the backend's store.
func (h *StorageBackend) Usage(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	usage, err := h.svc.Usage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, usage)
}
