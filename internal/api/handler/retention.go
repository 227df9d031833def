package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/holtet/backstack/internal/api/request"
	"github.com/holtet/backstack/internal/api/response"
	"github.com/holtet/backstack/internal/core"
	"github.com/holtet/backstack/internal/model"
)

type Retention struct {
	svc *core.RetentionService
}

func NewRetention(svc *core.RetentionService) *Retention {
	return &Retention{svc: svc}
}

// EvaluateRequest carries the retention config to evaluate against.
type EvaluateRequest struct {
	Retention request.RetentionConfig `json:"retention_config"`
}

// Evaluate dry-runs retention for a source and returns the keep and
// delete sets without touching anything.
func (h *Retention) Evaluate(w http.ResponseWriter, r *http.Request) {
	sourceType, err := request.RequireID(chi.URLParam(r, "type"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sourceID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if sourceType != model.SourceTypeVM && sourceType != model.SourceTypeContainer {
		response.WriteError(w, http.StatusBadRequest, "unknown source type: "+sourceType)
		return
	}

	var req EvaluateRequest
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := model.RetentionConfig{
		Daily:   req.Retention.Daily,
		Weekly:  req.Retention.Weekly,
		Monthly: req.Retention.Monthly,
		Yearly:  req.Retention.Yearly,
	}

	result, err := h.svc.EvaluateSource(r.Context(), sourceType, sourceID, cfg, time.Now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}
