package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/holtet/backstack/internal/core"
)

func TestWriteServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"missing row", fmt.Errorf("get backup bk-1: %w", pgx.ErrNoRows), http.StatusNotFound},
		{"protected", fmt.Errorf("delete backup bk-1: %w", core.ErrBackupProtected), http.StatusConflict},
		{"dependents", fmt.Errorf("delete backup bk-1: %w", core.ErrHasDependents), http.StatusConflict},
		{"backend in use", core.ErrBackendInUse, http.StatusConflict},
		{"slot taken", core.ErrSlotTaken, http.StatusConflict},
		{"unexpected", fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeErrorResponse(rec)["error"])
		})
	}
}
