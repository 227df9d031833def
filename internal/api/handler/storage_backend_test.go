package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newStorageBackendHandler() *StorageBackend {
	return NewStorageBackend(nil)
}

func TestStorageBackendCreate_InvalidJSON(t *testing.T) {
	h := newStorageBackendHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/storage-backends", "{bad json")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageBackendCreate_UnknownType(t *testing.T) {
	h := newStorageBackendHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/storage-backends", map[string]any{
		"name": "tape-robot",
		"type": "tape",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageBackendCreate_LocalRequiresBasePath(t *testing.T) {
	h := newStorageBackendHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/storage-backends", map[string]any{
		"name": "vault",
		"type": "local",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "base_path")
}

func TestStorageBackendCreate_S3RequiresBucket(t *testing.T) {
	h := newStorageBackendHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/storage-backends", map[string]any{
		"name":     "offsite",
		"type":     "s3",
		"endpoint": "https://s3.example.com",
	})

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "bucket")
}

func TestStorageBackendUsage_MissingID(t *testing.T) {
	h := newStorageBackendHandler()
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/storage-backends//usage", nil), "id", "")

	h.Usage(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
