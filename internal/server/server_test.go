package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Alias1177/fxguard/internal/engine"
	"github.com/Alias1177/fxguard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ready  bool
	status engine.Status
}

func (f *fakeSource) Ready() bool           { return f.ready }
func (f *fakeSource) Status() engine.Status { return f.status }

func TestRoutes(t *testing.T) {
	src := &fakeSource{}
	src.status.LastSignalID = 17
	src.status.Governor.State = models.CircuitOpen
	handler := New(":0", src).Routes()

	tests := []struct {
		name   string
		path   string
		ready  bool
		status int
	}{
		{"health", "/healthz", false, http.StatusOK},
		{"not ready", "/readyz", false, http.StatusServiceUnavailable},
		{"ready", "/readyz", true, http.StatusOK},
		{"status", "/status", true, http.StatusOK},
		{"metrics", "/metrics", true, http.StatusOK},
		{"unknown", "/nope", true, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src.ready = tt.ready
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestStatusBody(t *testing.T) {
	src := &fakeSource{ready: true}
	src.status.LastSignalID = 17
	src.status.Governor.State = models.CircuitOpen

	rec := httptest.NewRecorder()
	New(":0", src).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got engine.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(17), got.LastSignalID)
	assert.Equal(t, models.CircuitOpen, got.Governor.State)
}

func TestRequestID(t *testing.T) {
	handler := New(":0", &fakeSource{}).Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeaderKey), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeaderKey, "abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeaderKey))
}
