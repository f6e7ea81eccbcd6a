package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attbot/internal/metrics"
)

func TestHealthzWithoutBackends(t *testing.T) {
	s := New(":0", nil)
	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string `json:"status"`
		Redis   bool   `json:"redis"`
		History bool   `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Redis)
	assert.False(t, body.History)
}

func TestAttemptsWithoutHistory(t *testing.T) {
	s := New(":0", nil)
	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/attempts", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestScheduleEmpty(t *testing.T) {
	s := New(":0", nil)
	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/schedule", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Users []UserStatus `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Users)
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Attempt("alice", "succeeded")

	s := New(":0", nil)
	s.Registry = reg

	w := httptest.NewRecorder()
	s.router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "attbot_attempts_total")
}
