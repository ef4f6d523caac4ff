package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkFunc func(ctx context.Context) error

func (f checkFunc) Healthcheck(ctx context.Context) error { return f(ctx) }

func healthy() HealthChecker { return checkFunc(func(context.Context) error { return nil }) }

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil)
	w := httptest.NewRecorder()
	handler.Liveness(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadiness(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil).Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("all healthy", func(t *testing.T) {
		w := httptest.NewRecorder()
		h := NewHealthHandler(map[string]HealthChecker{"store": healthy(), "ledger": healthy()})
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("one failing", func(t *testing.T) {
		w := httptest.NewRecorder()
		h := NewHealthHandler(map[string]HealthChecker{
			"store":  healthy(),
			"ledger": checkFunc(func(context.Context) error { return errors.New("closed") }),
		})
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "closed")
	})
}
