package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"otithi/pkg/logger"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func serve(t *testing.T, h *HealthHandler, path string) (int, Response) {
	t.Helper()
	router := httprouter.New()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	code, resp := serve(t, NewHealthHandler(logger.Discard()).Require("mongo", down), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		mongo      Check
		redis      Check
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name: "all up", mongo: ok, redis: ok,
			wantCode: http.StatusOK, wantStatus: "ready",
			wantChecks: map[string]string{"mongo": "ok", "redis": "ok"},
		},
		{
			name: "optional down", mongo: ok, redis: down,
			wantCode: http.StatusOK, wantStatus: "ready",
			wantChecks: map[string]string{"mongo": "ok", "redis": "error"},
		},
		{
			name: "required down", mongo: down, redis: ok,
			wantCode: http.StatusServiceUnavailable, wantStatus: "unavailable",
			wantChecks: map[string]string{"mongo": "error", "redis": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(logger.Discard()).
				Require("mongo", tt.mongo).
				Observe("redis", tt.redis)

			code, resp := serve(t, h, "/ready")
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestReady_IncludesEventCounters(t *testing.T) {
	h := NewHealthHandler(logger.Discard()).
		Require("mongo", ok).
		WithEvents(func() any { return map[string]int{"published": 3} })

	_, resp := serve(t, h, "/ready")
	assert.Equal(t, map[string]any{"published": float64(3)}, resp.Events)
}
