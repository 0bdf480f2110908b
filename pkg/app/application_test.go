package app

import (
	"net/http"
	"net/http/httptest"
	"otithi/pkg/config"
	"otithi/pkg/logger"
	"otithi/pkg/middleware"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes func(router *httprouter.Router)

func (f routes) RegisterRoutes(router *httprouter.Router) { f(router) }

func respond(status int) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(status)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8080",
		RateLimitRequests:  2,
		RateLimitWindow:    time.Minute,
		RequestTimeout:     5 * time.Second,
		IdempotencyTTL:     time.Hour,
		MaxRequestSize:     1024,
		MaxUploadSize:      4096,
		ShutdownTimeout:    time.Second,
		CORSAllowedOrigins: []string{"https://otithi.example"},
		Log:                logger.Discard(),
	}
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	a := NewApplication(testConfig())
	a.Mount("/live", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))

	health := routes(func(router *httprouter.Router) {
		router.GET("/health", respond(http.StatusOK))
		router.GET("/ready", respond(http.StatusServiceUnavailable))
	})
	api := routes(func(router *httprouter.Router) {
		router.GET("/api/v1/ping", respond(http.StatusOK))
		router.POST("/api/v1/things", respond(http.StatusCreated))
	})
	a.SetApp(health, middleware.RemoteIP, api)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a
}

func TestHandler_Routing(t *testing.T) {
	h := newTestApp(t).Handler()

	tests := []struct {
		name          string
		method        string
		path          string
		wantStatus    int
		wantRequestID bool
	}{
		{name: "health", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantRequestID: true},
		{name: "ready", method: http.MethodGet, path: "/ready", wantStatus: http.StatusServiceUnavailable, wantRequestID: true},
		{name: "api route", method: http.MethodGet, path: "/api/v1/ping", wantStatus: http.StatusOK, wantRequestID: true},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/nope", wantStatus: http.StatusNotFound, wantRequestID: true},
		{name: "mount bypasses middleware", method: http.MethodGet, path: "/live", wantStatus: http.StatusSwitchingProtocols},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRequestID, rec.Header().Get(middleware.RequestIDHeader) != "")
		})
	}
}

func TestHandler_CORSPreflight(t *testing.T) {
	h := newTestApp(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/things", nil)
	req.Header.Set("Origin", "https://otithi.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://otithi.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/things", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandler_RateLimitAppliesToAPIOnly(t *testing.T) {
	h := newTestApp(t).Handler()

	status := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, status("/api/v1/ping"))
	require.Equal(t, http.StatusOK, status("/api/v1/ping"))
	assert.Equal(t, http.StatusTooManyRequests, status("/api/v1/ping"))
	assert.Equal(t, http.StatusOK, status("/health"))
}

func TestHandler_RejectsUnsupportedContentType(t *testing.T) {
	h := newTestApp(t).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/things", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestShutdownHooksRunInOrder(t *testing.T) {
	a := newTestApp(t)
	var order []string
	a.OnShutdown("first", func() error { order = append(order, "first"); return nil })
	a.OnShutdown("second", func() error { order = append(order, "second"); return assert.AnError })
	a.OnShutdown("third", func() error { order = append(order, "third"); return nil })

	a.gracefulShutdown()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}
