package health

import (
	"context"
	"net/http"
	httputil "otithi/pkg/http"
	"otithi/pkg/logger"
	"sort"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

const checkTimeout = 2 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Events any               `json:"events,omitempty"`
}

type HealthHandler struct {
	required map[string]Check
	optional map[string]Check
	events   func() any
	log      *logger.Logger
}

func NewHealthHandler(log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		required: map[string]Check{},
		optional: map[string]Check{},
		log:      log,
	}
}

// Require adds a check that fails readiness.
func (h *HealthHandler) Require(name string, check Check) *HealthHandler {
	h.required[name] = check
	return h
}

// Observe adds a check that is reported but does not fail readiness.
func (h *HealthHandler) Observe(name string, check Check) *HealthHandler {
	h.optional[name] = check
	return h
}

// WithEvents attaches event publisher counters to the readiness report.
func (h *HealthHandler) WithEvents(snapshot func() any) *HealthHandler {
	h.events = snapshot
	return h
}

func (h *HealthHandler) write(w http.ResponseWriter, handler string, status int, resp Response) {
	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	h.write(w, "Health", http.StatusOK, Response{Status: "ok"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	results := h.run(ctx)
	resp := Response{Status: "ready", Checks: make(map[string]string, len(results))}
	status := http.StatusOK

	for _, res := range results {
		if res.err == nil {
			resp.Checks[res.name] = "ok"
			continue
		}
		resp.Checks[res.name] = "error"
		if res.required {
			status = http.StatusServiceUnavailable
			resp.Status = "unavailable"
		}
		h.log.Error("Health check failed",
			"check", res.name,
			"required", res.required,
			"error", res.err,
			"path", r.URL.Path,
		)
	}
	if h.events != nil {
		resp.Events = h.events()
	}

	h.write(w, "Ready", status, resp)
}

type result struct {
	name     string
	required bool
	err      error
}

func (h *HealthHandler) run(ctx context.Context) []result {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
	)
	start := func(name string, check Check, required bool) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := check(ctx)
			mu.Lock()
			results = append(results, result{name: name, required: required, err: err})
			mu.Unlock()
		}()
	}
	for name, check := range h.required {
		start(name, check, true)
	}
	for name, check := range h.optional {
		start(name, check, false)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].name < results[j].name })
	return results
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
