package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 2 * time.Second

// HealthCheck returns nil when the dependency it probes is usable.
type HealthCheck func(ctx context.Context) error

// Pinger is implemented by record stores that hold a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a HealthCheck.
func PingCheck(p Pinger) HealthCheck {
	return p.Ping
}

type namedCheck struct {
	name  string
	check HealthCheck
}

// HealthChecker backs the /healthz and /readyz endpoints. It starts out
// not ready; the API server flips it once it is listening.
type HealthChecker struct {
	ready   atomic.Bool
	started time.Time

	mu     sync.RWMutex
	checks []namedCheck
}

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// HealthStatus is the JSON body of both health endpoints.
type HealthStatus struct {
	Status string        `json:"status"`
	Ready  bool          `json:"ready"`
	Uptime string        `json:"uptime"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// Check returns the result named name, if present.
func (s HealthStatus) Check(name string) (CheckResult, bool) {
	for _, c := range s.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// NewHealthChecker creates a health checker that is not yet ready.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{started: time.Now()}
}

// RegisterCheck adds a readiness check. Registering a name twice replaces
// the earlier check.
func (h *HealthChecker) RegisterCheck(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].name == name {
			h.checks[i].check = check
			return
		}
	}
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

func (h *HealthChecker) SetReady(ready bool) { h.ready.Store(ready) }

func (h *HealthChecker) IsReady() bool { return h.ready.Load() }

// Evaluate runs every registered check concurrently and reports the
// combined status. Results keep registration order.
func (h *HealthChecker) Evaluate(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]namedCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.check(cctx)
			results[i] = CheckResult{
				Name:     c.name,
				OK:       err == nil,
				Duration: time.Since(start).Round(time.Microsecond).String(),
			}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Status: "ok",
		Ready:  h.IsReady(),
		Uptime: h.uptime(),
		Checks: results,
	}
	if !status.Ready {
		status.Status = "starting"
	}
	for _, r := range results {
		if !r.OK {
			status.Status = "unhealthy"
			break
		}
	}
	return status
}

func (h *HealthChecker) uptime() string {
	return time.Since(h.started).Round(time.Second).String()
}

// LivenessHandler always answers 200 while the process can serve HTTP.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, HealthStatus{
			Status: "ok",
			Ready:  h.IsReady(),
			Uptime: h.uptime(),
		})
	})
}

// ReadinessHandler answers 200 only when the checker is ready and every
// check passes, 503 otherwise.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := h.Evaluate(r.Context())
		code := http.StatusOK
		if status.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, code, status)
	})
}

func writeStatus(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// NewHealthMux serves health endpoints and, when provider is non-nil,
// Prometheus metrics on the side port.
func NewHealthMux(health *HealthChecker, provider *Provider) *http.ServeMux {
	mux := http.NewServeMux()
	if health != nil {
		mux.Handle("GET /healthz", health.LivenessHandler())
		mux.Handle("GET /readyz", health.ReadinessHandler())
	}
	if provider != nil {
		mux.Handle("GET /metrics", provider.PrometheusHandler())
	}
	return mux
}

// ListenAndServe serves handler on addr until ctx is done and then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
