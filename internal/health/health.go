// Package health provides health check functionality.
package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is healthy.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the component is unhealthy.
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check result.
type Check struct {
	Status    Status         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Checker performs health checks and tracks readiness.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]func(context.Context) Check
	ready  atomic.Bool
}

// NewChecker creates a new health checker. It starts out not ready.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]func(context.Context) Check),
	}
}

// RegisterCheck registers a health check function.
func (c *Checker) RegisterCheck(name string, checkFunc func(context.Context) Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = checkFunc
}

// SetReady flips the readiness reported by ReadinessHandler.
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// Report is the body served by Handler.
type Report struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// Run executes every registered check concurrently. The overall status is
// unhealthy if any check is.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		results = make(map[string]Check, len(checks))
	)
	for name, fn := range checks {
		g.Go(func() error {
			check := fn(ctx)
			mu.Lock()
			results[name] = check
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Checks: results, Timestamp: time.Now()}
	for _, check := range results {
		if check.Status == StatusUnhealthy {
			report.Status = StatusUnhealthy
			break
		}
	}
	return report
}

// ProbeCheck adapts probe into a check function, bounding it by timeout.
func ProbeCheck(timeout time.Duration, probe func(context.Context) error) func(context.Context) Check {
	return func(ctx context.Context) Check {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		err := probe(ctx)
		check := Check{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
			Details:   map[string]any{"latency_ms": time.Since(start).Milliseconds()},
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Details["error"] = err.Error()
		}
		return check
	}
}

// Handler serves the Report as JSON, with 503 when anything is unhealthy.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())

		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// ReadinessHandler reports whether the service accepts traffic.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	}
}

// LivenessHandler returns a simple liveness check handler.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alive\n"))
	}
}
