// Package health serves the /livez and /readyz probes.
//
// Every check runs on its own ticker. A check turns unhealthy after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive passes. Optional checks are reported but
// never take the service out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// Probe selects the endpoint a check reports to.
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// Check describes one registered check.
type Check struct {
	Name    string
	Probe   Probe
	Timeout time.Duration
	Func    CheckFunc
	// Optional checks degrade the report instead of failing it.
	Optional         bool
	FailureThreshold int
	SuccessThreshold int
}

// Response statuses.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type runner struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Touched only by the check's own goroutine.
	fails  int
	passes int
}

func (c *runner) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	err := c.Func(ctx)
	c.lastErr.Store(&err)
	if err != nil {
		c.passes = 0
		c.fails++
		if c.fails >= c.FailureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.passes++
	if c.passes >= c.SuccessThreshold {
		c.healthy.Store(true)
	}
}

func (c *runner) failure() string {
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error()
	}
	return "check is unhealthy"
}

// Health runs checks and serves their state.
type Health struct {
	ready atomic.Bool

	mu      sync.RWMutex
	runners []*runner
	cancel  context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers c. Checks start healthy. Register before Start.
func (h *Health) Add(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	r := &runner{Check: c}
	r.healthy.Store(true)

	h.mu.Lock()
	h.runners = append(h.runners, r)
	h.mu.Unlock()
}

// AddLivenessCheck registers a required liveness check.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, f CheckFunc) {
	h.Add(Check{Name: name, Probe: Liveness, Timeout: timeout, Func: f})
}

// AddReadinessCheck registers a required readiness check.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, f CheckFunc) {
	h.Add(Check{Name: name, Probe: Readiness, Timeout: timeout, Func: f})
}

// Start runs every check now and then every interval until Stop or ctx
// is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	runners := append([]*runner(nil), h.runners...)
	h.mu.Unlock()

	for _, r := range runners {
		go loop(ctx, r, interval)
	}
}

func loop(ctx context.Context, r *runner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// Stop halts the checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate, e.g. off during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and no required readiness check
// is failing.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	status, _ := h.report(Readiness)
	return status != StatusUnhealthy
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	status, failures := h.report(Liveness)
	write(w, status, failures)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	status, failures := h.report(Readiness)
	if !h.ready.Load() {
		status = StatusUnhealthy
		failures["_readiness"] = "service is not ready"
	}
	write(w, status, failures)
}

func (h *Health) report(p Probe) (string, map[string]string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := StatusOK
	failures := make(map[string]string)
	for _, r := range h.runners {
		if r.Probe != p || r.healthy.Load() {
			continue
		}
		failures[r.Name] = r.failure()
		if !r.Optional {
			status = StatusUnhealthy
		} else if status == StatusOK {
			status = StatusDegraded
		}
	}
	return status, failures
}

func write(w http.ResponseWriter, status string, failures map[string]string) {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(status) })
		if len(names) == 0 {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	code := http.StatusOK
	if status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
