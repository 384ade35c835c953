// Package health runs dependency probes for the readiness endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Check probes one dependency. It must respect ctx cancellation.
type Check func(ctx context.Context) error

type checker struct {
	name     string
	critical bool
	check    Check
}

// Manager evaluates registered checks on demand. A failing critical check
// makes the service unhealthy; non-critical failures are reported but do not
// flip overall status.
type Manager struct {
	mu       sync.RWMutex
	checkers []checker
	timeout  time.Duration
	logger   *zap.Logger
}

// NewManager returns an empty manager with a per-check timeout.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{timeout: 3 * time.Second, logger: logger}
}

// Register adds a named check. Registration order is reporting order.
func (m *Manager) Register(name string, critical bool, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker{name: name, critical: critical, check: check})
}

// ComponentStatus is one check's outcome.
type ComponentStatus struct {
	Status   string `json:"status"` // ok or error
	Error    string `json:"error,omitempty"`
	Critical bool   `json:"critical"`
}

// Report is the full health evaluation.
type Report struct {
	Status     string                     `json:"status"` // ok or degraded or unhealthy
	Components map[string]ComponentStatus `json:"components,omitempty"`
}

// Evaluate runs all checks. The boolean is false only when a critical check
// fails.
func (m *Manager) Evaluate(ctx context.Context) (Report, bool) {
	m.mu.RLock()
	checkers := append([]checker(nil), m.checkers...)
	m.mu.RUnlock()

	report := Report{Status: "ok", Components: make(map[string]ComponentStatus, len(checkers))}
	healthy := true
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.check(cctx)
		cancel()

		status := ComponentStatus{Status: "ok", Critical: c.critical}
		if err != nil {
			status.Status = "error"
			status.Error = err.Error()
			m.logger.Warn("Health check failed", zap.String("component", c.name), zap.Error(err))
			if c.critical {
				healthy = false
				report.Status = "unhealthy"
			} else if report.Status == "ok" {
				report.Status = "degraded"
			}
		}
		report.Components[c.name] = status
	}
	return report, healthy
}
