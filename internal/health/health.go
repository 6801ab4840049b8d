// SPDX-License-Identifier: MIT

// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/camsync/internal/log"
)

// checkTimeout bounds a single checker inside Ready.
const checkTimeout = 2 * time.Second

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int64     `json:"uptime_seconds"`
}

// ReadinessResponse is the readiness body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one named readiness probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager owns the registered checkers and serves /healthz and /readyz.
type Manager struct {
	version string
	started time.Time

	mu       sync.RWMutex
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version, started: time.Now()}
}

func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	m.checkers = append(m.checkers, checker)
	m.mu.Unlock()
}

// Health reports that the process is alive. It never runs checks.
func (m *Manager) Health(context.Context) HealthResponse {
	now := time.Now()
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: now,
		Uptime:    int64(now.Sub(m.started).Seconds()),
	}
}

// Ready runs every checker concurrently, each under checkTimeout. Any
// unhealthy result makes the service not ready; degraded results only lower
// the overall status.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			results[i] = c.Check(cctx)
		}()
	}
	wg.Wait()

	resp := ReadinessResponse{Ready: true, Status: StatusHealthy, Timestamp: time.Now()}
	if len(checkers) > 0 {
		resp.Checks = make(map[string]CheckResult, len(checkers))
	}
	for i, c := range checkers {
		resp.Checks[c.Name()] = results[i]
		resp.Status = worse(resp.Status, results[i].Status)
	}
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.Health(r.Context()), log.WithComponentFromContext(r.Context(), "health"))
}

func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	resp := m.Ready(r.Context())

	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp, logger)

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

func writeJSON(w http.ResponseWriter, code int, v any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode probe response")
	}
}
