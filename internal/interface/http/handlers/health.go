package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDIO HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports on the services behind the API.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Service is one backing service of the studio.
type Service struct {
	Name string

	// Critical services hold the studio's records (students, payments,
	// attendance). When one fails the API is down and not ready. A failing
	// non-critical service (reminder log, WhatsApp) only degrades it.
	Critical bool

	Check func(ctx context.Context) error
}

// Status values reported by /health.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

// HealthStatus is the /health body.
type HealthStatus struct {
	Status  string `json:"status"`
	Healthy bool   `json:"healthy"`
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`

	// Storage names where records live: "postgres" or "memory".
	Storage string `json:"storage"`

	Services  map[string]ServiceResult `json:"services,omitempty"`
	Uptime    string                   `json:"uptime,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version,omitempty"`
}

// ServiceResult is the outcome of one service check.
type ServiceResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// StudioHealth checks the studio's backing services in parallel, each under
// its own timeout.
type StudioHealth struct {
	storage string
	version string
	timeout time.Duration
	started time.Time

	mu       sync.RWMutex
	services []Service
}

// NewStudioHealth creates a checker. storage is the records backend in use.
func NewStudioHealth(version, storage string) *StudioHealth {
	return &StudioHealth{
		storage: storage,
		version: version,
		timeout: 5 * time.Second,
		started: time.Now(),
	}
}

// SetTimeout sets the per-service timeout.
func (h *StudioHealth) SetTimeout(timeout time.Duration) {
	h.timeout = timeout
}

// Watch adds a service. A later service with the same name replaces it.
func (h *StudioHealth) Watch(s Service) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.services {
		if h.services[i].Name == s.Name {
			h.services[i] = s
			return
		}
	}
	h.services = append(h.services, s)
}

// Check runs every service check.
func (h *StudioHealth) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	services := append([]Service(nil), h.services...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusOK,
		Healthy:   true,
		Ready:     true,
		Storage:   h.storage,
		Services:  make(map[string]ServiceResult, len(services)),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	if h.storage == "memory" {
		status.Message = "records are kept in memory and lost on restart"
	}

	results := make([]ServiceResult, len(services))
	var wg sync.WaitGroup
	for i, s := range services {
		wg.Add(1)
		go func(i int, s Service) {
			defer wg.Done()
			results[i] = h.run(ctx, s)
		}(i, s)
	}
	wg.Wait()

	var down, degraded []string
	for i, s := range services {
		status.Services[s.Name] = results[i]
		switch {
		case results[i].Healthy:
		case s.Critical:
			down = append(down, s.Name)
		default:
			degraded = append(degraded, s.Name)
		}
	}
	sort.Strings(down)
	sort.Strings(degraded)

	switch {
	case len(down) > 0:
		status.Status = StatusDown
		status.Healthy = false
		status.Ready = false
		status.Message = "records unavailable: " + strings.Join(down, ", ")
	case len(degraded) > 0:
		status.Status = StatusDegraded
		status.Message = "running without: " + strings.Join(degraded, ", ")
	}
	return status
}

func (h *StudioHealth) run(ctx context.Context, s Service) ServiceResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := s.Check(ctx)
	res := ServiceResult{
		Healthy:  err == nil,
		Critical: s.Critical,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}
