package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// Health statuses.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// handleHealth runs every registered check concurrently and reports 503
// if any fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results := s.runHealthChecks(r.Context())

	resp := healthResponse{
		Status:        healthOK,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Checks:        results,
	}
	status := http.StatusOK
	for _, result := range results {
		if result != healthOK {
			resp.Status = healthDegraded
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) runHealthChecks(ctx context.Context) map[string]string {
	if len(s.checks) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]string, len(s.checks))
	)
	for name, checker := range s.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			result := healthOK
			if err := checker.HealthCheck(cctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}
