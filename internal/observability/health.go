package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// CheckResult is the result of a single readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ReadinessChecks holds the dependency checkers for the readiness endpoint.
type ReadinessChecks struct {
	// Required check, always run.
	DefinitionsLoaded func() bool

	// Backend services checked when non-nil, keyed by service id.
	Backends map[string]HealthChecker
}

const checkTimeout = 2 * time.Second

// HandleHealth returns an HTTP handler for the liveness endpoint. Liveness
// says only that the process answers; readiness is the expensive one.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "ok",
			Version: Version,
			Commit:  Commit,
		})
	}
}

type namedResult struct {
	name   string
	result CheckResult
}

// HandleReady returns an HTTP handler for the readiness endpoint. All checks
// run concurrently; any failing check makes the whole endpoint report
// not_ready with a 503.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(chan namedResult, 1+len(checks.Backends))

		go func() {
			out <- namedResult{"definitions", checkDefinitions(checks.DefinitionsLoaded)}
		}()
		for name, checker := range checks.Backends {
			go func(name string, checker HealthChecker) {
				out <- namedResult{name, runCheck(r.Context(), checker)}
			}(name, checker)
		}

		results := make(map[string]CheckResult, cap(out))
		ready := true
		for i := 0; i < cap(out); i++ {
			nr := <-out
			results[nr.name] = nr.result
			if nr.result.Status != "ok" {
				ready = false
			}
		}

		status, httpStatus := "ready", http.StatusOK
		if !ready {
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: status,
			Checks: results,
		})
	}
}

func checkDefinitions(loaded func() bool) CheckResult {
	start := time.Now()
	if loaded != nil && loaded() {
		return CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	}
	return CheckResult{
		Status:    "error",
		LatencyMs: time.Since(start).Milliseconds(),
		Error:     "no definitions loaded",
	}
}

// runCheck executes one dependency check with a per-check timeout so a hung
// backend cannot stall the readiness endpoint.
func runCheck(parent context.Context, checker HealthChecker) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := checker.HealthCheck(ctx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{Status: "error", LatencyMs: latency, Error: err.Error()}
	}
	return CheckResult{Status: "ok", LatencyMs: latency}
}
