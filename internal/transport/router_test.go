package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/config"
	"github.com/saborverde/opsboard/internal/entity"
	"github.com/saborverde/opsboard/internal/observability"
	"github.com/saborverde/opsboard/internal/transform"
	"github.com/saborverde/opsboard/model"
)

func testDeps() Dependencies {
	cfg := config.Defaults()
	cfg.Server.CORS.AllowedOrigins = []string{"https://painel.saborverde.com.br"}
	cfg.Server.HandlerTimeout = 5 * time.Second

	registry := entity.NewRegistry(nil)
	builder := entity.NewBuilder(transform.NewRegistry())

	return Dependencies{
		Config:    cfg,
		Logger:    zap.NewNop(),
		Dashboard: NewDashboard(registry, builder, nil, nil, zap.NewNop()),
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return true },
		},
	}
}

// rejectAuth simulates an authentication middleware that rejects everything.
func rejectAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, model.NewUnauthorizedError("no token"))
	})
}

func TestNewRouter_healthEndpoint(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("expected ok status in body, got %s", rec.Body.String())
	}
}

func TestNewRouter_readyEndpoint(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewRouter_readyEndpoint_definitionsNotLoaded(t *testing.T) {
	deps := testDeps()
	deps.Readiness.DefinitionsLoaded = func() bool { return false }
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestNewRouter_metricsEndpoint(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNewRouter_metricsDisabled(t *testing.T) {
	deps := testDeps()
	deps.Config.Observability.Metrics.Enabled = false
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected metrics route absent, got %d", rec.Code)
	}
}

func TestNewRouter_authenticatedRoutesRegistered(t *testing.T) {
	deps := testDeps()
	deps.Authenticate = rejectAuth
	router := NewRouter(deps)

	// A 401 means the route exists and the auth middleware ran; a 404 or 405
	// would mean the route was never registered.
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/entities"},
		{http.MethodGet, "/api/v1/entities/customers"},
		{http.MethodGet, "/api/v1/entities/customers/data"},
		{http.MethodPost, "/api/v1/entities/customers/rows/c-1/panel"},
		{http.MethodGet, "/api/v1/entities/customers/rows/c-1/panel"},
		{http.MethodPatch, "/api/v1/entities/customers/rows/c-1/panel"},
		{http.MethodPost, "/api/v1/entities/customers/rows/c-1/panel/save"},
		{http.MethodPost, "/api/v1/entities/customers/rows/c-1/panel/delete"},
		{http.MethodDelete, "/api/v1/entities/customers/rows/c-1/panel"},
	}

	for _, rt := range routes {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", rt.method, rt.path, rec.Code)
		}
	}
}

func TestNewRouter_publicRoutesBypassAuth(t *testing.T) {
	deps := testDeps()
	deps.Authenticate = rejectAuth
	router := NewRouter(deps)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code == http.StatusUnauthorized {
			t.Errorf("%s: public route should bypass auth", path)
		}
	}
}

func TestNewRouter_unknownRoute(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// --- middleware tests ---

func TestRecovery_catchesPanic(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected INTERNAL_ERROR in body, got %s", rec.Body.String())
	}
}

func TestRecovery_passthrough(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}

func TestCORS_allowedOrigin(t *testing.T) {
	cfg := config.CORSConfig{
		AllowedOrigins: []string{"https://painel.saborverde.com.br"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         3600,
	}
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://painel.saborverde.com.br")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://painel.saborverde.com.br" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("unexpected methods header %q", got)
	}
}

func TestCORS_disallowedOrigin(t *testing.T) {
	cfg := config.CORSConfig{AllowedOrigins: []string{"https://painel.saborverde.com.br"}}
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers for disallowed origin, got %q", got)
	}
}

func TestCORS_preflight(t *testing.T) {
	cfg := config.CORSConfig{AllowedOrigins: []string{"https://painel.saborverde.com.br"}}
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://painel.saborverde.com.br")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestRequestID_generated(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured == "" {
		t.Fatal("expected generated correlation ID in context")
	}
	if rec.Header().Get("X-Correlation-Id") != captured {
		t.Errorf("response header should match context value")
	}
}

func TestRequestID_propagated(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = CorrelationIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "corr-abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured != "corr-abc-123" {
		t.Errorf("expected propagated correlation ID, got %q", captured)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s: expected %q, got %q", header, want, got)
		}
	}
}

func TestSecurityHeaders_onHealth(t *testing.T) {
	router := NewRouter(testDeps())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should apply to health endpoint")
	}
}

func TestBuildRequestContext_fromClaims(t *testing.T) {
	var captured *model.RequestContext
	handler := BuildRequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = model.RequestContextFrom(r.Context())
	}))

	claims := map[string]any{
		"sub":   "user-42",
		"email": "ana@saborverde.com.br",
		"roles": []any{"admin", "production"},
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured == nil {
		t.Fatal("expected request context to be set")
	}
	if captured.SubjectID != "user-42" {
		t.Errorf("expected subject user-42, got %q", captured.SubjectID)
	}
	if captured.Email != "ana@saborverde.com.br" {
		t.Errorf("unexpected email %q", captured.Email)
	}
	if len(captured.Roles) != 2 || captured.Roles[0] != "admin" {
		t.Errorf("unexpected roles %v", captured.Roles)
	}
}

func TestBuildRequestContext_noClaims(t *testing.T) {
	var captured *model.RequestContext
	handler := BuildRequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = model.RequestContextFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured == nil {
		t.Fatal("expected request context even without claims")
	}
	if captured.SubjectID != "" {
		t.Errorf("expected empty subject, got %q", captured.SubjectID)
	}
}

func TestBuildRequestContext_correlationID(t *testing.T) {
	var captured *model.RequestContext
	inner := BuildRequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = model.RequestContextFrom(r.Context())
	}))
	handler := RequestID(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-Id", "corr-xyz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured.CorrelationID != "corr-xyz" {
		t.Errorf("expected correlation ID corr-xyz, got %q", captured.CorrelationID)
	}
}

func TestHandlerTimeout_setsDeadline(t *testing.T) {
	handler := HandlerTimeout(10*time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("expected a context deadline")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestHandlerTimeout_zeroDisables(t *testing.T) {
	handler := HandlerTimeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("expected no deadline when timeout is zero")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestRequestLogging_passthrough(t *testing.T) {
	handler := RequestLogging(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestClaimStringSlice(t *testing.T) {
	claims := map[string]any{
		"roles": []any{"admin", 7, "viewer"},
	}
	got := claimStringSlice(claims, "roles")
	if len(got) != 2 || got[0] != "admin" || got[1] != "viewer" {
		t.Errorf("expected non-string entries skipped, got %v", got)
	}
	if claimStringSlice(nil, "roles") != nil {
		t.Error("expected nil for nil claims")
	}
	if claimStringSlice(claims, "missing") != nil {
		t.Error("expected nil for missing key")
	}
}

func TestWithClaims_roundTrip(t *testing.T) {
	claims := map[string]any{"sub": "u-1"}
	ctx := WithClaims(context.Background(), claims)
	got := ClaimsFrom(ctx)
	if got["sub"] != "u-1" {
		t.Errorf("expected claims round trip, got %v", got)
	}
}
