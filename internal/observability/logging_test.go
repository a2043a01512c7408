package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saborverde/opsboard/internal/config"
	"github.com/saborverde/opsboard/model"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestNewLogger_levels(t *testing.T) {
	tests := []struct {
		level      string
		enabled    zapcore.Level
		suppressed zapcore.Level
	}{
		{"debug", zapcore.DebugLevel, zapcore.InvalidLevel},
		{"info", zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"error", zapcore.ErrorLevel, zapcore.WarnLevel},
		// Unrecognized levels fall back to info.
		{"verbose", zapcore.InfoLevel, zapcore.DebugLevel},
		{"", zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		name := tt.level
		if name == "" {
			name = "empty"
		}
		t.Run(name, func(t *testing.T) {
			logger, err := NewLogger(config.ObservabilityConfig{LogLevel: tt.level})
			if err != nil {
				t.Fatalf("NewLogger(%q): %v", tt.level, err)
			}
			defer logger.Sync()

			if !logger.Core().Enabled(tt.enabled) {
				t.Errorf("level %v should be enabled for %q", tt.enabled, tt.level)
			}
			if tt.suppressed != zapcore.InvalidLevel && logger.Core().Enabled(tt.suppressed) {
				t.Errorf("level %v should be suppressed for %q", tt.suppressed, tt.level)
			}
		})
	}
}

func TestLoggerFrom_roundTrip(t *testing.T) {
	logger := zap.NewNop()
	ctx := WithLogger(context.Background(), logger)
	if got := LoggerFrom(ctx, nil); got != logger {
		t.Error("LoggerFrom did not return the logger stored in the context")
	}
}

func TestLoggerFrom_fallback(t *testing.T) {
	fallback := zap.NewNop()
	if got := LoggerFrom(context.Background(), fallback); got != fallback {
		t.Error("LoggerFrom should hand back the fallback when the context carries no logger")
	}
}

func TestRequestLogger_carriesIdentityFields(t *testing.T) {
	logger, logs := observedLogger()

	rctx := &model.RequestContext{
		SubjectID:     "func-maria",
		Email:         "maria@saborverde.com.br",
		CorrelationID: "corr-7f3a",
	}
	ctx := model.WithRequestContext(context.Background(), rctx)

	RequestLogger(ctx, logger).Info("panel opened", zap.String("entity", "pedidos"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["subject_id"] != "func-maria" {
		t.Errorf("subject_id = %v, want func-maria", fields["subject_id"])
	}
	if fields["correlation_id"] != "corr-7f3a" {
		t.Errorf("correlation_id = %v, want corr-7f3a", fields["correlation_id"])
	}
	if entries[0].Message != "panel opened" {
		t.Errorf("message = %q, want %q", entries[0].Message, "panel opened")
	}
}

func TestRequestLogger_bareContext(t *testing.T) {
	logger, logs := observedLogger()

	RequestLogger(context.Background(), logger).Info("sweeper pass complete")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["subject_id"]; ok {
		t.Error("subject_id should be absent when the context has no request identity")
	}
}

func TestRedactBody_defaultSensitiveKeys(t *testing.T) {
	body := map[string]any{
		"nome":     "Maria Souza",
		"password": "segredo123",
		"email":    "maria@saborverde.com.br",
		"token":    "abc.def.ghi",
	}

	redacted := RedactBody(body, nil)
	if redacted["nome"] != "Maria Souza" {
		t.Errorf("nome = %v, want Maria Souza", redacted["nome"])
	}
	if redacted["email"] != "maria@saborverde.com.br" {
		t.Errorf("email = %v, should pass through untouched by default", redacted["email"])
	}
	if redacted["password"] != "[REDACTED]" {
		t.Errorf("password = %v, want [REDACTED]", redacted["password"])
	}
	if redacted["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", redacted["token"])
	}
}

func TestRedactBody_configuredKeys(t *testing.T) {
	body := map[string]any{
		"nome":     "Maria Souza",
		"email":    "maria@saborverde.com.br",
		"telefone": "47999990000",
	}

	redacted := RedactBody(body, []string{"email", "telefone"})
	if redacted["nome"] != "Maria Souza" {
		t.Errorf("nome = %v, want Maria Souza", redacted["nome"])
	}
	if redacted["email"] != "[REDACTED]" {
		t.Errorf("email = %v, want [REDACTED]", redacted["email"])
	}
	if redacted["telefone"] != "[REDACTED]" {
		t.Errorf("telefone = %v, want [REDACTED]", redacted["telefone"])
	}
}

func TestRedactBody_nestedObjects(t *testing.T) {
	body := map[string]any{
		"cliente": map[string]any{
			"nome":     "Maria Souza",
			"password": "segredo123",
		},
		"observacao": "entrega na portaria",
	}

	redacted := RedactBody(body, nil)
	cliente, ok := redacted["cliente"].(map[string]any)
	if !ok {
		t.Fatal("cliente should stay a nested map")
	}
	if cliente["nome"] != "Maria Souza" {
		t.Errorf("cliente.nome = %v, want Maria Souza", cliente["nome"])
	}
	if cliente["password"] != "[REDACTED]" {
		t.Errorf("cliente.password = %v, want [REDACTED]", cliente["password"])
	}
}

func TestRedactBody_nilBody(t *testing.T) {
	if got := RedactBody(nil, nil); got != nil {
		t.Errorf("RedactBody(nil) = %v, want nil", got)
	}
}

func TestRedactBody_leavesInputIntact(t *testing.T) {
	body := map[string]any{
		"password": "segredo123",
		"nome":     "Maria Souza",
	}

	_ = RedactBody(body, nil)

	if body["password"] != "segredo123" {
		t.Errorf("input map was mutated: password = %v", body["password"])
	}
}
