package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentPurchase, Output: &buf})

	logger.Info("hello", FieldCardID, 7)
	out := buf.String()
	if !strings.Contains(out, "component=purchase") || !strings.Contains(out, "card_id=7") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	logger.WithComponent(ComponentHTTP).Warn("moved")
	if !strings.Contains(buf.String(), "component=http") {
		t.Fatalf("component not replaced: %s", buf.String())
	}
}

func TestStructuredLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: ComponentReconcile, Output: &buf}))

	sl.LogError(context.Background(), "refresh failed", errors.New("boom"), OpRefresh, NewFields().WithInvoice("2024-03", 2, 1500))

	out := buf.String()
	for _, want := range []string{"level=ERROR", "error=boom", "operation=refresh", "invoice_month=2024-03", "total_cents=1500"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestContext_RequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Output: &buf}).With(FieldRequestID, "req-1")

	ctx := NewContext(context.Background(), logger)
	FromContext(ctx).InfoContext(ctx, "inside")

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing: %s", buf.String())
	}
}

func TestStructuredLogger_LogHTTPEnd(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Component: ComponentHTTP, Output: &buf}))

	r := httptest.NewRequest(http.MethodPost, "/api/purchases?x=1", nil)
	sl.LogHTTPEnd(context.Background(), r, 503, 12, "10.0.0.1")

	out := buf.String()
	for _, want := range []string{"level=ERROR", "status_code=503", "success=false", "client_ip=10.0.0.1", "path=/api/purchases"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestFromContext_Default(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a fallback logger")
	}
}
