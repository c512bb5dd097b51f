package logging

import (
	"bytes"
	"context"
	"testing"
)

func TestCorrelationIDCtx(t *testing.T) {
	ctx := WithCorrelationIDCtx(context.Background(), "corr-123")
	if got := CorrelationIDFromCtx(ctx); got != "corr-123" {
		t.Errorf("CorrelationIDFromCtx() = %q, want %q", got, "corr-123")
	}
	if got := CorrelationIDFromCtx(context.Background()); got != "" {
		t.Errorf("CorrelationIDFromCtx() = %q, want empty string", got)
	}
}

func TestLoggerFromCtx(t *testing.T) {
	l := NewNop()
	ctx := WithLoggerCtx(context.Background(), l)
	if LoggerFromCtx(ctx) != l {
		t.Error("LoggerFromCtx should return the same logger")
	}
	if LoggerFromCtx(context.Background()) != nil {
		t.Error("LoggerFromCtx should return nil when unset")
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	ctx := WithCorrelationIDCtx(context.Background(), "corr-9")
	l := ContextLogger(ctx, base)
	l.Info("hello")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["correlationId"] != "corr-9" {
		t.Fatalf("unexpected entries: %v", entries)
	}

	fromCtx := NewNop()
	if got := ContextLogger(WithLoggerCtx(context.Background(), fromCtx), base); got != fromCtx {
		t.Error("context logger should take precedence over base")
	}
	if got := ContextLogger(context.Background(), nil); got != Global() {
		t.Error("expected global logger fallback")
	}
}
