package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestInit(t *testing.T) {
	log, err := Init("test-service", "info")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}

	if _, err := Init("test-service", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew_JSONWithServiceAndCycle(t *testing.T) {
	var buf bytes.Buffer
	log := New("peceto", zapcore.InfoLevel, zapcore.AddSync(&buf))

	ctx := WithCycleID(context.Background(), "BTCUSDT-1")
	log.Info("cycle done", Fields(ctx)...)
	log.Debug("hidden")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["service"] != "peceto" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["cycle_id"] != "BTCUSDT-1" {
		t.Errorf("cycle_id = %v", entry["cycle_id"])
	}
	if entry["msg"] != "cycle done" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestCycleID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if id := CycleID(ctx); id != "" {
		t.Errorf("expected empty cycle id, got %q", id)
	}
	if f := Fields(ctx); f != nil {
		t.Errorf("expected nil fields without cycle id, got %v", f)
	}

	ctx = WithCycleID(ctx, "cycle-123")
	if id := CycleID(ctx); id != "cycle-123" {
		t.Errorf("expected 'cycle-123', got %q", id)
	}
	if f := Fields(ctx); len(f) != 1 {
		t.Errorf("expected one field, got %v", f)
	}
}

func TestNewCycleID(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 123456789, time.UTC)
	id := NewCycleID("BTCUSDT", ts)

	if !strings.HasPrefix(id, "BTCUSDT-") {
		t.Errorf("expected cycle id to start with 'BTCUSDT-', got %s", id)
	}
	if !strings.Contains(id, "123456789") {
		t.Errorf("expected cycle id to contain nanoseconds, got %s", id)
	}
}
