package logging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOperationErrorFormatsAndUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := NewOperationError("usecase.detect_faces", "req-1", base)

	if got := err.Error(); got != "usecase.detect_faces (request_id=req-1): boom" {
		t.Fatalf("unexpected message: %s", got)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match")
	}
	if NewOperationError("op", "", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	if _, ok := RequestIDFromContext(context.Background()); ok {
		t.Fatal("expected no request id")
	}
	ctx := ContextWithRequestID(context.Background(), "req-9")
	id, ok := RequestIDFromContext(ctx)
	if !ok || id != "req-9" {
		t.Fatalf("expected req-9, got %q", id)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain entries")
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOperationOf(t *testing.T) {
	err := NewOperationError("azureface.detect", "", errors.New("down"))
	if got := OperationOf(err); got != "azureface.detect" {
		t.Fatalf("unexpected operation: %s", got)
	}
	if got := OperationOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty operation, got %s", got)
	}
}
