package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/engagement-score/internal/logging"
)

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func newTestRepository(attempts int) *ScoreRepository {
	return &ScoreRepository{
		logger:         zap.NewNop(),
		retryAttempts:  attempts,
		initialBackoff: time.Millisecond,
		maxBackoff:     2 * time.Millisecond,
	}
}

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	repo := newTestRepository(3)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-1", func() error {
		attempts++
		if attempts < 2 {
			return transientTestError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryReturnsOperationError(t *testing.T) {
	repo := newTestRepository(2)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-2", func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if opErr.RequestID != "req-2" {
		t.Fatalf("unexpected request id: %s", opErr.RequestID)
	}
}

func TestExecuteWithRetryGivesUpAfterAttempts(t *testing.T) {
	repo := newTestRepository(3)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-3", func() error {
		attempts++
		return transientTestError{}
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryPassesRecordNotFoundThrough(t *testing.T) {
	repo := newTestRepository(3)

	attempts := 0
	err := repo.executeWithRetry(context.Background(), "test.operation", "req-4", func() error {
		attempts++
		return gorm.ErrRecordNotFound
	})

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteWithRetryStopsOnCancelledContext(t *testing.T) {
	repo := newTestRepository(3)
	ctx, cancel := context.WithCancel(context.Background())

	err := repo.executeWithRetry(ctx, "test.operation", "req-5", func() error {
		cancel()
		return transientTestError{}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
