package persistence

import (
	"context"
	"errors"
	"testing"
)

// transientErr satisfies pgconn.SafeToRetry, the gate Retryer uses.
type transientErr struct{}

func (transientErr) Error() string     { return "connection reset" }
func (transientErr) SafeToRetry() bool { return true }

func TestRetryerRetriesTransientFailures(t *testing.T) {
	retry := NewRetryer(3)

	attempts := 0
	err := retry.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return transientErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryerStopsOnNonRetryableErrors(t *testing.T) {
	retry := NewRetryer(3)

	serverErr := errors.New("duplicate key value violates unique constraint")
	attempts := 0
	err := retry.Do(context.Background(), func() error {
		attempts++
		return serverErr
	})
	if !errors.Is(err, serverErr) {
		t.Fatalf("Do() error = %v, want %v", err, serverErr)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1: server-reported errors must not be replayed", attempts)
	}
}

func TestRetryerGivesUpAfterMaxTries(t *testing.T) {
	retry := NewRetryer(2)

	attempts := 0
	err := retry.Do(context.Background(), func() error {
		attempts++
		return transientErr{}
	})
	if err == nil {
		t.Fatal("Do() = nil, want error after exhausting attempts")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

// A replayed operation re-executes every statement in it. Multi-statement
// writes therefore have to commit or roll back as one unit: if the first
// statement's effect survived a failed attempt, the replay would apply it
// again. This models a two-statement append where the second statement
// fails transiently once; only the attempt that completes both statements
// may leave anything behind.
func TestRetryerReplaysOperationsAsAUnit(t *testing.T) {
	retry := NewRetryer(3)

	inserts := 0
	committed := 0
	err := retry.Do(context.Background(), func() error {
		pending := 0

		pending++ // statement one always succeeds
		inserts++
		if inserts == 1 {
			return transientErr{} // statement two fails on the first attempt
		}

		committed += pending
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if inserts != 2 {
		t.Fatalf("statement one executed %d times, want 2 (one per attempt)", inserts)
	}
	if committed != 1 {
		t.Errorf("committed rows = %d, want 1 for one logical append", committed)
	}
}
