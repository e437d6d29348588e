package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAcquireMutualExclusion(t *testing.T) {
	locks := newAccountLocks()
	id := uuid.New()

	release, err := locks.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		second, err := locks.Acquire(context.Background(), id)
		if err != nil {
			t.Errorf("second Acquire: %v", err)
			return
		}
		close(acquired)
		second()
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquisition succeeded while lock held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second acquisition never completed after release")
	}
}

func TestAcquireCancellation(t *testing.T) {
	locks := newAccountLocks()
	a, b := uuid.New(), uuid.New()

	release, err := locks.Acquire(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locks.Acquire(ctx, a); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("blocked Acquire error = %v, want DeadlineExceeded", err)
	}

	// A cancelled multi-account acquisition must leave nothing held.
	release()
	got, err := locks.Acquire(context.Background(), a, b)
	if err != nil {
		t.Fatalf("reacquire after cancellation: %v", err)
	}
	got()
}

// Releasing twice must be a no-op: callers pair a deferred release with an
// explicit early one, and a second call draining empty semaphores would hang.
func TestReleaseIdempotent(t *testing.T) {
	locks := newAccountLocks()
	a, b := uuid.New(), uuid.New()

	release, err := locks.Acquire(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	done := make(chan struct{})
	go func() {
		release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("second release blocked")
	}

	// The accounts are free for the next caller.
	again, err := locks.Acquire(context.Background(), a, b)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	again()
}

func TestAcquireDuplicateIDs(t *testing.T) {
	locks := newAccountLocks()
	id := uuid.New()

	// Self-transfer style call: the same id twice must not self-deadlock.
	done := make(chan error, 1)
	go func() {
		release, err := locks.Acquire(context.Background(), id, id)
		if err == nil {
			release()
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire with duplicate ids: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Acquire with duplicate ids deadlocked")
	}
}

// Opposite-direction acquisitions over the same pair must both complete.
func TestAcquireOppositeOrders(t *testing.T) {
	locks := newAccountLocks()
	a, b := uuid.New(), uuid.New()

	done := make(chan struct{}, 2)
	for _, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
		go func(first, second uuid.UUID) {
			for i := 0; i < 100; i++ {
				release, err := locks.Acquire(context.Background(), first, second)
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				release()
			}
			done <- struct{}{}
		}(pair[0], pair[1])
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("opposite-order acquisitions deadlocked")
		}
	}
}
