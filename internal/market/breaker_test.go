package market

import (
	"sync"
	"testing"
	"time"
)

func TestBreaker_InitialState(t *testing.T) {
	b := NewBreaker()

	if b.State() != BreakerClosed {
		t.Errorf("expected initial state to be closed, got %s", b.StateString())
	}

	if !b.Allow() {
		t.Error("expected Allow() to return true in closed state")
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b := NewBreakerWithConfig(3, 1*time.Second, 1)

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}

	if b.State() != BreakerOpen {
		t.Errorf("expected state to be open after 3 failures, got %s", b.StateString())
	}

	if b.Allow() {
		t.Error("expected Allow() to return false in open state")
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreakerWithConfig(3, 1*time.Second, 1)

	b.RecordFailure()
	b.RecordFailure()

	b.RecordSuccess()

	b.RecordFailure()
	b.RecordFailure()

	if b.State() != BreakerClosed {
		t.Errorf("expected state to still be closed, got %s", b.StateString())
	}
}

func TestBreaker_HalfOpenToOpenOnFailure(t *testing.T) {
	b := NewBreakerWithConfig(2, 100*time.Millisecond, 2)

	b.RecordFailure()
	b.RecordFailure()
	time.Sleep(150 * time.Millisecond)
	b.Allow() // triggers half-open

	b.RecordFailure()

	if b.State() != BreakerOpen {
		t.Errorf("expected state to be open after failure in half-open, got %s", b.StateString())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker()

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	if b.State() != BreakerOpen {
		t.Fatalf("expected state to be open, got %s", b.StateString())
	}

	b.Reset()

	if b.State() != BreakerClosed {
		t.Errorf("expected state to be closed after reset, got %s", b.StateString())
	}

	if !b.Allow() {
		t.Error("expected Allow() to return true after reset")
	}
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b := NewBreaker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Allow()
			if n%2 == 0 {
				b.RecordSuccess()
			} else {
				b.RecordFailure()
			}
		}(i)
	}

	wg.Wait()

	state := b.State()
	if state != BreakerClosed && state != BreakerOpen && state != BreakerHalfOpen {
		t.Errorf("invalid state after concurrent access: %d", state)
	}
}
