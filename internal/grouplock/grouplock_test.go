package grouplock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bobbin/internal/grouplock"
	"bobbin/internal/metrics"
	"bobbin/internal/services"
	"bobbin/internal/testsupport"
)

func newManager(t *testing.T, now *time.Time, opts ...testsupport.ConfigOption) *grouplock.Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	return grouplock.NewManager(cfg, st, &metrics.Metrics{}, nil,
		grouplock.WithClock(func() time.Time { return *now }),
	)
}

func TestAcquireReleaseCycle(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	mgr := newManager(t, &now)
	ctx := context.Background()

	token, err := mgr.Acquire(ctx, "news")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	if _, err := mgr.Acquire(ctx, "news"); !errors.Is(err, services.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := mgr.Release(ctx, "news", "wrong-token"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for wrong token, got %v", err)
	}
	if err := mgr.Release(ctx, "news", token); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := mgr.Acquire(ctx, "news"); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
}

func TestExpiredLockReclaimable(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	mgr := newManager(t, &now, testsupport.WithLockTTL(60))
	ctx := context.Background()

	stale, err := mgr.Acquire(ctx, "news")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	now = now.Add(2 * time.Minute)
	fresh, err := mgr.Acquire(ctx, "news")
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	if fresh == stale {
		t.Fatal("expected a new token for the reclaimed lock")
	}

	// The stale token lost its lease and cannot release the new holder.
	if err := mgr.Release(ctx, "news", stale); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for lapsed token, got %v", err)
	}
}

func TestConcurrentAcquireOneWinner(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	mgr := newManager(t, &now)
	ctx := context.Background()

	const attempts = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		won    int
		locked int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Acquire(ctx, "news")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, services.ErrLocked):
				locked++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
	if locked != attempts-1 {
		t.Fatalf("expected %d contended calls, got %d", attempts-1, locked)
	}
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	mgr := newManager(t, &now, testsupport.WithLockTTL(60))
	ctx := context.Background()

	if _, err := mgr.Acquire(ctx, "news"); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	now = now.Add(5 * time.Minute)
	purged, err := mgr.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged lock, got %d", purged)
	}

	holder, err := mgr.Holder(ctx, "news")
	if err != nil {
		t.Fatalf("Holder: %v", err)
	}
	if holder != nil {
		t.Fatalf("expected no holder after sweep, got %+v", holder)
	}
}
