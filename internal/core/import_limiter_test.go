package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestImportLimiter_SingleSlot(t *testing.T) {
	limiter := NewImportLimiter(0, 50*time.Millisecond)

	if got := limiter.Status().MaxConcurrent; got != DefaultMaxConcurrentImports {
		t.Fatalf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentImports)
	}

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrImportInProgress) {
		t.Errorf("second Acquire = %v, want ErrImportInProgress", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("gave up too early: %v", elapsed)
	}

	limiter.Release()
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after Release = %d", got)
	}
}

func TestImportLimiter_ParentCancelled(t *testing.T) {
	limiter := NewImportLimiter(1, time.Second)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire should succeed on an empty limiter")
	}
	defer limiter.Release()

	if limiter.TryAcquire() {
		t.Fatal("TryAcquire should fail when full")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire with cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v", err)
	}

	st := limiter.Status()
	if st.Active != 0 || st.Available != 2 {
		t.Errorf("Status = %+v", st)
	}
}
