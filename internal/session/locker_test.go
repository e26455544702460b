package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLockManagerSerializesPerCall(t *testing.T) {
	m := NewLockManager(time.Second)
	ctx := context.Background()

	release, err := m.Acquire(ctx, "call-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// Same call is busy; a different call is not.
	if _, ok := m.TryAcquire("call-1"); ok {
		t.Error("TryAcquire should fail while lock is held")
	}
	other, ok := m.TryAcquire("call-2")
	if !ok {
		t.Fatal("locks for different calls must not contend")
	}
	other()

	release()
	release2, ok := m.TryAcquire("call-1")
	if !ok {
		t.Fatal("lock should be free after release")
	}
	release2()
}

func TestLockManagerAcquireTimeout(t *testing.T) {
	m := NewLockManager(20 * time.Millisecond)
	ctx := context.Background()

	release, err := m.Acquire(ctx, "call-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := m.Acquire(ctx, "call-1"); !errors.Is(err, ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got %v", err)
	}
}

func TestLockManagerContextCancel(t *testing.T) {
	m := NewLockManager(time.Minute)

	release, err := m.Acquire(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := m.Acquire(ctx, "call-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline error, got %v", err)
	}
}

func TestLockManagerBlockedAcquireProceedsAfterRelease(t *testing.T) {
	m := NewLockManager(time.Second)
	ctx := context.Background()

	release, err := m.Acquire(ctx, "call-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	acquired := make(chan func(), 1)
	go func() {
		r, err := m.Acquire(ctx, "call-1")
		if err != nil {
			t.Errorf("blocked acquire: %v", err)
			return
		}
		acquired <- r
	}()

	// The goroutine must not get the lock before release.
	select {
	case <-acquired:
		t.Fatal("second acquire succeeded while lock held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case r := <-acquired:
		r()
	case <-time.After(time.Second):
		t.Fatal("blocked acquire never proceeded after release")
	}
}

func TestLockManagerForget(t *testing.T) {
	m := NewLockManager(time.Second)

	release, ok := m.TryAcquire("call-1")
	if !ok {
		t.Fatal("try acquire")
	}
	m.Forget("call-1")

	// A release on the forgotten channel must not panic or deadlock.
	release()

	// The call ID is usable again with fresh state.
	r2, ok := m.TryAcquire("call-1")
	if !ok {
		t.Fatal("lock should be free after forget")
	}
	r2()
}
