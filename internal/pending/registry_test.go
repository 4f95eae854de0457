package pending_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/seantiz/docgen/internal/pending"
)

func TestCancelWithoutWaiter(t *testing.T) {
	r := pending.NewRegistry()
	if r.Cancel("missing") {
		t.Error("Cancel(missing) = true, want false")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestCancelWakesWait(t *testing.T) {
	r := pending.NewRegistry()
	h, err := r.BeginWait("r1")
	if err != nil {
		t.Fatalf("BeginWait: %v", err)
	}
	defer r.EndWait(h)

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Cancel("r1")
	}()

	start := time.Now()
	woken, err := h.Wait(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !woken {
		t.Error("Wait woken = false, want true")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Wait took %v, expected early wake", elapsed)
	}
}

func TestCancelBeforeWaitIsNotLost(t *testing.T) {
	r := pending.NewRegistry()
	h, err := r.BeginWait("r1")
	if err != nil {
		t.Fatalf("BeginWait: %v", err)
	}
	defer r.EndWait(h)

	if !r.Cancel("r1") {
		t.Fatal("Cancel = false, want true")
	}

	woken, err := h.Wait(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !woken {
		t.Error("Wait woken = false after earlier cancel, want true")
	}
}

func TestHandleFiresOnce(t *testing.T) {
	r := pending.NewRegistry()
	h, _ := r.BeginWait("r1")
	defer r.EndWait(h)

	if !h.Release() {
		t.Error("first Release = false, want true")
	}
	if h.Release() {
		t.Error("second Release = true, want false")
	}
	if !r.Cancel("r1") {
		t.Error("Cancel on released handle = false, want true (waiter still registered)")
	}
	if !h.Released() {
		t.Error("Released() = false, want true")
	}

	// The single release wakes one Wait; the next one sleeps its full duration.
	if woken, _ := h.Wait(context.Background(), time.Second); !woken {
		t.Error("first Wait woken = false, want true")
	}
	if woken, _ := h.Wait(context.Background(), 10*time.Millisecond); woken {
		t.Error("second Wait woken = true, want false")
	}
}

func TestWaitTimesOut(t *testing.T) {
	r := pending.NewRegistry()
	h, _ := r.BeginWait("r1")
	defer r.EndWait(h)

	woken, err := h.Wait(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if woken {
		t.Error("Wait woken = true, want false")
	}
}

func TestWaitContextCancelled(t *testing.T) {
	r := pending.NewRegistry()
	h, _ := r.BeginWait("r1")
	defer r.EndWait(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Wait(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait error = %v, want context.Canceled", err)
	}
}

func TestBeginWaitDuplicate(t *testing.T) {
	r := pending.NewRegistry()
	if _, err := r.BeginWait("r1"); err != nil {
		t.Fatalf("BeginWait: %v", err)
	}
	if _, err := r.BeginWait("r1"); !errors.Is(err, pending.ErrAlreadyWaiting) {
		t.Errorf("second BeginWait error = %v, want ErrAlreadyWaiting", err)
	}
}

func TestReRegisterAfterEndWaitIsFresh(t *testing.T) {
	r := pending.NewRegistry()
	h1, _ := r.BeginWait("r1")
	r.Cancel("r1")
	r.EndWait(h1)

	if r.Len() != 0 {
		t.Fatalf("Len() after EndWait = %d, want 0", r.Len())
	}

	h2, err := r.BeginWait("r1")
	if err != nil {
		t.Fatalf("BeginWait after EndWait: %v", err)
	}
	defer r.EndWait(h2)

	if h2 == h1 {
		t.Fatal("BeginWait returned the previous handle")
	}
	if h2.Released() {
		t.Error("fresh handle already released")
	}
	if woken, _ := h2.Wait(context.Background(), 10*time.Millisecond); woken {
		t.Error("fresh handle woke without a cancel")
	}
}

func TestEndWaitIdempotent(t *testing.T) {
	r := pending.NewRegistry()
	h, _ := r.BeginWait("r1")
	r.EndWait(h)
	r.EndWait(h)
	r.EndWait(nil)

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if r.Cancel("r1") {
		t.Error("Cancel after EndWait = true, want false")
	}
}

func TestStaleEndWaitKeepsNewerWaiter(t *testing.T) {
	r := pending.NewRegistry()
	old, _ := r.BeginWait("r1")
	r.EndWait(old)

	h, err := r.BeginWait("r1")
	if err != nil {
		t.Fatalf("BeginWait after EndWait: %v", err)
	}
	defer r.EndWait(h)

	// The earlier poll ending a second time must not touch the new entry.
	r.EndWait(old)

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if !r.Cancel("r1") {
		t.Fatal("Cancel = false, want true for the newer waiter")
	}
	if woken, _ := h.Wait(context.Background(), 5*time.Second); !woken {
		t.Error("newer waiter woken = false, want true")
	}
	if old.Released() {
		t.Error("ended handle was released by a cancel aimed at the newer waiter")
	}
}

func TestIndependentIDsConcurrent(t *testing.T) {
	r := pending.NewRegistry()
	const n = 50

	var wg sync.WaitGroup
	for i := range n {
		id := fmt.Sprintf("req-%d", i)
		wg.Go(func() {
			h, err := r.BeginWait(id)
			if err != nil {
				t.Errorf("BeginWait(%s): %v", id, err)
				return
			}
			defer r.EndWait(h)
			go r.Cancel(id)
			if _, err := h.Wait(context.Background(), 5*time.Second); err != nil {
				t.Errorf("Wait(%s): %v", id, err)
			}
		})
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after all waits ended, want 0", r.Len())
	}
}
