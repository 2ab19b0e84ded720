package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- ParMap edge cases ---

func TestParMap_EmptySlice(t *testing.T) {
	out := ParMap([]int{}, 4, func(v int) int { return v * 2 })
	if len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestParMap_WorkersZero(t *testing.T) {
	// workers <= 0 with empty items → workers = len(items) = 0 → early return
	out := ParMap([]int{}, 0, func(v int) int { return v * 2 })
	if len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestParMap_NegativeWorkers(t *testing.T) {
	// workers <= 0 → workers = len(items), then proceeds normally
	out := ParMap([]int{1, 2, 3}, -1, func(v int) int { return v * 2 })
	if len(out) != 3 || out[0] != 2 || out[1] != 4 || out[2] != 6 {
		t.Fatalf("unexpected: %v", out)
	}
}

// --- ParMapResult edge cases ---

func TestParMapResult_EmptySlice(t *testing.T) {
	out := ParMapResult([]int{}, 4, func(v int) Result[int] { return Ok(v) })
	if len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestParMapResult_WorkersZero(t *testing.T) {
	out := ParMapResult([]int{}, 0, func(v int) Result[int] { return Ok(v) })
	if len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestParMapResult_NegativeWorkers(t *testing.T) {
	out := ParMapResult([]int{1, 2}, -1, func(v int) Result[int] { return Ok(v * 3) })
	if len(out) != 2 || !out[0].IsOk() || out[0].Must() != 3 {
		t.Fatal("unexpected result")
	}
}

func TestParMapResult_WithErrors(t *testing.T) {
	out := ParMapResult([]int{1, 2, 3}, 2, func(v int) Result[int] {
		if v == 2 {
			return Err[int](errors.New("fail"))
		}
		return Ok(v)
	})
	if len(out) != 3 {
		t.Fatal("expected 3 results")
	}
	if !out[1].IsErr() {
		t.Fatal("expected error for index 1")
	}
}

// --- MapResult on error ---

func TestMapResult_OnError(t *testing.T) {
	r := MapResult(Err[int](errors.New("bad")), func(v int) string { return "nope" })
	if r.IsOk() {
		t.Fatal("MapResult on Err should be Err")
	}
	_, err := r.Unwrap()
	if err.Error() != "bad" {
		t.Fatalf("wrong error: %v", err)
	}
}

// --- Retry edge cases ---

func TestRetry_ContextCancelledBeforeSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	opts := RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Hour, // long wait, will be cancelled
		MaxWait:     time.Hour,
		Jitter:      false,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	r := Retry(ctx, opts, func(ctx context.Context) Result[int] {
		attempts++
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("expected error")
	}
	_, err := r.Unwrap()
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_ContextCancelledBeforeFirstSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled

	opts := RetryOpts{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Jitter:      false,
	}

	r := Retry(ctx, opts, func(ctx context.Context) Result[int] {
		return Err[int](errors.New("fail"))
	})
	if r.IsOk() {
		t.Fatal("expected error")
	}
	_, err := r.Unwrap()
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetry_NoJitter(t *testing.T) {
	opts := RetryOpts{
		MaxAttempts: 2,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Jitter:      false,
	}

	attempts := 0
	r := Retry(context.Background(), opts, func(ctx context.Context) Result[int] {
		attempts++
		if attempts < 2 {
			return Err[int](errors.New("fail"))
		}
		return Ok(42)
	})
	if r.Must() != 42 {
		t.Fatal("expected success")
	}
}

func TestRetry_MaxWaitCap(t *testing.T) {
	opts := RetryOpts{
		MaxAttempts: 3,
		InitialWait: 10 * time.Millisecond,
		MaxWait:     5 * time.Millisecond, // lower than initial
		Jitter:      false,
	}

	attempts := 0
	r := Retry(context.Background(), opts, func(ctx context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Err[int](errors.New("fail"))
		}
		return Ok(1)
	})
	if r.Must() != 1 {
		t.Fatal("expected success on 3rd attempt")
	}
}

func TestRetry_AllFail(t *testing.T) {
	opts := RetryOpts{
		MaxAttempts: 2,
		InitialWait: time.Millisecond,
		MaxWait:     time.Millisecond,
		Jitter:      true,
	}

	r := Retry(context.Background(), opts, func(ctx context.Context) Result[int] {
		return Err[int](errors.New("always fail"))
	})
	if r.IsOk() {
		t.Fatal("expected error")
	}
}

