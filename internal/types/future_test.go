package types

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFuture_Get(t *testing.T) {
	t.Run("successful result", func(t *testing.T) {
		future := NewFuture[string, int]()

		go func() {
			time.Sleep(50 * time.Millisecond)
			future.Resolve(NewResult("success", 42, nil))
		}()

		value, key, err := future.Get()

		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if value != "success" {
			t.Errorf("expected value 'success', got %v", value)
		}
		if key != 42 {
			t.Errorf("expected key 42, got %v", key)
		}
	})

	t.Run("error result", func(t *testing.T) {
		future := NewFuture[string, int]()
		expectedErr := errors.New("task failed")

		go future.Resolve(NewResult("", 10, expectedErr))

		value, key, err := future.Get()

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if value != "" {
			t.Errorf("expected empty value, got %v", value)
		}
		if key != 10 {
			t.Errorf("expected key 10, got %v", key)
		}
	})

	t.Run("concurrent waiters see the same result", func(t *testing.T) {
		future := NewFuture[int, string]()

		var wg sync.WaitGroup
		values := make([]int, 8)
		for i := range values {
			wg.Add(1)
			go func() {
				defer wg.Done()
				values[i], _, _ = future.Get()
			}()
		}

		future.Resolve(NewResult(123, "test", nil))
		wg.Wait()

		for i, v := range values {
			if v != 123 {
				t.Errorf("waiter %d: expected 123, got %d", i, v)
			}
		}
	})
}

func TestFuture_Resolve_FirstWins(t *testing.T) {
	future := NewFuture[int, int64]()

	if !future.Resolve(NewResult(1, int64(1), nil)) {
		t.Fatal("first resolve should succeed")
	}
	if future.Resolve(NewResult(2, int64(1), errors.New("late"))) {
		t.Fatal("second resolve should be ignored")
	}

	value, _, err := future.Get()
	if value != 1 || err != nil {
		t.Errorf("expected (1, nil), got (%d, %v)", value, err)
	}
}

func TestFuture_GetWithContext(t *testing.T) {
	t.Run("successful result before timeout", func(t *testing.T) {
		future := NewFuture[string, int]()
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		go func() {
			time.Sleep(20 * time.Millisecond)
			future.Resolve(NewResult("success", 42, nil))
		}()

		value, key, err := future.GetWithContext(ctx)
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if value != "success" || key != 42 {
			t.Errorf("unexpected result (%v, %v)", value, key)
		}
	})

	t.Run("context timeout before result", func(t *testing.T) {
		future := NewFuture[string, int]()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		value, key, err := future.GetWithContext(ctx)

		if err != context.DeadlineExceeded {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
		if value != "" || key != 0 {
			t.Errorf("expected zero values, got (%v, %v)", value, key)
		}

		// the future is still usable after a timed-out wait
		future.Resolve(NewResult("late", 1, nil))
		if v, _, _ := future.Get(); v != "late" {
			t.Errorf("expected 'late', got %v", v)
		}
	})

	t.Run("timeout helper", func(t *testing.T) {
		future := NewFuture[int, int]()
		if _, _, err := future.GetWithTimeout(10 * time.Millisecond); err != context.DeadlineExceeded {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})
}

func TestFuture_TryGet(t *testing.T) {
	future := NewFuture[string, int]()

	if _, _, _, ready := future.TryGet(); ready {
		t.Fatal("expected ready to be false")
	}
	if future.IsReady() {
		t.Fatal("expected IsReady to be false")
	}

	future.Resolve(NewResult("ready", 100, nil))

	value, key, err, ready := future.TryGet()
	if !ready {
		t.Fatal("expected ready to be true")
	}
	if value != "ready" || key != 100 || err != nil {
		t.Errorf("unexpected result (%v, %v, %v)", value, key, err)
	}
	if !future.IsReady() {
		t.Error("expected IsReady to be true")
	}
}
