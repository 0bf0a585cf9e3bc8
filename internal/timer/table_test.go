package timer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTable_RegisterUntilFull(t *testing.T) {
	table := NewTable(2)
	noop := func() {}

	h1, err := table.Register(noop)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := table.Register(noop); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := table.Register(noop); !errors.Is(err, ErrTableFull) {
		t.Errorf("Expected ErrTableFull, got %v", err)
	}

	if err := table.Release(h1); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	h3, err := table.Register(noop)
	if err != nil {
		t.Fatalf("Register after release failed: %v", err)
	}
	if h3.Index() != h1.Index() {
		t.Errorf("Expected slot %d to be reused, got %d", h1.Index(), h3.Index())
	}
	if table.Active() != 2 {
		t.Errorf("Expected 2 active slots, got %d", table.Active())
	}
}

func TestTable_StaleAndOutOfRangeHandles(t *testing.T) {
	table := NewTable(1)
	h, _ := table.Register(func() {})
	table.Release(h)

	if err := table.Start(h, time.Millisecond); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle for released handle, got %v", err)
	}

	h2, _ := table.Register(func() {})
	if err := table.Stop(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Stale handle must not reach the new owner of slot %d, got %v", h2.Index(), err)
	}

	bogus := Handle{index: 5}
	if err := table.Stop(bogus); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Expected ErrInvalidHandle for out of range handle, got %v", err)
	}
}

func TestTable_InvalidArguments(t *testing.T) {
	table := NewTable(1)
	if _, err := table.Register(nil); !errors.Is(err, ErrNilCallback) {
		t.Errorf("Expected ErrNilCallback, got %v", err)
	}
	h, _ := table.Register(func() {})
	if err := table.Start(h, 0); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod, got %v", err)
	}
}

func TestTable_StartStop(t *testing.T) {
	table := NewTable(DefaultCapacity)
	var ticks atomic.Int64
	h, _ := table.Register(func() { ticks.Add(1) })

	if err := table.Start(h, time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !table.Running(h) {
		t.Error("Timer should be running after Start")
	}

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ticks.Load() < 5 {
		t.Fatalf("Expected at least 5 ticks, got %d", ticks.Load())
	}

	if err := table.Stop(h); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if table.Running(h) {
		t.Error("Timer should not be running after Stop")
	}

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != after {
		t.Errorf("Callback ran after Stop returned: %d -> %d", after, ticks.Load())
	}
}

func TestTable_StopWaitsForInFlightCallback(t *testing.T) {
	table := NewTable(1)
	entered := make(chan struct{}, 1)
	var finished atomic.Bool

	h, _ := table.Register(func() {
		select {
		case entered <- struct{}{}:
		default:
		}
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	table.Start(h, time.Millisecond)

	<-entered
	table.Stop(h)
	if !finished.Load() {
		t.Error("Stop returned while a callback was still executing")
	}
}

func TestTable_StopIdempotent(t *testing.T) {
	table := NewTable(1)
	h, _ := table.Register(func() {})

	if err := table.Stop(h); err != nil {
		t.Errorf("Stop on never started timer should be a no-op, got %v", err)
	}
	table.Start(h, time.Millisecond)
	table.Stop(h)
	if err := table.Stop(h); err != nil {
		t.Errorf("Second Stop should be a no-op, got %v", err)
	}
}

func TestTable_Restart(t *testing.T) {
	table := NewTable(1)
	var ticks atomic.Int64
	h, _ := table.Register(func() { ticks.Add(1) })

	table.Start(h, time.Millisecond)
	table.Stop(h)
	before := ticks.Load()

	table.Start(h, time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for ticks.Load() == before && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	table.Close()

	if ticks.Load() == before {
		t.Error("Timer did not tick after restart")
	}
	if table.Running(h) {
		t.Error("Close should stop all timers")
	}
}
