package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func statusOf(g *Group, name string) TaskStatus {
	for _, s := range g.Status() {
		if s.Name == name {
			return s
		}
	}
	return TaskStatus{}
}

func TestGroupRunsTasksRepeatedly(t *testing.T) {
	g := New(time.Second)
	var a, b int32
	if err := g.Add(Task{Name: "a", Interval: 10 * time.Millisecond, Cycle: func(context.Context) error {
		atomic.AddInt32(&a, 1)
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(Task{Name: "b", Interval: 10 * time.Millisecond, Cycle: func(context.Context) error {
		atomic.AddInt32(&b, 1)
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&a) >= 3 && atomic.LoadInt32(&b) >= 3
	})
	g.Stop()

	st := statusOf(g, "a")
	if st.State != "stopped" || st.Cycles < 3 || st.Failures != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.LastCycleStart.IsZero() {
		t.Fatal("last cycle start not recorded")
	}
}

func TestErrorAndPanicUseBackoff(t *testing.T) {
	g := New(20 * time.Millisecond)
	var calls int32
	err := g.Add(Task{Name: "flaky", Interval: time.Hour, Cycle: func(context.Context) error {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return errors.New("upstream exploded")
		case 2:
			panic("nil map")
		default:
			return nil
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Stop()

	// Two failures each followed by the short backoff, then a successful cycle
	// that parks the task for the hour-long interval.
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&calls) >= 3 })
	waitFor(t, time.Second, func() bool { return statusOf(g, "flaky").State == "sleeping" })

	st := statusOf(g, "flaky")
	if st.Failures != 2 || st.Cycles != 3 {
		t.Fatalf("unexpected counters %+v", st)
	}
	if st.LastError == "" {
		t.Fatal("last error not recorded")
	}
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("task ran %d times, expected to sleep for its interval", got)
	}
}

func TestStopPreventsFurtherCycles(t *testing.T) {
	g := New(time.Second)
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	err := g.Add(Task{Name: "slow", Interval: time.Millisecond, Cycle: func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started

	done := make(chan struct{})
	go func() {
		g.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned before the running cycle finished")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)
	<-done

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one cycle, got %d", got)
	}
	g.Stop()
	g.Wait()
}

func TestStartTwiceAndAddAfterStart(t *testing.T) {
	g := New(time.Second)
	if err := g.Add(Task{Name: "x", Interval: time.Hour, Cycle: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Stop()
	if err := g.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := g.Add(Task{Name: "y", Interval: time.Hour, Cycle: func(context.Context) error { return nil }}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestAddValidation(t *testing.T) {
	g := New(0)
	if err := g.Add(Task{Name: "", Interval: time.Second, Cycle: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := g.Add(Task{Name: "z", Interval: 0, Cycle: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if err := g.Add(Task{Name: "z", Interval: time.Second, Cycle: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(Task{Name: "z", Interval: time.Second, Cycle: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for duplicate name")
	}
	if st := statusOf(g, "z"); st.State != "idle" {
		t.Fatalf("unexpected initial state %s", st.State)
	}
}

func TestParentContextCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := New(time.Second)
	if err := g.Add(Task{Name: "x", Interval: time.Hour, Cycle: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	if err := g.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestStopDoesNotCancelRunningCycle(t *testing.T) {
	g := New(time.Second)
	started := make(chan struct{})
	var cycleErr atomic.Value
	err := g.Add(Task{Name: "fetch", Interval: time.Hour, Cycle: func(ctx context.Context) error {
		close(started)
		select {
		case <-ctx.Done():
			cycleErr.Store(ctx.Err())
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return nil
		}
	}})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-started
	g.Stop()

	if v := cycleErr.Load(); v != nil {
		t.Fatalf("cycle context was cancelled by Stop: %v", v)
	}
	st := statusOf(g, "fetch")
	if st.Cycles != 1 || st.Failures != 0 || st.State != "stopped" {
		t.Fatalf("unexpected status %+v", st)
	}
}
