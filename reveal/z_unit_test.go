package reveal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDrawer struct {
	mu     sync.Mutex
	rolls  int
	draws  int
	failOn string
}

func (f *fakeDrawer) Roll() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "roll" {
		return 0, errors.New("roll failed")
	}
	f.rolls++
	return 100 + f.rolls, nil
}

func (f *fakeDrawer) Draw() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "draw" {
		return 0, errors.New("draw failed")
	}
	f.draws++
	return 7, nil
}

func collect() (*[]Frame, func(Frame)) {
	var frames []Frame
	return &frames, func(f Frame) { frames = append(frames, f) }
}

func checkFrames(t *testing.T, frames []Frame) {
	t.Helper()
	if len(frames) == 0 {
		t.Fatalf("no frames")
	}
	for i, f := range frames {
		if f.Seq != i+1 {
			t.Fatalf("frame %d has seq %d", i, f.Seq)
		}
		if f.Final != (i == len(frames)-1) {
			t.Fatalf("only the last frame may be final: %+v", frames)
		}
	}
}

func TestRunAutoCommitsAfterDelay(t *testing.T) {
	d := &fakeDrawer{}
	frames, emit := collect()
	f, err := Run(context.Background(), d, Config{Tick: 2 * time.Millisecond, Delay: 30 * time.Millisecond}, nil, emit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !f.Final || f.Value != 7 || d.draws != 1 {
		t.Fatalf("unexpected final frame %+v draws=%d", f, d.draws)
	}
	if d.rolls < 2 {
		t.Fatalf("expected several rolling frames, got %d", d.rolls)
	}
	if f.Elapsed < 30*time.Millisecond {
		t.Fatalf("committed too early: %v", f.Elapsed)
	}
	checkFrames(t, *frames)
}

func TestRunZeroDelayCommitsImmediately(t *testing.T) {
	d := &fakeDrawer{}
	frames, emit := collect()
	f, err := Run(context.Background(), d, Config{}, nil, emit)
	if err != nil || !f.Final || d.rolls != 0 || len(*frames) != 1 {
		t.Fatalf("got %+v err=%v rolls=%d frames=%d", f, err, d.rolls, len(*frames))
	}
}

func TestRunManualWaitsForStop(t *testing.T) {
	d := &fakeDrawer{}
	stop := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(stop)
	}()
	frames, emit := collect()
	f, err := Run(context.Background(), d, Config{Tick: time.Millisecond, Delay: time.Millisecond, Manual: true}, stop, emit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if f.Elapsed < 20*time.Millisecond {
		t.Fatalf("manual mode must ignore Delay, committed after %v", f.Elapsed)
	}
	checkFrames(t, *frames)
}

func TestRunManualNeedsStop(t *testing.T) {
	_, err := Run(context.Background(), &fakeDrawer{}, Config{Manual: true}, nil, nil)
	if !errors.Is(err, ErrNoStop) {
		t.Fatalf("expected ErrNoStop, got %v", err)
	}
}

func TestRunStopEndsAutoEarly(t *testing.T) {
	d := &fakeDrawer{}
	stop := make(chan struct{})
	close(stop)
	f, err := Run(context.Background(), d, Config{Tick: time.Millisecond, Delay: time.Hour}, stop, nil)
	if err != nil || !f.Final || d.draws != 1 {
		t.Fatalf("got %+v err=%v draws=%d", f, err, d.draws)
	}
}

func TestRunCancelDoesNotCommit(t *testing.T) {
	d := &fakeDrawer{}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, d, Config{Tick: time.Millisecond, Delay: time.Hour}, nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if d.draws != 0 {
		t.Fatalf("cancelled reveal must not commit")
	}
}

func TestRunPropagatesDrawerErrors(t *testing.T) {
	if _, err := Run(context.Background(), &fakeDrawer{failOn: "roll"}, Config{Delay: time.Second}, nil, nil); err == nil {
		t.Fatalf("expected roll error")
	}
	if _, err := Run(context.Background(), &fakeDrawer{failOn: "draw"}, Config{}, nil, nil); err == nil {
		t.Fatalf("expected draw error")
	}
	if _, err := Run(context.Background(), nil, Config{}, nil, nil); err == nil {
		t.Fatalf("expected nil drawer error")
	}
}

func TestGuard(t *testing.T) {
	var g Guard
	if g.Busy() || g.Check() != nil {
		t.Fatalf("zero guard should be idle")
	}
	if err := g.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := g.Acquire(); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire should be busy, got %v", err)
	}
	if !errors.Is(g.Check(), ErrBusy) {
		t.Fatalf("Check should report busy")
	}
	g.Release()
	if g.Busy() {
		t.Fatalf("Release should clear the flag")
	}
}

func TestGuardConcurrentAcquire(t *testing.T) {
	var g Guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Acquire() == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("exactly one goroutine should win, got %d", won)
	}
}
