package store

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/settings"
)

func TestMemSettings(t *testing.T) {
	ctx := context.Background()
	m := NewMem()
	if _, err := m.LoadSettings(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s := settings.Default()
	s.Range = "3-9"
	if err := m.SaveSettings(ctx, "a", s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := m.LoadSettings(ctx, "a")
	if err != nil || got != s {
		t.Fatalf("LoadSettings: got %+v err=%v", got, err)
	}
	bad := s
	bad.DelayMs = 1
	if err := m.SaveSettings(ctx, "a", bad); err == nil {
		t.Fatalf("expected invalid settings to be rejected")
	}
}

func TestMemHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMem()
	h, err := m.LoadHistory(ctx, "a")
	if err != nil || len(h) != 0 {
		t.Fatalf("empty history: %v err=%v", h, err)
	}
	_ = m.AppendHistory(ctx, "a", 3, 1)
	_ = m.AppendHistory(ctx, "a", 2)
	h, _ = m.LoadHistory(ctx, "a")
	if !slices.Equal(h, []int{3, 1, 2}) {
		t.Fatalf("history order: %v", h)
	}
	h[0] = 99
	again, _ := m.LoadHistory(ctx, "a")
	if again[0] != 3 {
		t.Fatalf("LoadHistory must return a copy")
	}
	if err := m.ClearHistory(ctx, "a"); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	h, _ = m.LoadHistory(ctx, "a")
	if len(h) != 0 {
		t.Fatalf("history should be empty, got %v", h)
	}
}

func TestMemSnapshotAndSessions(t *testing.T) {
	ctx := context.Background()
	m := NewMem()
	if _, err := m.LoadSnapshot(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	st := &draw.State{Range: draw.Range{Min: 1, Max: 5}, Drawn: []int{2}, Cycle: 1, Core: []byte{1, 2}}
	if err := m.SaveSnapshot(ctx, "b", st); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	st.Drawn[0] = 4
	got, err := m.LoadSnapshot(ctx, "b")
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got.Drawn[0] != 2 {
		t.Fatalf("snapshot must be stored as a copy")
	}
	_ = m.AppendHistory(ctx, "a", 1)
	ids, _ := m.Sessions(ctx)
	if !slices.Equal(ids, []string{"a", "b"}) {
		t.Fatalf("sessions: %v", ids)
	}
	if err := m.DeleteSession(ctx, "b"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := m.LoadSnapshot(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted session should be gone, got %v", err)
	}
}

func TestMemCommitDraw(t *testing.T) {
	ctx := context.Background()
	m := NewMem()
	if err := m.CommitDraw(ctx, "a", DrawCommit{Value: 1, Cycle: 1, InCycle: true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ids, _ := m.Sessions(ctx); len(ids) != 0 {
		t.Fatalf("failed commit must not create the session: %v", ids)
	}

	base := &draw.State{Range: draw.Range{Min: 1, Max: 5}, Drawn: []int{4}, Cycle: 1, Core: []byte{1}}
	_ = m.SaveSnapshot(ctx, "a", base)
	_ = m.CommitDraw(ctx, "a", DrawCommit{Value: 2, Cycle: 1, InCycle: true, Core: []byte{2}})
	_ = m.CommitDraw(ctx, "a", DrawCommit{Value: 5, Cycle: 1, InCycle: true, Core: []byte{3}})
	got, _ := m.LoadSnapshot(ctx, "a")
	if !slices.Equal(got.Drawn, []int{4, 2, 5}) || !slices.Equal(got.Core, []byte{3}) {
		t.Fatalf("progress not replayed: %+v", got)
	}
	if h, _ := m.LoadHistory(ctx, "a"); !slices.Equal(h, []int{2, 5}) {
		t.Fatalf("history: %v", h)
	}

	ctx2, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.CommitDraw(ctx2, "a", DrawCommit{Value: 1, Cycle: 1, InCycle: true}); err == nil {
		t.Fatalf("expected context error")
	}
	if h, _ := m.LoadHistory(ctx, "a"); len(h) != 2 {
		t.Fatalf("failed commit wrote history: %v", h)
	}

	_ = m.CommitDraw(ctx, "a", DrawCommit{Value: 3, Cycle: 2, InCycle: true, Base: &draw.State{Range: base.Range, Cycle: 2, Drawn: []int{3}}})
	got, _ = m.LoadSnapshot(ctx, "a")
	if got.Cycle != 2 || !slices.Equal(got.Drawn, []int{3}) {
		t.Fatalf("base commit should replace progress: %+v", got)
	}
}

func TestReplayAcrossCycles(t *testing.T) {
	base := &draw.State{Range: draw.Range{Min: 1, Max: 3}, Drawn: []int{1, 2}, Cycle: 1}
	got := Replay(base, &Cursor{Cycle: 2}, []Progress{{Cycle: 1, Value: 3}, {Cycle: 2, Value: 2}})
	if got.Cycle != 2 || !slices.Equal(got.Drawn, []int{2}) {
		t.Fatalf("replay: %+v", got)
	}
	if !slices.Equal(base.Drawn, []int{1, 2}) {
		t.Fatalf("replay must not modify base")
	}
}

func TestMemGuards(t *testing.T) {
	m := NewMem()
	if err := m.AppendHistory(context.Background(), "  ", 1); err == nil {
		t.Fatalf("expected empty id error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.AppendHistory(ctx, "a", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	_ = m.Close()
	if _, err := m.LoadHistory(context.Background(), "a"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSnapshotCodec(t *testing.T) {
	e := draw.NewDefault(5)
	if _, err := e.Configure("1-1000"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	for range 400 {
		_, _ = e.Draw()
	}
	st, err := e.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	blob, err := EncodeSnapshot(st)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	back, err := DecodeSnapshot(blob)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if back.Range != st.Range || back.Policy != st.Policy || back.Cycle != st.Cycle ||
		!slices.Equal(back.Drawn, st.Drawn) || !slices.Equal(back.History, st.History) ||
		!slices.Equal(back.Core, st.Core) {
		t.Fatalf("codec round trip mismatch")
	}

	if _, err := DecodeSnapshot([]byte("not zstd")); !errors.Is(err, draw.ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
	if _, err := EncodeSnapshot(nil); err == nil {
		t.Fatalf("expected nil snapshot error")
	}
}
