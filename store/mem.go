// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"slices"
	"sync"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/settings"
)

type memEntry struct {
	settings    *settings.Settings
	history     []int
	snapshot    *draw.State
	hasSnapshot bool
	steps       []Progress
	cursor      *Cursor
}

// Mem 是記憶體內的 Store。所有讀寫都複製資料，呼叫端拿到的 slice 可以自由修改。
type Mem struct {
	mu     sync.Mutex
	data   map[string]*memEntry
	closed bool
}

var _ Store = (*Mem)(nil)

func NewMem() *Mem {
	return &Mem{data: make(map[string]*memEntry)}
}

// entry 取得或建立 session 的資料。呼叫端必須持有 mu。
func (m *Mem) entry(ctx context.Context, session string, create bool) (*memEntry, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if m.closed {
		return nil, "", ErrClosed
	}
	id, err := CheckID(session)
	if err != nil {
		return nil, "", err
	}
	e, ok := m.data[id]
	if !ok && create {
		e = &memEntry{}
		m.data[id] = e
	}
	return e, id, nil
}

func (m *Mem) LoadSettings(ctx context.Context, session string) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, false)
	if err != nil {
		return settings.Settings{}, err
	}
	if e == nil || e.settings == nil {
		return settings.Settings{}, ErrNotFound
	}
	return *e.settings, nil
}

func (m *Mem) SaveSettings(ctx context.Context, session string, s settings.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, true)
	if err != nil {
		return err
	}
	e.settings = &s
	return nil
}

func (m *Mem) AppendHistory(ctx context.Context, session string, values ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, true)
	if err != nil {
		return err
	}
	e.history = append(e.history, values...)
	return nil
}

func (m *Mem) LoadHistory(ctx context.Context, session string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, false)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []int{}, nil
	}
	return append([]int{}, e.history...), nil
}

func (m *Mem) ClearHistory(ctx context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, false)
	if err != nil || e == nil {
		return err
	}
	e.history = nil
	return nil
}

func (m *Mem) LoadSnapshot(ctx context.Context, session string) (*draw.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, false)
	if err != nil {
		return nil, err
	}
	if e == nil || !e.hasSnapshot {
		return nil, ErrNotFound
	}
	if e.cursor == nil && len(e.steps) == 0 {
		return cloneState(e.snapshot), nil
	}
	return Replay(e.snapshot, e.cursor, e.steps), nil
}

func (m *Mem) SaveSnapshot(ctx context.Context, session string, st *draw.State) error {
	if st == nil {
		return errNilState
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, true)
	if err != nil {
		return err
	}
	e.setSnapshot(st)
	return nil
}

// setSnapshot 呼叫端必須持有 mu。
func (e *memEntry) setSnapshot(st *draw.State) {
	e.snapshot = cloneState(st)
	e.hasSnapshot = true
	e.steps = nil
	e.cursor = nil
}

// CommitDraw 在同一把鎖下寫入紀錄與週期進度。所有檢查在修改之前完成。
func (m *Mem) CommitDraw(ctx context.Context, session string, c DrawCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _, err := m.entry(ctx, session, false)
	if err != nil {
		return err
	}
	if e == nil || (c.Base == nil && !e.hasSnapshot) {
		return ErrNotFound
	}
	e.history = append(e.history, c.Value)
	if c.Base != nil {
		e.setSnapshot(c.Base)
		e.snapshot.History = nil
		return nil
	}
	if c.InCycle {
		e.steps = append(e.steps, Progress{Cycle: c.Cycle, Value: c.Value})
	}
	e.cursor = &Cursor{Cycle: c.Cycle, Core: slices.Clone(c.Core)}
	return nil
}

func (m *Mem) Sessions(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Mem) DeleteSession(ctx context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, id, err := m.entry(ctx, session, false)
	if err != nil {
		return err
	}
	delete(m.data, id)
	return nil
}

func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

func cloneState(st *draw.State) *draw.State {
	cp := *st
	cp.Drawn = slices.Clone(st.Drawn)
	cp.History = slices.Clone(st.History)
	cp.Core = slices.Clone(st.Core)
	return &cp
}
