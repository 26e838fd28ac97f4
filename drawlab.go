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

// Package drawlab 是抽號器的組裝入口：把亂數工廠、持久化與日誌組在一起，並管理多個抽號 session。
//
// 分層：
//   - draw：純狀態機（範圍、週期、紀錄），不知道鎖、時間與儲存。
//   - Session：一個使用者的一台抽號機。序列化存取 Engine、在每次提交後寫入 store、擋住揭曉中的設定變更。
//   - Lab：建立 / 開啟 / 關閉 Session，派生每個 Session 的 seed。
//
// 典型用法：
//
//	lab, _ := drawlab.New(core.Default(), drawlab.WithStore(st), drawlab.WithLogger(log))
//	s, _ := lab.NewSession(ctx, settings.Default())
//	v, _ := s.Draw(ctx)
package drawlab

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/sdk/core"
	"github.com/zintix-labs/drawlab/settings"
	"github.com/zintix-labs/drawlab/store"
)

// ErrNoSession 找不到 session。與 store.ErrNotFound 同代碼。
var ErrNoSession = errs.Coded(errs.Warn, "not_found", "session not found")

// Option 設定 Lab。
type Option func(*Lab)

// WithLogger 指定 logger；預設丟棄所有紀錄。
func WithLogger(log *slog.Logger) Option {
	return func(l *Lab) {
		if log != nil {
			l.log = log
		}
	}
}

// WithStore 指定持久化；未指定時 session 只存在記憶體。
func WithStore(st store.Store) Option {
	return func(l *Lab) { l.st = st }
}

// WithSeed 固定 base seed；未指定時由 crypto/rand 產生。
func WithSeed(seed int64) Option {
	return func(l *Lab) {
		l.seed = seed
		l.seedSet = true
	}
}

// Lab 管理所有 Session。可併發使用。
type Lab struct {
	cf      core.PRNGFactory
	log     *slog.Logger
	st      store.Store
	seed    int64
	seedSet bool
	seeds   *seedMaker

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New 建立 Lab。cf 不可為 nil。
func New(cf core.PRNGFactory, opts ...Option) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("prng factory required")
	}
	l := &Lab{
		cf:       cf,
		log:      slog.New(slog.DiscardHandler),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(l)
	}
	if !l.seedSet {
		seed, err := cryptoSeed()
		if err != nil {
			return nil, err
		}
		l.seed = seed
	}
	l.seeds = newSeedMaker(l.seed)
	return l, nil
}

// Seed 回傳 base seed。
func (l *Lab) Seed() int64 { return l.seed }

func (l *Lab) Logger() *slog.Logger { return l.log }

// Store 回傳持久化；未設定時為 nil。
func (l *Lab) Store() store.Store { return l.st }

// NewSession 以設定建立新 session，並寫入 store。
func (l *Lab) NewSession(ctx context.Context, s settings.Settings) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	r, _ := s.ParsedRange()
	seed := l.seeds.next()
	eng, err := draw.New(core.New(l.cf.New(seed)), r, s.Policy)
	if err != nil {
		return nil, err
	}
	sess := newSession(l, uuid.NewString(), seed, eng, s)
	if err := sess.persistAll(ctx); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.sessions[sess.id] = sess
	l.mu.Unlock()

	l.log.Info("session created", slog.String("session", sess.id), slog.String("range", r.String()), slog.String("policy", s.Policy.String()))
	return sess, nil
}

// Session 回傳記憶體中的 session。
func (l *Lab) Session(id string) (*Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sessions[id]
	return s, ok
}

// OpenSession 回傳 session；不在記憶體時從 store 恢復（設定、週期進度、紀錄與 RNG 狀態）。
func (l *Lab) OpenSession(ctx context.Context, id string) (*Session, error) {
	if s, ok := l.Session(id); ok {
		return s, nil
	}
	if l.st == nil {
		return nil, errs.With(ErrNoSession, id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.With(ErrNoSession, id)
	}

	set, err := l.st.LoadSettings(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.With(ErrNoSession, id)
	}
	if err != nil {
		return nil, errs.Wrap(err, "load session settings")
	}
	hist, err := l.st.LoadHistory(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, "load session history")
	}
	st, err := l.st.LoadSnapshot(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r, perr := set.ParsedRange()
		if perr != nil {
			return nil, perr
		}
		st = &draw.State{Range: r, Policy: set.Policy, Cycle: 1}
	case err != nil:
		return nil, errs.Wrap(err, "load session snapshot")
	}
	st.History = hist

	// 快照的 RNG 狀態屬於寫入它的工廠；工廠換了就保留週期進度、重新播種
	reseed := st.PRNG != l.cf.Name()
	if reseed {
		if len(st.Core) > 0 {
			l.log.Warn("session prng changed, reseeding", slog.String("session", id), slog.String("from", st.PRNG), slog.String("to", l.cf.Name()))
		}
		st.Core = nil
	}

	seed := l.seeds.next()
	eng, err := draw.New(core.New(l.cf.New(seed)), st.Range, st.Policy)
	if err != nil {
		return nil, errs.WrapWithExtra(err, "rebuild session", id)
	}
	if err := eng.Restore(st); err != nil {
		return nil, errs.WrapWithExtra(err, "restore session", id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sessions[id]; ok {
		return s, nil
	}
	sess := newSession(l, id, seed, eng, set)
	if reseed {
		if err := sess.persistAll(ctx); err != nil {
			return nil, err
		}
	}
	l.sessions[id] = sess
	l.log.Info("session restored", slog.String("session", id), slog.Int("history", len(hist)), slog.Int("cycle", eng.Cycle()))
	return sess, nil
}

// CloseSession 把 session 移出記憶體，store 內的資料保留，之後可以 OpenSession。
func (l *Lab) CloseSession(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[id]; !ok {
		return errs.With(ErrNoSession, id)
	}
	delete(l.sessions, id)
	return nil
}

// DeleteSession 移出記憶體並刪除 store 內的資料。進行中的揭曉會被取消且不提交。
func (l *Lab) DeleteSession(ctx context.Context, id string) error {
	l.mu.Lock()
	sess, inMem := l.sessions[id]
	delete(l.sessions, id)
	l.mu.Unlock()
	if inMem {
		sess.retire()
	}

	if l.st == nil {
		if !inMem {
			return errs.With(ErrNoSession, id)
		}
		return nil
	}
	if err := l.st.DeleteSession(ctx, id); err != nil {
		return errs.Wrap(err, "delete session")
	}
	l.log.Info("session deleted", slog.String("session", id))
	return nil
}

// Sessions 回傳記憶體中的 session id（遞增排序）。
func (l *Lab) Sessions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close 關閉 store。
func (l *Lab) Close() error {
	if l.st == nil {
		return nil
	}
	return l.st.Close()
}
