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

package drawlab

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/reveal"
	"github.com/zintix-labs/drawlab/settings"
	"github.com/zintix-labs/drawlab/store"
)

// Session 是一台抽號機：一個 draw.Engine 加上它的使用者設定。
//
// 並發語意：
//   - 所有方法可併發呼叫；Engine 的存取由 mu 序列化。
//   - 揭曉進行中（guard 被持有）時，Configure / SetPolicy / ApplySettings 與第二次 Reveal 回傳 reveal.ErrBusy。
//
// 持久化：有 store 時，每次提交後寫入。設定變更寫整份快照；抽號以 store.CommitDraw
// 只寫這一個值與 RNG 狀態，週期輪替時才附上整份快照。
// 寫入失敗不會回滾記憶體內的狀態：值已經抽出，錯誤會被記錄並回傳給呼叫端，
// 下一次寫入改寫整份快照，讓 store 追上記憶體。
//
// 被 Lab.DeleteSession 刪除後，進行中的揭曉會被取消，之後的變更一律回傳 ErrNoSession。
type Session struct {
	lab     *Lab
	id      string
	seed    int64
	created time.Time

	guard reveal.Guard

	mu     sync.Mutex
	eng    *draw.Engine
	set    settings.Settings
	resync bool               // 上次寫入失敗，下次必須寫整份快照
	gone   bool               // 已被刪除
	cancel context.CancelFunc // 進行中揭曉的取消函式
}

func newSession(l *Lab, id string, seed int64, eng *draw.Engine, set settings.Settings) *Session {
	set.Range = eng.Range().String()
	set.Policy = eng.Policy()
	return &Session{
		lab:     l,
		id:      id,
		seed:    seed,
		created: time.Now(),
		eng:     eng,
		set:     set,
	}
}

func (s *Session) ID() string { return s.id }

// Seed 回傳建立 Engine 時的 seed。恢復自快照的 session，RNG 狀態以快照為準。
func (s *Session) Seed() int64 { return s.seed }

// Status 是 session 的唯讀摘要。
type Status struct {
	ID        string     `json:"id"`
	Range     draw.Range `json:"range"`
	Policy    string     `json:"policy"`
	Cycle     int        `json:"cycle"`
	Drawn     []int      `json:"drawn"`
	Remaining int        `json:"remaining"`
	History   int        `json:"history"`
	Busy      bool       `json:"busy"`
	Created   time.Time  `json:"created"`
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:        s.id,
		Range:     s.eng.Range(),
		Policy:    s.eng.Policy().String(),
		Cycle:     s.eng.Cycle(),
		Drawn:     s.eng.Drawn(),
		Remaining: s.eng.Remaining(),
		History:   len(s.eng.PeekHistory()),
		Busy:      s.guard.Busy(),
		Created:   s.created,
	}
}

// Configure 解析並套用新範圍（開啟新週期）。失敗時不改動任何狀態。
func (s *Session) Configure(ctx context.Context, text string) (draw.Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return draw.Range{}, err
	}
	if err := s.guard.Check(); err != nil {
		return draw.Range{}, err
	}
	r, err := s.eng.Configure(text)
	if err != nil {
		return draw.Range{}, err
	}
	s.set.Range = r.String()
	return r, s.persistState(ctx, true)
}

// SetPolicy 切換週期策略（開啟新週期）。
func (s *Session) SetPolicy(ctx context.Context, p draw.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return err
	}
	if err := s.guard.Check(); err != nil {
		return err
	}
	if err := s.eng.SetPolicy(p); err != nil {
		return err
	}
	s.set.Policy = p
	return s.persistState(ctx, true)
}

// Draw 正式抽出一個值。
func (s *Session) Draw(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draw(ctx)
}

// draw 呼叫端必須持有 mu。
func (s *Session) draw(ctx context.Context) (int, error) {
	if err := s.live(); err != nil {
		return 0, err
	}
	before := s.eng.Cycle()
	v, err := s.eng.Draw()
	if err != nil {
		return 0, err
	}
	if s.lab.st == nil {
		return v, nil
	}
	c := store.DrawCommit{Value: v, Cycle: s.eng.Cycle(), InCycle: s.eng.Policy() == draw.NoRepeat}
	if s.resync || c.Cycle != before {
		// 週期輪替時已抽集合只剩一個值，整份快照很小
		if c.Base, err = s.snapshot(); err != nil {
			return v, s.persistFailed("snapshot engine", err)
		}
	} else if c.Core, err = s.eng.CoreState(); err != nil {
		return v, s.persistFailed("snapshot core", err)
	}
	if err := s.lab.st.CommitDraw(ctx, s.id, c); err != nil {
		return v, s.persistFailed("commit draw", err)
	}
	s.resync = false
	return v, nil
}

// live 呼叫端必須持有 mu。
func (s *Session) live() error {
	if s.gone {
		return errs.With(ErrNoSession, s.id)
	}
	return nil
}

// retire 標記為已刪除並取消進行中的揭曉。持有 mu，所以會等進行中的寫入結束。
func (s *Session) retire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Roll 取一個不提交的值（揭曉動畫用）。
func (s *Session) Roll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Roll()
}

// History 回傳正式抽出的值（由舊到新）。
func (s *Session) History() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.PeekHistory()
}

// HistoryText 回傳可複製的紀錄文字。
func (s *Session) HistoryText() string {
	return draw.FormatHistory(s.History())
}

// ResetHistory 清空紀錄，週期進度不變。揭曉中也允許。
func (s *Session) ResetHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return err
	}
	s.eng.ResetHistory()
	if s.lab.st == nil {
		return nil
	}
	if err := s.lab.st.ClearHistory(ctx, s.id); err != nil {
		return s.persistFailed("clear history", err)
	}
	return s.persistState(ctx, false)
}

func (s *Session) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// ApplySettings 套用整組設定。
//
// 只有範圍或策略真的改變時才會開啟新週期；只改顏色、時延或手動模式不影響週期進度。
func (s *Session) ApplySettings(ctx context.Context, next settings.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	r, _ := next.ParsedRange()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live(); err != nil {
		return err
	}
	if err := s.guard.Check(); err != nil {
		return err
	}
	if r != s.eng.Range() {
		if err := s.eng.SetRange(r); err != nil {
			return err
		}
	}
	if next.Policy != s.eng.Policy() {
		if err := s.eng.SetPolicy(next.Policy); err != nil {
			return err
		}
	}
	next.Range = r.String()
	s.set = next
	return s.persistState(ctx, true)
}

// Snapshot 擷取 Engine 狀態。
func (s *Session) Snapshot() (*draw.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Snapshot()
}

// RevealConfig 依目前設定產生揭曉參數。
func (s *Session) RevealConfig() reveal.Config {
	set := s.Settings()
	return reveal.Config{Tick: reveal.DefaultTick, Delay: set.Delay(), Manual: set.Manual}
}

// Reveal 以目前設定執行一次揭曉。手動模式下 stop 觸發時提交。
func (s *Session) Reveal(ctx context.Context, stop <-chan struct{}, emit func(reveal.Frame)) (reveal.Frame, error) {
	return s.RevealWith(ctx, s.RevealConfig(), stop, emit)
}

// RevealWith 與 Reveal 相同，但由呼叫端指定參數。
func (s *Session) RevealWith(ctx context.Context, cfg reveal.Config, stop <-chan struct{}, emit func(reveal.Frame)) (reveal.Frame, error) {
	if err := s.guard.Acquire(); err != nil {
		return reveal.Frame{}, err
	}
	defer s.guard.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if err := s.live(); err != nil {
		s.mu.Unlock()
		return reveal.Frame{}, err
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()
	return reveal.Run(ctx, sessionDrawer{s: s, ctx: ctx}, cfg, stop, emit)
}

// sessionDrawer 讓 reveal.Run 透過 Session 的鎖存取 Engine。
type sessionDrawer struct {
	s   *Session
	ctx context.Context
}

func (d sessionDrawer) Roll() (int, error) { return d.s.Roll() }

func (d sessionDrawer) Draw() (int, error) {
	// 一旦提交就必須寫入 store，不受 ctx 取消影響。
	return d.s.Draw(context.WithoutCancel(d.ctx))
}

// persistAll 寫入設定與快照。用於建立 session 與 RNG 重新播種後。
func (s *Session) persistAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistState(ctx, true)
}

// persistState 寫入快照（與設定）。呼叫端必須持有 mu。
//
// 快照不含 history：history 以 store 的逐筆紀錄為準，恢復時再合併。
func (s *Session) persistState(ctx context.Context, withSettings bool) error {
	if s.lab.st == nil {
		return nil
	}
	if withSettings {
		if err := s.lab.st.SaveSettings(ctx, s.id, s.set); err != nil {
			return s.persistFailed("save settings", err)
		}
	}
	st, err := s.snapshot()
	if err != nil {
		return s.persistFailed("snapshot engine", err)
	}
	if err := s.lab.st.SaveSnapshot(ctx, s.id, st); err != nil {
		return s.persistFailed("save snapshot", err)
	}
	s.resync = false
	return nil
}

// snapshot 是要寫入 store 的快照：不含 history，並標上 PRNG 工廠名稱。
func (s *Session) snapshot() (*draw.State, error) {
	st, err := s.eng.Snapshot()
	if err != nil {
		return nil, err
	}
	st.History = nil
	st.PRNG = s.lab.cf.Name()
	return st, nil
}

// persistFailed 呼叫端必須持有 mu。
func (s *Session) persistFailed(op string, err error) error {
	s.resync = true
	s.lab.log.Error("session persist failed", slog.String("session", s.id), slog.String("op", op), slog.Any("err", err))
	return errs.Wrap(err, "persist session: "+op)
}
