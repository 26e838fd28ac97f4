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

// Package draw 實作抽號引擎：範圍、週期策略、不重複週期與抽號紀錄。
//
// Engine 是單執行緒、同步的純狀態機：
//   - 不做 I/O、不持有鎖、不知道計時器與動畫。
//   - 不可併發呼叫；需要併發的呼叫端必須自行序列化（drawlab.Session 就是這一層）。
//
// 週期語意（NoRepeat）：
//   - 每次 Draw 從「範圍 - 已抽集合」中均勻抽一個值並記入已抽集合。
//   - 範圍內每個值都抽過一次後，已抽集合維持滿的狀態，直到下一次 Draw
//     才清空並開啟新週期。呼叫端永遠看不到「沒有候選值」而失敗的 Draw。
package draw

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/sdk/core"
)

var (
	// ErrEmptyRange 從未設定過範圍（只會發生在零值 Engine）。
	ErrEmptyRange = errs.Coded(errs.Warn, "empty_range", "no range configured")
	// ErrBadState Restore 收到不合法的狀態。
	ErrBadState = errs.Coded(errs.Warn, "bad_state", "engine state invalid")
)

// Engine 抽號引擎，獨佔 range / policy / drawn / history 四個欄位。
type Engine struct {
	core       *core.Core
	rng        Range
	configured bool
	policy     Policy
	pool       *cyclePool // 以 offset (v - rng.Min) 儲存
	cycle      int
	history    []int
}

// New 以指定 Core、初始範圍與策略建立 Engine。
func New(c *core.Core, r Range, p Policy) (*Engine, error) {
	if c == nil {
		return nil, errs.NewFatal("core required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if !p.Valid() {
		return nil, errs.With(ErrBadPolicy, p.String())
	}
	e := &Engine{core: c, policy: p}
	e.applyRange(r)
	return e, nil
}

// NewDefault 以 PCG64(seed)、預設範圍 1-55、NoRepeat 建立 Engine。
func NewDefault(seed int64) *Engine {
	e, _ := New(core.New(core.Default().New(seed)), DefaultRange, NoRepeat)
	return e
}

// Configure 解析範圍文字並套用。
//
// 成功時取代範圍並清空已抽集合（即使範圍相同也一樣：改範圍一律開新週期），策略不變。
// 失敗時不改動任何狀態。
func (e *Engine) Configure(text string) (Range, error) {
	r, err := ParseRange(text)
	if err != nil {
		return Range{}, err
	}
	e.applyRange(r)
	return r, nil
}

// SetRange 與 Configure 相同，但接受已解析的 Range。
func (e *Engine) SetRange(r Range) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.applyRange(r)
	return nil
}

func (e *Engine) applyRange(r Range) {
	e.rng = r
	e.configured = true
	e.pool = newCyclePool(r.Size())
	e.cycle = 1
}

// SetPolicy 取代週期策略並開啟新的空週期。
//
// 切到 NoRepeat 不會回頭排除 history 裡的值：新週期從切換當下開始。
// 呼叫端不可在揭曉動畫進行中呼叫（引擎本身不追蹤，由 reveal.Guard 把關）。
func (e *Engine) SetPolicy(p Policy) error {
	if !p.Valid() {
		return errs.With(ErrBadPolicy, p.String())
	}
	e.policy = p
	if e.pool != nil {
		e.pool.reset()
	}
	e.cycle = 1
	return nil
}

// Draw 產生下一個正式抽出的值，並寫入 history。
func (e *Engine) Draw() (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	var off int
	if e.policy == AllowRepeat {
		off = e.core.IntN(e.rng.Size())
	} else {
		if e.pool.exhausted() {
			e.pool.reset()
			e.cycle++
		}
		off = e.pool.take(e.core.IntN(e.pool.remaining))
	}
	v := e.rng.Min + off
	e.history = append(e.history, v)
	return v, nil
}

// Roll 從目前候選集合均勻取一個值但不提交：不動已抽集合、不寫 history。
// 用於揭曉動畫的滾動畫面；只會消耗 RNG 狀態。
func (e *Engine) Roll() (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.policy == AllowRepeat || e.pool.exhausted() {
		return e.rng.Min + e.core.IntN(e.rng.Size()), nil
	}
	return e.rng.Min + e.pool.valueAt(e.core.IntN(e.pool.remaining)), nil
}

func (e *Engine) ready() error {
	if !e.configured {
		return ErrEmptyRange
	}
	if e.core == nil {
		return errs.NewFatal("engine has no random core")
	}
	return nil
}

// PeekHistory 回傳 history 的副本（由舊到新）。
func (e *Engine) PeekHistory() []int {
	out := make([]int, len(e.history))
	copy(out, e.history)
	return out
}

// ResetHistory 只清空 history，不影響已抽集合與週期進度。
func (e *Engine) ResetHistory() {
	e.history = nil
}

func (e *Engine) Range() Range { return e.rng }

func (e *Engine) Policy() Policy { return e.policy }

// Cycle 回傳目前週期序號（從 1 開始）。
func (e *Engine) Cycle() int { return e.cycle }

// Drawn 回傳本週期已抽出的值（遞增排序）。AllowRepeat 下永遠為空。
func (e *Engine) Drawn() []int {
	if e.pool == nil || e.policy == AllowRepeat {
		return []int{}
	}
	out := e.pool.drawn()
	for i := range out {
		out[i] += e.rng.Min
	}
	slices.Sort(out)
	return out
}

// Remaining 回傳下一次 Draw 的候選數量。週期剛用盡時等於整個範圍（下一次 Draw 會開新週期）。
func (e *Engine) Remaining() int {
	if !e.configured {
		return 0
	}
	if e.policy == AllowRepeat || e.pool.exhausted() {
		return e.rng.Size()
	}
	return e.pool.remaining
}

// State 是 Engine 的可序列化快照。
type State struct {
	Range   Range  `json:"range"`
	Policy  Policy `json:"policy"`
	Drawn   []int  `json:"drawn,omitempty"` // 依抽出順序，不是排序後的集合
	History []int  `json:"history,omitempty"`
	Cycle   int    `json:"cycle"`
	Core    []byte `json:"core,omitempty"` // PRNG 狀態；不可快照的來源為空
	PRNG    string `json:"prng,omitempty"` // 產生 Core 的工廠名稱，由持有者填寫
}

// Snapshot 擷取完整狀態。PRNG 不支援快照時 Core 留空，不視為錯誤。
func (e *Engine) Snapshot() (*State, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	st := &State{
		Range:   e.rng,
		Policy:  e.policy,
		History: e.PeekHistory(),
		Cycle:   e.cycle,
	}
	if e.policy == NoRepeat {
		st.Drawn = e.pool.order()
		for i := range st.Drawn {
			st.Drawn[i] += e.rng.Min
		}
	}
	snap, err := e.core.Snapshot()
	switch {
	case err == nil:
		st.Core = snap
	case errors.Is(err, core.ErrNotRestorable):
	default:
		return nil, errs.Wrap(err, "snapshot core failed")
	}
	return st, nil
}

// CoreState 只擷取 PRNG 狀態，成本與已抽集合大小無關。不可快照的來源回傳 nil。
func (e *Engine) CoreState() ([]byte, error) {
	if e.core == nil {
		return nil, errs.NewFatal("engine has no random core")
	}
	snap, err := e.core.Snapshot()
	if errors.Is(err, core.ErrNotRestorable) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, "snapshot core failed")
	}
	return snap, nil
}

// Restore 以快照覆蓋狀態。所有檢查通過後才寫入，失敗時 Engine 保持原狀。
//
// Drawn 依序重放，之後的抽號序列與快照當下的 Engine 完全相同（PRNG 可快照時）。
func (e *Engine) Restore(st *State) error {
	if e.core == nil {
		return errs.NewFatal("engine has no random core")
	}
	if st == nil {
		return errs.With(ErrBadState, "nil state")
	}
	if err := st.Range.Validate(); err != nil {
		return errs.WrapWithExtra(ErrBadState, "restore range", err.Error())
	}
	if !st.Policy.Valid() {
		return errs.With(ErrBadState, "policy "+st.Policy.String())
	}
	if st.Policy == AllowRepeat && len(st.Drawn) > 0 {
		return errs.With(ErrBadState, "drawn set under allow policy")
	}
	pool := newCyclePool(st.Range.Size())
	for _, v := range st.Drawn {
		if !pool.mark(v - st.Range.Min) {
			return errs.With(ErrBadState, "drawn value "+strconv.Itoa(v)+" out of range or duplicated")
		}
	}
	for _, v := range st.History {
		if v < 0 || v > MaxValue {
			return errs.With(ErrBadState, "history value "+strconv.Itoa(v))
		}
	}
	if len(st.Core) > 0 {
		if err := e.core.Restore(st.Core); err != nil {
			return errs.WrapWithExtra(ErrBadState, "restore core", err.Error())
		}
	}
	e.rng = st.Range
	e.configured = true
	e.policy = st.Policy
	e.pool = pool
	e.cycle = max(1, st.Cycle)
	e.history = slices.Clone(st.History)
	return nil
}

// FormatHistory 產生紀錄視窗「複製」用的文字。
func FormatHistory(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
