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

// Package store 定義抽號 session 的持久化介面。
//
// 一個 session 有三種資料：
//   - settings：使用者設定（key/value）
//   - history：正式抽出的值，依序追加
//   - snapshot：draw.State，用於重新開啟 session 時恢復週期進度與 RNG 狀態
//
// 快照只在設定改變、週期輪替時整份寫入。兩次快照之間的每次抽號由 CommitDraw
// 追加一筆週期進度並更新 RNG 狀態，成本與已抽集合大小無關；LoadSnapshot 回傳
// 快照套用這些進度後的結果。
package store

import (
	"context"
	"slices"
	"strings"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/settings"
)

var (
	// ErrNotFound 找不到 session 的資料。
	ErrNotFound = errs.Coded(errs.Warn, "not_found", "session not found")
	// ErrClosed store 已關閉。
	ErrClosed = errs.Coded(errs.Fatal, "store_closed", "store is closed")

	errNilState = errs.NewFatal("nil snapshot")
)

// Store 是 session 持久化介面。實作必須可被併發呼叫。
type Store interface {
	// LoadSettings 回傳 ErrNotFound 表示該 session 沒有存過設定。
	LoadSettings(ctx context.Context, session string) (settings.Settings, error)
	SaveSettings(ctx context.Context, session string, s settings.Settings) error

	AppendHistory(ctx context.Context, session string, values ...int) error
	LoadHistory(ctx context.Context, session string) ([]int, error)
	ClearHistory(ctx context.Context, session string) error

	// LoadSnapshot 回傳 ErrNotFound 表示該 session 沒有快照。
	LoadSnapshot(ctx context.Context, session string) (*draw.State, error)
	// SaveSnapshot 取代快照並清空累積的週期進度。
	SaveSnapshot(ctx context.Context, session string, st *draw.State) error

	// CommitDraw 在同一個交易內寫入紀錄與週期進度，整筆成功或整筆失敗。
	// session 不存在時回傳 ErrNotFound，不會重新建立。
	CommitDraw(ctx context.Context, session string, c DrawCommit) error

	// Sessions 回傳所有存過資料的 session id（遞增排序）。
	Sessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, session string) error

	Close() error
}

// DrawCommit 是一次正式抽號要寫入的資料。
type DrawCommit struct {
	Value   int
	Cycle   int    // 抽號後的週期序號
	InCycle bool   // NoRepeat：Value 計入本週期已抽集合
	Core    []byte // 抽號後的 PRNG 狀態；不可快照的來源為 nil
	// Base 非 nil 時直接取代快照（已包含 Value），並清空累積的週期進度。
	Base *draw.State
}

// Progress 是快照之後的一筆週期進度。
type Progress struct {
	Cycle int
	Value int
}

// Cursor 是最後一次 CommitDraw 之後的週期序號與 PRNG 狀態。
type Cursor struct {
	Cycle int
	Core  []byte
}

// Replay 把快照之後的進度套回快照，回傳新的 State，不修改 base。
func Replay(base *draw.State, cur *Cursor, steps []Progress) *draw.State {
	st := cloneState(base)
	for _, p := range steps {
		if p.Cycle != st.Cycle {
			st.Drawn = st.Drawn[:0]
			st.Cycle = p.Cycle
		}
		st.Drawn = append(st.Drawn, p.Value)
	}
	if cur != nil {
		st.Cycle = cur.Cycle
		st.Core = slices.Clone(cur.Core)
	}
	return st
}

// CheckID 檢查 session id 非空，回傳修剪後的 id。
func CheckID(session string) (string, error) {
	id := strings.TrimSpace(session)
	if id == "" {
		return "", errs.NewWarn("session id is required")
	}
	return id, nil
}
