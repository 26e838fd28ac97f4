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

// Package reveal 驅動「揭曉」的時間軸：先以固定間隔送出滾動中的數字，
// 時間到（自動）或收到停止訊號（手動）後正式抽出一個值。
//
// 這裡只負責時間，不負責畫面；每個 Frame 交給 emit，由呼叫端決定怎麼呈現。
package reveal

import (
	"context"
	"time"

	"github.com/zintix-labs/drawlab/errs"
)

// DefaultTick 滾動畫面的更新間隔。
const DefaultTick = 50 * time.Millisecond

// ErrNoStop 手動模式沒有停止訊號，永遠不會結束。
var ErrNoStop = errs.Coded(errs.Warn, "no_stop", "manual reveal requires a stop signal")

// Drawer 是揭曉需要的兩個動作：Roll 不提交，Draw 提交。
type Drawer interface {
	Roll() (int, error)
	Draw() (int, error)
}

// Config 揭曉參數。
type Config struct {
	Tick   time.Duration // 滾動間隔，<=0 時用 DefaultTick
	Delay  time.Duration // 自動模式的滾動時長
	Manual bool          // 手動模式：只在 stop 觸發時提交
}

// Frame 是一個畫面。Final 為 true 的 Frame 恰好一個，且是最後一個。
type Frame struct {
	Seq     int           `json:"seq"`
	Value   int           `json:"value"`
	Final   bool          `json:"final"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Run 執行一次揭曉，回傳提交的 Frame。
//
//   - 開始時立即送出一個滾動 Frame，之後每個 Tick 一個。
//   - 自動模式：Delay 到或 stop 觸發時提交；Delay <= 0 時直接提交，不送滾動 Frame。
//   - 手動模式：只有 stop 觸發時提交，stop 為 nil 回傳 ErrNoStop。
//   - ctx 取消時不提交，回傳 ctx.Err()。
//
// emit 在 Run 的 goroutine 上同步呼叫，可以為 nil。
func Run(ctx context.Context, d Drawer, cfg Config, stop <-chan struct{}, emit func(Frame)) (Frame, error) {
	if d == nil {
		return Frame{}, errs.NewFatal("reveal needs a drawer")
	}
	if cfg.Manual && stop == nil {
		return Frame{}, ErrNoStop
	}
	if emit == nil {
		emit = func(Frame) {}
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultTick
	}

	start := time.Now()
	seq := 0
	commit := func() (Frame, error) {
		v, err := d.Draw()
		if err != nil {
			return Frame{}, err
		}
		seq++
		f := Frame{Seq: seq, Value: v, Final: true, Elapsed: time.Since(start)}
		emit(f)
		return f, nil
	}

	if !cfg.Manual && cfg.Delay <= 0 {
		return commit()
	}

	roll := func() error {
		v, err := d.Roll()
		if err != nil {
			return err
		}
		seq++
		emit(Frame{Seq: seq, Value: v, Elapsed: time.Since(start)})
		return nil
	}
	if err := roll(); err != nil {
		return Frame{}, err
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if !cfg.Manual {
		timer := time.NewTimer(cfg.Delay)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-deadline:
			return commit()
		case <-stop:
			return commit()
		case <-ticker.C:
			if err := roll(); err != nil {
				return Frame{}, err
			}
		}
	}
}
