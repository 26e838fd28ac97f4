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

// Package settings 定義抽號器的使用者設定：範圍、週期策略、揭曉時延、手動模式與數字顏色。
//
// 設定只是資料；套用到引擎與持久化分別由 drawlab.Session 與 store 負責。
package settings

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
)

// Delays 是揭曉時延（毫秒）允許的選項。
var Delays = []int{500, 750, 1000, 1500, 2000, 5000}

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Settings 使用者設定
type Settings struct {
	Range       string      `json:"range" yaml:"range"`               // 抽取數字範圍，例如 "1-55"
	Policy      draw.Policy `json:"policy" yaml:"policy"`             // 週期內不重複 / 允許重複
	DelayMs     int         `json:"delay_ms" yaml:"delay_ms"`         // 揭曉時延
	Manual      bool        `json:"manual" yaml:"manual"`             // 手動啟停
	RollColor   string      `json:"roll_color" yaml:"roll_color"`     // 數字顏色（滾動）
	CommitColor string      `json:"commit_color" yaml:"commit_color"` // 數字顏色（抽中）
}

// Default 回傳預設設定。
func Default() Settings {
	return Settings{
		Range:       draw.DefaultRange.String(),
		Policy:      draw.NoRepeat,
		DelayMs:     750,
		Manual:      false,
		RollColor:   "#c2c5dd",
		CommitColor: "#002fa7",
	}
}

// Validate 檢查所有欄位，回傳第一個錯誤（errs.Warn）。
func (s Settings) Validate() error {
	if _, err := draw.ParseRange(s.Range); err != nil {
		return err
	}
	if !s.Policy.Valid() {
		return errs.With(draw.ErrBadPolicy, s.Policy.String())
	}
	if !slices.Contains(Delays, s.DelayMs) {
		return errs.Warnf("delay_ms must be one of %v, got %d", Delays, s.DelayMs)
	}
	if !colorPattern.MatchString(s.RollColor) {
		return errs.Warnf("roll_color must be #rgb or #rrggbb, got %q", s.RollColor)
	}
	if !colorPattern.MatchString(s.CommitColor) {
		return errs.Warnf("commit_color must be #rgb or #rrggbb, got %q", s.CommitColor)
	}
	return nil
}

// ParsedRange 回傳已解析的範圍；Range 不合法時回傳錯誤。
func (s Settings) ParsedRange() (draw.Range, error) {
	return draw.ParseRange(s.Range)
}

// Delay 回傳揭曉時延。
func (s Settings) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

func (s Settings) String() string {
	return fmt.Sprintf("range=%s policy=%s delay=%dms manual=%t", s.Range, s.Policy, s.DelayMs, s.Manual)
}
