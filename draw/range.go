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

package draw

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/zintix-labs/drawlab/errs"
)

// MaxValue 是抽號範圍允許的最大值（含）。
const MaxValue = 999999

// DefaultRange 為新 session 的預設範圍。
var DefaultRange = Range{Min: 1, Max: 55}

var (
	// ErrMalformed 範圍文字不符合 "<min>-<max>" 格式。
	ErrMalformed = errs.Coded(errs.Warn, "malformed", "range must look like <min>-<max>")
	// ErrOutOfBounds 範圍可解析，但違反 0 <= min <= max <= 999999。
	ErrOutOfBounds = errs.Coded(errs.Warn, "out_of_bounds", "range must satisfy 0 <= min <= max <= 999999")
)

// 兩側允許正負號：負數要能被解析出來，才能回報 OutOfBounds 而不是 Malformed。
var rangePattern = regexp.MustCompile(`^\s*([+-]?\d+)\s*-\s*([+-]?\d+)\s*$`)

// Range 是抽號的閉區間 [Min, Max]。
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// ParseRange 解析 "<min>-<max>"（前後與 '-' 兩側可有空白）。
//
//   - 格式不符或任一側不是整數 -> ErrMalformed
//   - 違反邊界，或整數大到溢位 -> ErrOutOfBounds
func ParseRange(text string) (Range, error) {
	m := rangePattern.FindStringSubmatch(text)
	if m == nil {
		return Range{}, errs.With(ErrMalformed, strconv.Quote(text))
	}
	lo, err := parseSide(m[1], text)
	if err != nil {
		return Range{}, err
	}
	hi, err := parseSide(m[2], text)
	if err != nil {
		return Range{}, err
	}
	r := Range{Min: lo, Max: hi}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func parseSide(s string, text string) (int, error) {
	v, err := strconv.Atoi(s)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, errs.With(ErrOutOfBounds, strconv.Quote(text))
	}
	return 0, errs.With(ErrMalformed, strconv.Quote(text))
}

// Validate 檢查 0 <= Min <= Max <= MaxValue。
func (r Range) Validate() error {
	if r.Min < 0 || r.Max > MaxValue || r.Min > r.Max {
		return errs.With(ErrOutOfBounds, r.String())
	}
	return nil
}

// Size 回傳區間內的整數個數。
func (r Range) Size() int {
	return r.Max - r.Min + 1
}

func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// String 輸出可被 ParseRange 讀回的格式。
func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}
