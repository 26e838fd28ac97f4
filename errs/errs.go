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

// Package errs 定義 drawlab 全域共用的錯誤型別。
//
// 每個錯誤帶兩個維度：
//   - ErrLv：嚴重度，讓最上層（HTTP/CLI）決定要回 4xx 還是 5xx、要不要中止。
//   - Code：穩定的機器可讀代碼（例如 "malformed"），errors.Is 以 Code 比對。
package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// E 是統一的錯誤型別。
//
// Message 為主訊息；Code 為穩定代碼（可為空）；Extra 為呼叫端追加的上下文；
// Cause 串接下層錯誤；ErrLv 為嚴重度。
type E struct {
	Code    string
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
}

// Error 實作 error 介面。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s", ErrLv(e.ErrLv))
	if e.Code != "" {
		base += " code=" + e.Code
	}
	base += " " + e.Message
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// Is 以 Code 比對：兩個 *E 只要 Code 相同（且非空）即視為同一類錯誤。
//
// 這讓套件可以宣告哨兵錯誤（例如 draw.ErrMalformed），
// 同時在回傳時附上不同的 Message / Extra 而不破壞 errors.Is。
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return e.Code != "" && e.Code == t.Code
}

// New 建立指定等級的錯誤
func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

func Logf(format string, a ...any) *E {
	return NewLog(fmt.Sprintf(format, a...))
}

// Coded 建立帶穩定代碼的錯誤，通常用於套件層級的哨兵錯誤。
func Coded(errLv ErrLevel, code string, msg string) *E {
	return &E{Code: code, Message: msg, ErrLv: errLv}
}

// With 以哨兵錯誤為樣板，複製出一個附帶額外上下文的新錯誤。
// 回傳值與哨兵錯誤 errors.Is 相等（同 Code、同等級）。
func With(sentinel *E, extra string) *E {
	if sentinel == nil {
		return NewFatal("nil sentinel")
	}
	cp := *sentinel
	cp.Extra = extra
	return &cp
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// Wrap 使用給定訊息包裝底層錯誤。
//
// ErrLevel 規則：
//   - cause 已經是 *E：沿用其 ErrLv 與 Code。
//   - 其他（標準庫、三方依賴）：一律視為 Fatal。
//
// 若錯誤是「可預期且可處理」的情境，請直接 New 一個 *E，不要 Wrap。
func Wrap(cause error, msg string) *E {
	var e *E
	errLv := Fatal
	code := ""
	if errors.As(cause, &e) {
		errLv = e.ErrLv
		code = e.Code
	}
	r := New(errLv, msg)
	r.Code = code
	r.Cause = cause
	return r
}

// WrapWithExtra 與 Wrap 相同，另外附加上下文字串。
func WrapWithExtra(cause error, msg string, extra string) *E {
	r := Wrap(cause, msg)
	r.Extra = extra
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// CodeOf 回傳錯誤鏈上第一個非空的 Code；找不到回傳空字串。
func CodeOf(err error) string {
	for err != nil {
		if e, ok := err.(*E); ok && e.Code != "" {
			return e.Code
		}
		err = errors.Unwrap(err)
	}
	return ""
}
