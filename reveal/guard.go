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

package reveal

import (
	"sync/atomic"

	"github.com/zintix-labs/drawlab/errs"
)

// ErrBusy 揭曉進行中，不能修改設定或再開一次揭曉。
var ErrBusy = errs.Coded(errs.Warn, "busy", "reveal in progress")

// Guard 標記揭曉是否進行中。零值可用。
type Guard struct {
	busy atomic.Bool
}

// Acquire 搶到旗標回傳 nil，否則回傳 ErrBusy。成功後必須 Release。
func (g *Guard) Acquire() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (g *Guard) Release() { g.busy.Store(false) }

func (g *Guard) Busy() bool { return g.busy.Load() }

// Check 揭曉進行中回傳 ErrBusy。
func (g *Guard) Check() error {
	if g.busy.Load() {
		return ErrBusy
	}
	return nil
}
