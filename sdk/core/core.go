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

// Package core 提供抽號引擎使用的亂數核心。
//
// 合約重點：
//   - 所有 bounded 取樣（UintN / IntN / Between）都必須是無偏的，
//     不允許 floor(Float64()*n) 這種在 n 不整除輸出空間時會產生偏差的映射。
//   - PRNG 以 seed 建立時必須是決定性的，方便重現與測試。
//   - PRNG 不保證併發安全；由持有者（draw.Engine 之上的 Session）序列化存取。
package core

import "errors"

// ErrNotRestorable 表示此 PRNG 無法快照或還原（例如直接讀取作業系統熵源）。
var ErrNotRestorable = errors.New("core: prng is not restorable")

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 要求四個方法而不是只要 Uint64，是為了讓 32-bit 與 64-bit 的產生器
// 各自用最適合的 bounded 策略與浮點精度，而不是全部退化成「先產 uint64 再裁切」。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約：同一個實作、同一個版本下，New(seed) 必須是決定性的。
// 不提供「不帶 seed 的 New()」：seed 一律由 drawlab.Lab 管理與派生。
type PRNGFactory interface {
	New(int64) PRNG
	// Name 是 FactoryByName 認得的名稱，也會寫進快照，用來判斷 RNG 狀態能否還原。
	Name() string
}

// DefaultPRNG 產生 PCG64（預設）。
type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func (d *DefaultPRNG) Name() string { return "pcg64" }

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// LitePRNG 產生 PCG32，狀態較小，適合大量 session 常駐記憶體的情境。
type LitePRNG struct{}

func (l *LitePRNG) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

func (l *LitePRNG) Name() string { return "pcg32" }

func Lite() *LitePRNG {
	return &LitePRNG{}
}

// SecurePRNG 產生直接讀取 crypto/rand 的來源。seed 會被忽略，且不可快照。
type SecurePRNG struct{}

func (s *SecurePRNG) New(int64) PRNG {
	return newCrypto()
}

func (s *SecurePRNG) Name() string { return "crypto" }

func Secure() *SecurePRNG {
	return &SecurePRNG{}
}

// FactoryByName 依名稱取得工廠："pcg64"（或空字串）、"pcg32"、"crypto"。
func FactoryByName(name string) (PRNGFactory, bool) {
	switch name {
	case "", "pcg64":
		return Default(), true
	case "pcg32":
		return Lite(), true
	case "crypto":
		return Secure(), true
	default:
		return nil, false
	}
}

// Core 封裝 PRNG，並提供常用取樣與工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	return src[c.IntN(len(src))]
}

// Between 回傳閉區間 [lo,hi] 內的均勻整數。lo > hi 時回傳 lo。
func (c *Core) Between(lo, hi int) int {
	if lo >= hi {
		return lo
	}
	return lo + c.IntN(hi-lo+1)
}

// ShuffleInts 以 Fisher-Yates 就地重排，所有 N! 種排列機率相等。
func (c *Core) ShuffleInts(src []int) {
	for i := len(src) - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		src[i], src[j] = src[j], src[i]
	}
}
