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
	"crypto/rand"
	"math"
	"math/big"
	"sync/atomic"

	"github.com/zintix-labs/drawlab/errs"
)

const mask63 = uint64(1<<63) - 1

// seedMaker 從一個 base seed 派生每個 session 的 seed。
//
// 同一個 base seed、同樣的建立順序，派生出的 seed 序列相同，所以固定 base seed 可以重現整個 Lab。
type seedMaker struct {
	state atomic.Uint64 // 永遠落在 [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 以 CAS 推進 mod 2^63 的全週期 LCG，再用可逆的 mix63 打散。可併發呼叫。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		nxt := (old*6364136223846793005 + 1442695040888963407) & mask63
		if s.state.CompareAndSwap(old, nxt) {
			return int64(mix63(nxt))
		}
	}
}

// mix63 只用 xorshift 與乘奇數，在 mod 2^63 下是雙射。
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}

// cryptoSeed 產生非負的隨機 base seed。
func cryptoSeed() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Wrap(err, "new crypto seed failed")
	}
	return n.Int64(), nil
}
