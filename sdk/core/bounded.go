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

// Portions of the bounded random generation logic are adapted from the Go
// standard library (math/rand/v2), which is licensed under the BSD 3-Clause
// License.

package core

import "math/bits"

const is32bit = ^uint(0)>>32 == 0

// uint64n 回傳 [0,n) 的無偏亂數（乘法取高位 + 拒絕採樣）。
//
// 2^64 不被 n 整除時，低位落在 [0, 2^64 mod n) 的結果會被丟棄重抽，
// 因此每個值的機率嚴格為 1/n。
func uint64n(next func() uint64, n uint64) uint64 {
	if n&(n-1) == 0 { // 2 的次方直接遮罩
		return next() & (n - 1)
	}
	hi, lo := bits.Mul64(next(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(next(), n)
		}
	}
	return hi
}

// uint32n 是 uint64n 的 32-bit 版本，32-bit 平台上避免 64-bit 乘法。
func uint32n(next func() uint64, n uint32) uint32 {
	if n&(n-1) == 0 {
		return uint32(next()) & (n - 1)
	}
	x := next()
	lo1a, lo0 := bits.Mul32(uint32(x), n)
	hi, lo1b := bits.Mul32(uint32(x>>32), n)
	lo1, c := bits.Add32(lo1a, lo1b, 0)
	hi += c
	if lo1 == 0 && lo0 < n {
		n64 := uint64(n)
		thresh := uint32(-n64 % n64)
		for lo1 == 0 && lo0 < thresh {
			x := next()
			lo1a, lo0 = bits.Mul32(uint32(x), n)
			hi, lo1b = bits.Mul32(uint32(x>>32), n)
			lo1, c = bits.Add32(lo1a, lo1b, 0)
			hi += c
		}
	}
	return hi
}

// boundedUint64 依平台選擇 32/64-bit 路徑。
func boundedUint64(next func() uint64, n uint64) uint64 {
	if is32bit && uint64(uint32(n)) == n {
		return uint64(uint32n(next, uint32(n)))
	}
	return uint64n(next, n)
}

// float53 以 53-bit mantissa 產生 [0,1)。
func float53(x uint64) float64 {
	return float64(x<<11>>11) / (1 << 53)
}
