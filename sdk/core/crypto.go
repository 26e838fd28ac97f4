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

package core

import (
	"crypto/rand"
	"encoding/binary"
)

// Crypto 直接讀取作業系統熵源。無法重現，也無法快照。
type Crypto struct {
	buf [8]byte
}

func newCrypto() *Crypto {
	return &Crypto{}
}

func (c *Crypto) Uint64() uint64 {
	// crypto/rand.Read 在支援的平台上不會失敗；失敗代表系統熵源壞了，沒有合理的降級方式。
	if _, err := rand.Read(c.buf[:]); err != nil {
		panic("core: crypto source unavailable: " + err.Error())
	}
	return binary.LittleEndian.Uint64(c.buf[:])
}

func (c *Crypto) UintN(max uint) uint {
	if max == 0 {
		return 0
	}
	return uint(boundedUint64(c.Uint64, uint64(max)))
}

func (c *Crypto) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	return int(boundedUint64(c.Uint64, uint64(max)))
}

func (c *Crypto) Float64() float64 {
	return float53(c.Uint64())
}

func (c *Crypto) Snapshot() ([]byte, error) {
	return nil, ErrNotRestorable
}

func (c *Crypto) Restore([]byte) error {
	return ErrNotRestorable
}
