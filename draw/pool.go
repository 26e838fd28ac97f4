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

// cyclePool 是「稀疏」的 Fisher-Yates：對 [0,size) 的虛擬排列做不放回抽樣。
//
// 不變量：
//   - 位置 [0,remaining) 放的恰好是本週期尚未抽出的值；[remaining,size) 是已抽出的值。
//   - at / pos 只記錄偏離恆等排列的位置，所以記憶體是 O(已抽數量) 而不是 O(size)。
//     範圍上限是 1e6，週期剛開始時不需要配置整個陣列。
//
// 從 [0,remaining) 均勻取一個位置，就等於從候選集合中均勻取一個值。
type cyclePool struct {
	size      int
	remaining int
	at        map[int]int // position -> value
	pos       map[int]int // value -> position
}

func newCyclePool(size int) *cyclePool {
	return &cyclePool{
		size:      size,
		remaining: size,
		at:        make(map[int]int),
		pos:       make(map[int]int),
	}
}

func (p *cyclePool) valueAt(i int) int {
	if v, ok := p.at[i]; ok {
		return v
	}
	return i
}

func (p *cyclePool) positionOf(v int) int {
	if i, ok := p.pos[v]; ok {
		return i
	}
	return v
}

func (p *cyclePool) setAt(i, v int) {
	if i == v {
		delete(p.at, i)
		delete(p.pos, v)
		return
	}
	p.at[i] = v
	p.pos[v] = i
}

func (p *cyclePool) swap(i, j int) {
	if i == j {
		return
	}
	vi, vj := p.valueAt(i), p.valueAt(j)
	p.setAt(i, vj)
	p.setAt(j, vi)
}

// take 把位置 i 的值移到已抽區並回傳。呼叫端保證 0 <= i < remaining。
func (p *cyclePool) take(i int) int {
	last := p.remaining - 1
	p.swap(i, last)
	p.remaining--
	return p.valueAt(last)
}

// mark 把值 v 標記為已抽；v 已在已抽區或超出範圍時回傳 false。
func (p *cyclePool) mark(v int) bool {
	if v < 0 || v >= p.size {
		return false
	}
	i := p.positionOf(v)
	if i >= p.remaining {
		return false
	}
	p.take(i)
	return true
}

func (p *cyclePool) exhausted() bool {
	return p.remaining == 0
}

func (p *cyclePool) reset() {
	p.remaining = p.size
	clear(p.at)
	clear(p.pos)
}

// order 回傳本週期依抽出順序排列的值。
//
// take 只會把值放到 remaining-1，之後不再移動，所以位置 size-1 是第一個抽出的值。
// 對新 pool 依此順序逐一 mark，可以重建完全相同的排列。
func (p *cyclePool) order() []int {
	out := make([]int, 0, p.size-p.remaining)
	for j := p.size - 1; j >= p.remaining; j-- {
		out = append(out, p.valueAt(j))
	}
	return out
}

// drawn 回傳已抽的值（未排序）。
func (p *cyclePool) drawn() []int {
	out := make([]int, 0, p.size-p.remaining)
	for j := p.remaining; j < p.size; j++ {
		out = append(out, p.valueAt(j))
	}
	return out
}
