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

// Package stats 以大量抽號檢驗引擎的均勻性與週期不重複。
//
// Audit 在全新的 Engine 上跑 N 次 Draw，統計每個值的次數，並計算：
//   - Pearson χ² 與 p-value（自由度 = 值的個數 - 1）
//   - 最大相對偏差 max|obs-exp|/exp
//   - 偏差最大的值的 Clopper–Pearson 95% 信賴區間
//   - NoRepeat 週期內的重複次數（正確實作必為 0）
package stats

import (
	"context"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/sdk/core"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxCountsReported 值的個數不超過此數時，報告附上每個值的次數。
const MaxCountsReported = 1000

// MaxDraws 單次 Audit 的抽號上限。
const MaxDraws = 100_000_000

// ctx 檢查間隔
const checkEvery = 4096

// AuditConfig Audit 參數
type AuditConfig struct {
	Range    draw.Range
	Policy   draw.Policy
	Draws    int              // 總抽號數
	Seed     int64            // 第 i 個 worker 的 seed 由 Seed 派生
	Factory  core.PRNGFactory // nil 時用 core.Default()
	Workers  int              // 平行的 Engine 數，<=0 視為 1
	Progress bool             // 顯示進度條
	Out      io.Writer        // 進度條輸出，nil 時為 stderr
}

func (c *AuditConfig) valid() error {
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if !c.Policy.Valid() {
		return errs.With(draw.ErrBadPolicy, c.Policy.String())
	}
	if c.Draws < 1 || c.Draws > MaxDraws {
		return errs.Warnf("draws must be in [1,%d], got %d", MaxDraws, c.Draws)
	}
	if c.Factory == nil {
		c.Factory = core.Default()
	}
	c.Workers = min(max(1, c.Workers), c.Draws)
	if c.Out == nil {
		c.Out = os.Stderr
	}
	return nil
}

// CI 信賴區間
type CI struct {
	Lo float64 `json:"Lo" yaml:"Lo"`
	Hi float64 `json:"Hi" yaml:"Hi"`
}

// Bucket 單一值的統計
type Bucket struct {
	Value int     `json:"Value" yaml:"Value"`
	Count int     `json:"Count" yaml:"Count"`
	Share float64 `json:"Share" yaml:"Share"`
	CI    CI      `json:"CI" yaml:"CI"`
}

// AuditReport Audit 結果
type AuditReport struct {
	Range            string        `json:"Range" yaml:"Range"`
	Policy           string        `json:"Policy" yaml:"Policy"`
	Draws            int           `json:"Draws" yaml:"Draws"`
	Seed             int64         `json:"Seed" yaml:"Seed"`
	Workers          int           `json:"Workers" yaml:"Workers"`
	Size             int           `json:"Size" yaml:"Size"`
	Expected         float64       `json:"Expected" yaml:"Expected"`
	MinCount         int           `json:"MinCount" yaml:"MinCount"`
	MaxCount         int           `json:"MaxCount" yaml:"MaxCount"`
	MaxDeviation     float64       `json:"MaxDeviation" yaml:"MaxDeviation"`
	Worst            Bucket        `json:"Worst" yaml:"Worst"`
	ChiSquare        float64       `json:"ChiSquare" yaml:"ChiSquare"`
	DF               int           `json:"DF" yaml:"DF"`
	PValue           float64       `json:"PValue" yaml:"PValue"`
	Cycles           int           `json:"Cycles" yaml:"Cycles"`
	RepeatViolations int           `json:"RepeatViolations" yaml:"RepeatViolations"`
	Elapsed          time.Duration `json:"Elapsed" yaml:"Elapsed"`
	Counts           []int         `json:"Counts,omitempty" yaml:"Counts,omitempty"`
}

// Uniform p-value 不低於 alpha 且沒有週期內重複時回傳 true。
func (r *AuditReport) Uniform(alpha float64) bool {
	return r.PValue >= alpha && r.RepeatViolations == 0
}

type tally struct {
	counts     []int
	cycles     int
	violations int
}

// Audit 執行均勻性檢驗。ctx 取消時回傳 ctx.Err()。
func Audit(ctx context.Context, cfg AuditConfig) (*AuditReport, error) {
	if err := cfg.valid(); err != nil {
		return nil, err
	}
	size := cfg.Range.Size()

	engines := make([]*draw.Engine, cfg.Workers)
	for i := range engines {
		eng, err := draw.New(core.New(cfg.Factory.New(workerSeed(cfg.Seed, i))), cfg.Range, cfg.Policy)
		if err != nil {
			return nil, err
		}
		engines[i] = eng
	}

	bar := pb.New(cfg.Draws)
	if cfg.Progress {
		bar.SetWriter(cfg.Out)
	} else {
		bar.SetWriter(io.Discard)
	}
	bar.Start()
	defer bar.Finish()

	start := time.Now()
	tallies := make([]*tally, cfg.Workers)
	errCh := make(chan error, cfg.Workers)
	wg := new(sync.WaitGroup)
	per, rest := cfg.Draws/cfg.Workers, cfg.Draws%cfg.Workers
	for i, eng := range engines {
		n := per
		if i < rest {
			n++
		}
		tallies[i] = &tally{counts: make([]int, size)}
		wg.Add(1)
		go func(t *tally, eng *draw.Engine, n int) {
			defer wg.Done()
			if err := run(ctx, eng, n, t, bar); err != nil {
				errCh <- err
			}
		}(tallies[i], eng, n)
	}
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return nil, err
	}

	counts := tallies[0].counts
	rep := &AuditReport{
		Range:   cfg.Range.String(),
		Policy:  cfg.Policy.String(),
		Draws:   cfg.Draws,
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
		Size:    size,
		Elapsed: time.Since(start),
	}
	for _, t := range tallies[1:] {
		for j, c := range t.counts {
			counts[j] += c
		}
	}
	for _, t := range tallies {
		rep.Cycles += t.cycles
		rep.RepeatViolations += t.violations
	}
	summarize(rep, cfg.Range.Min, counts)
	if size <= MaxCountsReported {
		rep.Counts = counts
	}
	return rep, nil
}

// run 在單一 Engine 上抽 n 次並記錄到 t。
func run(ctx context.Context, eng *draw.Engine, n int, t *tally, bar *pb.ProgressBar) error {
	lo := eng.Range().Min
	noRepeat := eng.Policy() == draw.NoRepeat
	var seen []bool
	if noRepeat {
		seen = make([]bool, len(t.counts))
	}
	cycle := 0
	for i := 0; i < n; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Audit 不需要 history，定期清掉以免記憶體隨 N 成長
			eng.ResetHistory()
		}
		v, err := eng.Draw()
		if err != nil {
			return err
		}
		off := v - lo
		t.counts[off]++
		if noRepeat {
			if c := eng.Cycle(); c != cycle {
				cycle = c
				clear(seen)
			}
			if seen[off] {
				t.violations++
			}
			seen[off] = true
		}
		bar.Increment()
	}
	if noRepeat {
		t.cycles = cycle
	}
	eng.ResetHistory()
	return nil
}

// summarize 由次數計算 χ²、p-value 與偏差。
func summarize(rep *AuditReport, base int, counts []int) {
	size := len(counts)
	exp := float64(rep.Draws) / float64(size)
	rep.Expected = exp
	rep.MinCount, rep.MaxCount = math.MaxInt, 0
	worst := 0
	for i, c := range counts {
		d := float64(c) - exp
		rep.ChiSquare += d * d / exp
		rep.MinCount = min(rep.MinCount, c)
		rep.MaxCount = max(rep.MaxCount, c)
		if math.Abs(d) > math.Abs(float64(counts[worst])-exp) {
			worst = i
		}
	}
	rep.MaxDeviation = math.Abs(float64(counts[worst])-exp) / exp
	rep.DF = size - 1
	if rep.DF > 0 {
		rep.PValue = distuv.ChiSquared{K: float64(rep.DF)}.Survival(rep.ChiSquare)
	} else {
		rep.PValue = 1
	}
	share, ci := proportionCICP(counts[worst], rep.Draws, 0.95)
	rep.Worst = Bucket{Value: base + worst, Count: counts[worst], Share: share, CI: ci}
}

// workerSeed 以 splitmix64 派生第 i 個 worker 的 seed；i = 0 時就是 seed 本身。
func workerSeed(seed int64, i int) int64 {
	if i == 0 {
		return seed
	}
	z := uint64(seed) + uint64(i)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64((z ^ (z >> 31)) >> 1)
}

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}
