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

package v1

import (
	"bytes"
	"crypto/rand"
	"math"
	"math/big"
	"net/http"
	"runtime"
	"strconv"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/sdk/core"
	"github.com/zintix-labs/drawlab/stats"
)

// Audit GET /audit?range=1-6&policy=allow&n=100000&seed=7&workers=4&prng=pcg64&format=json
//
// 只有 range 必填。n 預設 100000，不可超過 server 設定的上限；沒給 seed 時隨機產生。
// format 可為 json（預設）、yaml、text。
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := stats.AuditConfig{Draws: 100000, Workers: 1}

	rng, err := draw.ParseRange(q.Get("range"))
	if err != nil {
		h.fail(w, "audit", err)
		return
	}
	cfg.Range = rng

	if s := q.Get("policy"); s != "" {
		p, err := draw.ParsePolicy(s)
		if err != nil {
			h.fail(w, "audit", err)
			return
		}
		cfg.Policy = p
	}
	if s := q.Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.fail(w, "audit", errs.NewWarn("n must be a positive integer"))
			return
		}
		cfg.Draws = n
	}
	if cfg.Draws > h.auditMax {
		h.fail(w, "audit", errs.Warnf("n must not exceed %d", h.auditMax))
		return
	}
	if s := q.Get("workers"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > runtime.NumCPU() {
			h.fail(w, "audit", errs.Warnf("workers must be in [1,%d]", runtime.NumCPU()))
			return
		}
		cfg.Workers = n
	}
	if s := q.Get("seed"); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.fail(w, "audit", errs.NewWarn("seed must be int64"))
			return
		}
		cfg.Seed = seed
	} else {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			h.fail(w, "audit", errs.Wrap(err, "seed generate failed"))
			return
		}
		cfg.Seed = rnd.Int64()
	}
	if s := q.Get("prng"); s != "" {
		cf, ok := core.FactoryByName(s)
		if !ok {
			h.fail(w, "audit", errs.Warnf("unknown prng %q", s))
			return
		}
		cfg.Factory = cf
	}
	render, err := stats.RenderByName(q.Get("format"))
	if err != nil {
		h.fail(w, "audit", err)
		return
	}
	if q.Get("format") == "" {
		render = &stats.JsonAuditReportRender{}
	}

	rep, err := stats.Audit(r.Context(), cfg)
	if err != nil {
		h.fail(w, "audit", err)
		return
	}

	// 先寫到記憶體，避免 render 寫到一半才失敗
	var b bytes.Buffer
	if err := rep.WriteWith(&b, render); err != nil {
		h.fail(w, "audit", errs.Wrap(err, "render audit report"))
		return
	}
	switch render.(type) {
	case *stats.JsonAuditReportRender:
		w.Header().Set("Content-Type", "application/json")
	case *stats.YAMLAuditReportRender:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = w.Write(b.Bytes())
}
