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

package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/sdk/core"
	"github.com/zintix-labs/drawlab/sdk/perf"
	"github.com/zintix-labs/drawlab/stats"
)

type auditOpts struct {
	rng      string
	policy   string
	draws    int
	seed     int64
	workers  int
	prng     string
	format   string
	progress bool
	pprof    string
	pprofDir string
	strict   float64
}

func newAuditCmd() *cobra.Command {
	o := &auditOpts{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check that draws are uniform",
		Long: `Run many draws on a fresh engine and report frequency statistics:
Pearson chi-square and its p-value, the largest relative deviation with a
Clopper-Pearson interval, and repeats inside no-repeat cycles.`,
		Example: `  drawlab audit -r 1-6 -n 1000000 --policy allow
  drawlab audit -r 1-55 -n 5500000 -w 8 --format yaml
  drawlab audit -r 0-999999 -n 20000000 --pprof cpu`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAudit(cmd.Context(), cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.rng, "range", "r", draw.DefaultRange.String(), "range <min>-<max>")
	f.StringVarP(&o.policy, "policy", "p", "norepeat", "norepeat or allow")
	f.IntVarP(&o.draws, "draws", "n", 1_000_000, "number of draws")
	f.Int64Var(&o.seed, "seed", 1, "base seed")
	f.IntVarP(&o.workers, "workers", "w", 1, "parallel engines")
	f.StringVar(&o.prng, "prng", "pcg64", "random source: pcg64, pcg32, crypto")
	f.StringVarP(&o.format, "format", "f", "text", "text, json or yaml")
	f.BoolVar(&o.progress, "progress", false, "show a progress bar on stderr")
	f.StringVar(&o.pprof, "pprof", "", "profile the run: cpu, heap, allocs")
	f.StringVar(&o.pprofDir, "pprof-dir", perf.DefaultDir, "profile output directory")
	f.Float64Var(&o.strict, "fail-below", 0, "exit with an error when the p-value is below this level")
	return cmd
}

func runAudit(ctx context.Context, cmd *cobra.Command, o *auditOpts) error {
	r, err := draw.ParseRange(o.rng)
	if err != nil {
		return err
	}
	p, err := draw.ParsePolicy(o.policy)
	if err != nil {
		return err
	}
	cf, ok := core.FactoryByName(o.prng)
	if !ok {
		return errs.Warnf("unknown prng %q", o.prng)
	}
	if o.workers < 1 || o.workers > runtime.NumCPU() {
		return errs.Warnf("workers must be in [1,%d]", runtime.NumCPU())
	}
	if !slices.Contains(perf.Modes, o.pprof) {
		return errs.Warnf("unknown pprof mode %q", o.pprof)
	}
	render, err := stats.RenderByName(o.format)
	if err != nil {
		return err
	}
	if o.strict < 0 || o.strict >= 1 {
		return errs.NewWarn("fail-below must be in [0,1)")
	}

	cfg := stats.AuditConfig{
		Range:    r,
		Policy:   p,
		Draws:    o.draws,
		Seed:     o.seed,
		Factory:  cf,
		Workers:  o.workers,
		Progress: o.progress,
		Out:      cmd.ErrOrStderr(),
	}
	var rep *stats.AuditReport
	err = perf.Run(func() error {
		var err error
		rep, err = stats.Audit(ctx, cfg)
		return err
	}, o.pprof, o.pprofDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, text := render.(*stats.TextAuditReportRender); text {
		rep.StdOut(out)
	} else if err := rep.WriteWith(out, render); err != nil {
		return err
	}
	if o.pprof != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "profile written to", perf.Path(o.pprofDir, o.pprof))
	}
	if o.strict > 0 && !rep.Uniform(o.strict) {
		return errs.Warnf("audit failed: p-value %.4g, repeats %d", rep.PValue, rep.RepeatViolations)
	}
	return nil
}
