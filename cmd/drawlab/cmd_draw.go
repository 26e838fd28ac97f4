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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zintix-labs/drawlab"
	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/reveal"
	"github.com/zintix-labs/drawlab/sdk/core"
	"github.com/zintix-labs/drawlab/settings"
	"github.com/zintix-labs/drawlab/store/sqlite"
)

type drawOpts struct {
	rng      string
	policy   string
	count    int
	seed     int64
	prng     string
	file     string
	db       string
	session  string
	animate  bool
	delayMs  int
	manual   bool
	printIDs bool
}

func newDrawCmd() *cobra.Command {
	o := &drawOpts{}
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Draw numbers from a range",
		Long: `Draw numbers from a closed range and print them in draw order.

With --db the session is stored in a sqlite file; pass --session <id> later to
continue the same cycle. With --reveal each number rolls on the terminal before
it is committed; in manual mode press Enter to stop the roll.`,
		Example: `  drawlab draw -r 1-55 -n 6
  drawlab draw -r 0-9 -n 20 --policy allow --seed 7
  drawlab draw --settings lab.yaml --reveal
  drawlab draw --db draws.db --session 7c7e...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDraw(cmd.Context(), cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.rng, "range", "r", "", "range <min>-<max> (default 1-55)")
	f.StringVarP(&o.policy, "policy", "p", "", "norepeat or allow (default norepeat)")
	f.IntVarP(&o.count, "count", "n", 1, "how many numbers to draw")
	f.Int64Var(&o.seed, "seed", 0, "fixed seed (default random)")
	f.StringVar(&o.prng, "prng", "pcg64", "random source: pcg64, pcg32, crypto")
	f.StringVar(&o.file, "settings", "", "YAML settings file")
	f.StringVar(&o.db, "db", "", "sqlite file to persist the session")
	f.StringVar(&o.session, "session", "", "continue a stored session (requires --db)")
	f.BoolVar(&o.animate, "reveal", false, "animate each draw")
	f.IntVar(&o.delayMs, "delay", 0, "reveal delay in ms (500,750,1000,1500,2000,5000)")
	f.BoolVar(&o.manual, "manual", false, "manual reveal: Enter stops the roll")
	f.BoolVar(&o.printIDs, "print-session", false, "print the session id to stderr")
	return cmd
}

// drawSettings 依序套用：預設值、設定檔、命令列旗標。
func drawSettings(cmd *cobra.Command, o *drawOpts) (settings.Settings, error) {
	set := settings.Default()
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return set, errs.Wrap(err, "read settings")
		}
		if set, err = settings.FromYAML(data); err != nil {
			return set, err
		}
	}
	f := cmd.Flags()
	if f.Changed("range") {
		set.Range = o.rng
	}
	if f.Changed("policy") {
		p, err := draw.ParsePolicy(o.policy)
		if err != nil {
			return set, err
		}
		set.Policy = p
	}
	if f.Changed("delay") {
		set.DelayMs = o.delayMs
	}
	if f.Changed("manual") {
		set.Manual = o.manual
	}
	return set, set.Validate()
}

func runDraw(ctx context.Context, cmd *cobra.Command, o *drawOpts) error {
	if o.count < 1 {
		return errs.NewWarn("count must be positive")
	}
	if o.session != "" && o.db == "" {
		return errs.NewWarn("--session requires --db")
	}
	set, err := drawSettings(cmd, o)
	if err != nil {
		return err
	}
	cf, ok := core.FactoryByName(o.prng)
	if !ok {
		return errs.Warnf("unknown prng %q", o.prng)
	}

	opts := []drawlab.Option{}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, drawlab.WithSeed(o.seed))
	}
	if o.db != "" {
		st, err := sqlite.Open(ctx, o.db)
		if err != nil {
			return err
		}
		opts = append(opts, drawlab.WithStore(st))
	}
	lab, err := drawlab.New(cf, opts...)
	if err != nil {
		return err
	}
	defer lab.Close()

	sess, err := openDrawSession(ctx, cmd, lab, o, set)
	if err != nil {
		return err
	}
	if o.printIDs {
		fmt.Fprintln(cmd.ErrOrStderr(), sess.ID())
	}

	out := cmd.OutOrStdout()
	values := make([]int, 0, o.count)
	var in *bufio.Reader
	for i := 0; i < o.count; i++ {
		var v int
		if o.animate {
			if sess.Settings().Manual && in == nil {
				in = bufio.NewReader(cmd.InOrStdin())
			}
			v, err = revealOne(ctx, out, in, sess)
		} else {
			v, err = sess.Draw(ctx)
		}
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	if !o.animate {
		fmt.Fprintln(out, draw.FormatHistory(values))
	}
	return nil
}

// openDrawSession 建立新 session；有 --session 時恢復既有 session，
// 命令列明確指定的設定會套用上去。
func openDrawSession(ctx context.Context, cmd *cobra.Command, lab *drawlab.Lab, o *drawOpts, set settings.Settings) (*drawlab.Session, error) {
	if o.session == "" {
		return lab.NewSession(ctx, set)
	}
	sess, err := lab.OpenSession(ctx, o.session)
	if err != nil {
		return nil, err
	}
	if o.file == "" && !anyChanged(cmd, "range", "policy", "delay", "manual") {
		return sess, nil
	}
	return sess, sess.ApplySettings(ctx, set)
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

// revealOne 在終端機上滾動一個號碼；手動模式讀到一行（Enter）就提交。
func revealOne(ctx context.Context, out io.Writer, in *bufio.Reader, sess *drawlab.Session) (int, error) {
	var stop chan struct{}
	if in != nil {
		stop = make(chan struct{})
		go func() {
			_, _ = in.ReadString('\n')
			close(stop)
		}()
	}
	width := len(sess.Settings().Range)
	f, err := sess.Reveal(ctx, stop, func(f reveal.Frame) {
		fmt.Fprintf(out, "\r%*d", width, f.Value)
		if f.Final {
			fmt.Fprintln(out)
		}
	})
	if err != nil {
		return 0, err
	}
	return f.Value, nil
}
