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
	"github.com/spf13/cobra"
	"github.com/zintix-labs/drawlab/server"
	"github.com/zintix-labs/drawlab/server/svrcfg"
)

func newServeCmd() *cobra.Command {
	var (
		addr string
		db   string
		seed int64
		prng string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Configuration comes from DRAWLAB_* environment
variables; flags given on the command line take precedence.

  DRAWLAB_ADDR            listen address (default :5808)
  DRAWLAB_LOG_MODE        dev | prod | silence
  DRAWLAB_DB              sqlite file; empty keeps sessions in memory
  DRAWLAB_SEED            fixed base seed
  DRAWLAB_PRNG            pcg64 | pcg32 | crypto
  DRAWLAB_REQUEST_TIMEOUT per-request timeout (default 5s)
  DRAWLAB_AUDIT_MAX_DRAWS upper bound for /v1/audit (default 1000000)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := svrcfg.LoadEnv()
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("addr") {
				e.Addr = addr
			}
			if f.Changed("db") {
				e.DB = db
			}
			if f.Changed("seed") {
				e.Seed = &seed
			}
			if f.Changed("prng") {
				e.PRNG = prng
			}
			if f.Changed("log-mode") {
				if err := e.LogMode.UnmarshalText([]byte(mode)); err != nil {
					return err
				}
			}

			sCfg, cleanup, err := svrcfg.Build(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer cleanup()
			return server.Run(sCfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":5808", "listen address")
	f.StringVar(&db, "db", "", "sqlite database path (empty = in memory)")
	f.Int64Var(&seed, "seed", 0, "fixed base seed")
	f.StringVar(&prng, "prng", "pcg64", "random source: pcg64, pcg32, crypto")
	f.StringVar(&mode, "log-mode", "dev", "log mode: dev, prod, silence")
	return cmd
}
