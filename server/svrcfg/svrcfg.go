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

package svrcfg

import (
	"context"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zintix-labs/drawlab"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/sdk/core"
	"github.com/zintix-labs/drawlab/server/logger"
	"github.com/zintix-labs/drawlab/store"
	"github.com/zintix-labs/drawlab/store/sqlite"
	"github.com/zintix-labs/drawlab/stats"
)

// Env 是 server 的環境變數設定。
type Env struct {
	Addr           string         `env:"DRAWLAB_ADDR"            envDefault:":5808"`
	LogMode        logger.LogMode `env:"DRAWLAB_LOG_MODE"        envDefault:"dev"`
	DB             string         `env:"DRAWLAB_DB"`
	Seed           *int64         `env:"DRAWLAB_SEED"`
	PRNG           string         `env:"DRAWLAB_PRNG"            envDefault:"pcg64"`
	RequestTimeout time.Duration  `env:"DRAWLAB_REQUEST_TIMEOUT" envDefault:"5s"`
	AuditMaxDraws  int            `env:"DRAWLAB_AUDIT_MAX_DRAWS" envDefault:"1000000"`
}

// LoadEnv 從行程環境讀取 Env。
func LoadEnv() (Env, error) {
	return parseEnv(env.Options{})
}

// LoadEnvFrom 從指定的 key/value 讀取 Env，不碰行程環境。
func LoadEnvFrom(vars map[string]string) (Env, error) {
	return parseEnv(env.Options{Environment: vars})
}

func parseEnv(opts env.Options) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Env{}, errs.Warnf("parse env: %v", err)
	}
	if e.AuditMaxDraws < 1 || e.AuditMaxDraws > stats.MaxDraws {
		return Env{}, errs.Warnf("DRAWLAB_AUDIT_MAX_DRAWS must be in [1,%d]", stats.MaxDraws)
	}
	if e.RequestTimeout <= 0 {
		return Env{}, errs.NewWarn("DRAWLAB_REQUEST_TIMEOUT must be positive")
	}
	return e, nil
}

// SvrCfg 是組裝好的 server 依賴。
type SvrCfg struct {
	Addr           string
	Log            *slog.Logger
	Lab            *drawlab.Lab
	RequestTimeout time.Duration // 一般請求的逾時；reveal 與 audit 另計
	AuditMaxDraws  int
}

// Valid 檢查必要依賴並補上預設值。
func (sc *SvrCfg) Valid() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		sc.Log = logger.NewDefaultLogger(logger.ModeSilence)
	}
	if sc.Lab == nil {
		return errs.NewFatal("drawlab is required")
	}
	if sc.Addr == "" {
		sc.Addr = ":5808"
	}
	if sc.RequestTimeout <= 0 {
		sc.RequestTimeout = 5 * time.Second
	}
	sc.AuditMaxDraws = min(max(1, sc.AuditMaxDraws), stats.MaxDraws)
	return nil
}

// Build 依 Env 組裝 logger、store 與 Lab。回傳的 cleanup 關閉 store 並寫完非同步日誌。
//
// DB 為空時 session 只存在記憶體（store.Mem），重啟後消失。
func Build(ctx context.Context, e Env) (*SvrCfg, func(), error) {
	log, ah := logger.NewAsync(8192, e.LogMode)

	cf, ok := core.FactoryByName(e.PRNG)
	if !ok {
		ah.Close()
		return nil, nil, errs.Warnf("unknown prng %q", e.PRNG)
	}

	var st store.Store
	if e.DB == "" {
		st = store.NewMem()
	} else {
		db, err := sqlite.Open(ctx, e.DB)
		if err != nil {
			ah.Close()
			return nil, nil, errs.Wrap(err, "open store")
		}
		st = db
	}

	opts := []drawlab.Option{drawlab.WithLogger(log), drawlab.WithStore(st)}
	if e.Seed != nil {
		opts = append(opts, drawlab.WithSeed(*e.Seed))
	}
	lab, err := drawlab.New(cf, opts...)
	if err != nil {
		_ = st.Close()
		ah.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := lab.Close(); err != nil {
			log.Error("close store", slog.Any("err", err))
		}
		ah.Close()
	}
	sc := &SvrCfg{
		Addr:           e.Addr,
		Log:            log,
		Lab:            lab,
		RequestTimeout: e.RequestTimeout,
		AuditMaxDraws:  e.AuditMaxDraws,
	}
	return sc, cleanup, sc.Valid()
}
