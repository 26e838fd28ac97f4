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

package server

import (
	"log/slog"

	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/server/api"
	"github.com/zintix-labs/drawlab/server/app"
	"github.com/zintix-labs/drawlab/server/netsvr"
	"github.com/zintix-labs/drawlab/server/svrcfg"
)

// Run 組裝並啟動 HTTP server，阻塞到收到 SIGINT/SIGTERM 或 server 停止。
//
// 所有依賴都由 SvrCfg 注入；Run 不讀環境變數，也不開檔案。
func Run(sCfg *svrcfg.SvrCfg) error {
	if sCfg == nil {
		return errs.NewFatal("server config is required")
	}
	if err := sCfg.Valid(); err != nil {
		return err
	}
	return RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr))
}

// RunWithSvr 與 Run 相同，但使用呼叫端提供的 NetSvr（自訂 listener、timeout 或其他框架的 adapter）。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	if sCfg == nil {
		return errs.NewFatal("server config is required")
	}
	if err := sCfg.Valid(); err != nil {
		return err
	}
	if svr == nil {
		return errs.NewFatal("svr is required")
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		return errs.NewFatal("default server is not ready")
	}
	if err := api.RegisterRoutes(svr, sCfg); err != nil {
		return errs.Wrap(err, "register routes")
	}

	a := app.NewWith(svr)
	if s, ok := svr.(*netsvr.ChiAdapter); ok {
		sCfg.Log.Info("[drawlab] listening", slog.String("addr", s.Address()))
	}
	if err := a.Run(); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
		return err
	}
	sCfg.Log.Info("[drawlab] stopped")
	return nil
}
