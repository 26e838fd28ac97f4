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

// Package v1 是 drawlab 的 HTTP API。
package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/zintix-labs/drawlab"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/server/httperr"
	"github.com/zintix-labs/drawlab/server/netsvr"
	"github.com/zintix-labs/drawlab/server/svrcfg"
)

// 請求 body 上限
const maxBody = 64 << 10

// ErrNoReveal 停止訊號送給沒有揭曉中的 session。
var ErrNoReveal = errs.Coded(errs.Warn, "not_found", "no reveal in progress")

// Handler 持有 API 需要的依賴。
type Handler struct {
	lab      *drawlab.Lab
	log      *slog.Logger
	timeout  time.Duration
	auditMax int

	mu    sync.Mutex
	stops map[string]chan struct{} // session id -> 進行中揭曉的停止訊號
}

func NewHandler(sCfg *svrcfg.SvrCfg) (*Handler, error) {
	if sCfg == nil {
		return nil, errs.NewFatal("server config is required")
	}
	if err := sCfg.Valid(); err != nil {
		return nil, errs.Wrap(err, "build v1 handler error")
	}
	return &Handler{
		lab:      sCfg.Lab,
		log:      sCfg.Log,
		timeout:  sCfg.RequestTimeout,
		auditMax: sCfg.AuditMaxDraws,
		stops:    make(map[string]chan struct{}),
	}, nil
}

// Register 把 v1 路由掛到 r。
func (h *Handler) Register(r netsvr.NetRouter) {
	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions", h.ListSessions)
	r.Group("/sessions/{id}", func(s netsvr.NetRouter) {
		s.Get("/", h.GetSession)
		s.Delete("/", h.DeleteSession)
		s.Post("/draw", h.Draw)
		s.Post("/roll", h.Roll)
		s.Get("/history", h.GetHistory)
		s.Delete("/history", h.ResetHistory)
		s.Put("/range", h.PutRange)
		s.Put("/policy", h.PutPolicy)
		s.Get("/settings", h.GetSettings)
		s.Put("/settings", h.PutSettings)
		s.Post("/reveal", h.Reveal)
		s.Post("/reveal/stop", h.StopReveal)
	})
	r.Get("/audit", h.Audit)
}

// ctx 一般請求的逾時 context。
func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

// session 取得路由上的 session；不在記憶體時由 store 恢復。失敗時已寫回錯誤。
func (h *Handler) session(ctx context.Context, w http.ResponseWriter, r *http.Request) (*drawlab.Session, bool) {
	sess, err := h.lab.OpenSession(ctx, netsvr.Param(r, "id"))
	if err != nil {
		h.fail(w, "open session", err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	httperr.Log(h.log, msg, err)
	httperr.Errs(w, err)
}

// decode 讀 JSON body；允許空 body（回傳 false, nil）。
func decode(r *http.Request, v any) (bool, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		return false, errs.Warnf("read body: %v", err)
	}
	if len(body) > maxBody {
		return false, errs.Warnf("body exceeds %d bytes", maxBody)
	}
	if len(body) == 0 {
		return false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if e, ok := errs.AsErr(err); ok {
			return false, e
		}
		return false, errs.NewWarn("invalid json: " + err.Error())
	}
	return true, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
