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
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/reveal"
	"github.com/zintix-labs/drawlab/server/httperr"
	"github.com/zintix-labs/drawlab/server/netsvr"
	"github.com/zintix-labs/drawlab/settings"
)

// 揭曉串流在 Delay 之外多給的寫入時間
const revealSlack = 10 * time.Second

// RevealRequest 覆寫 session 設定的揭曉參數，全部可省略。
type RevealRequest struct {
	DelayMs *int  `json:"delay_ms,omitempty"`
	Manual  *bool `json:"manual,omitempty"`
	TickMs  *int  `json:"tick_ms,omitempty"`
}

// Reveal POST /sessions/{id}/reveal：以 NDJSON 串流每個 Frame，每行 flush 一次。
// 最後一行是 final frame；串流開始後發生的錯誤以 {"error":...} 收尾。
// 手動模式由 POST /sessions/{id}/reveal/stop 或客戶端斷線結束（斷線不提交）。
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if _, err := decode(r, &req); err != nil {
		h.fail(w, "reveal", err)
		return
	}
	ctx := r.Context()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	cfg := sess.RevealConfig()
	if req.DelayMs != nil {
		s := settings.Default()
		s.DelayMs = *req.DelayMs
		if err := s.Validate(); err != nil {
			h.fail(w, "reveal", err)
			return
		}
		cfg.Delay = s.Delay()
	}
	if req.Manual != nil {
		cfg.Manual = *req.Manual
	}
	if req.TickMs != nil {
		if *req.TickMs < 10 || *req.TickMs > 1000 {
			h.fail(w, "reveal", errs.NewWarn("tick_ms must be in [10,1000]"))
			return
		}
		cfg.Tick = time.Duration(*req.TickMs) * time.Millisecond
	}

	stop := h.openStop(sess.ID())
	defer h.closeStop(sess.ID(), stop)

	rc := http.NewResponseController(w)
	if cfg.Manual {
		_ = rc.SetWriteDeadline(time.Time{})
	} else {
		_ = rc.SetWriteDeadline(time.Now().Add(cfg.Delay + revealSlack))
	}

	enc := json.NewEncoder(w)
	started := false
	emit := func(f reveal.Frame) {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		_ = enc.Encode(f)
		_ = rc.Flush()
	}

	final, err := sess.RevealWith(ctx, cfg, stop, emit)
	if err != nil {
		httperr.Log(h.log, "reveal", err)
		if !started {
			httperr.Errs(w, err)
			return
		}
		_ = enc.Encode(httperr.Body{Error: err.Error(), Code: errs.CodeOf(err)})
		_ = rc.Flush()
		return
	}
	h.log.Debug("reveal committed", slog.String("session", sess.ID()), slog.Int("value", final.Value), slog.Int("frames", final.Seq))
}

// StopReveal POST /sessions/{id}/reveal/stop：提交進行中的揭曉。
func (h *Handler) StopReveal(w http.ResponseWriter, r *http.Request) {
	id := netsvr.Param(r, "id")
	h.mu.Lock()
	ch, ok := h.stops[id]
	if ok {
		delete(h.stops, id)
		close(ch)
	}
	h.mu.Unlock()
	if !ok {
		h.fail(w, "stop reveal", errs.With(ErrNoReveal, id))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// openStop 登記 session 的停止訊號。已有進行中揭曉時回傳未登記的 channel，
// 這次請求隨後會被 RevealWith 以 ErrBusy 拒絕。
func (h *Handler) openStop(id string) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan struct{})
	if _, ok := h.stops[id]; !ok {
		h.stops[id] = ch
	}
	return ch
}

// closeStop 只移除自己登記的那一個。
func (h *Handler) closeStop(id string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.stops[id]; ok && cur == ch {
		delete(h.stops, id)
	}
}
