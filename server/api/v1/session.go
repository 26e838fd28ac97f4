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
	"io"
	"net/http"

	"github.com/zintix-labs/drawlab"
	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/server/netsvr"
	"github.com/zintix-labs/drawlab/settings"
)

// SessionResponse 建立或查詢 session 的回應。
type SessionResponse struct {
	ID       string            `json:"id"`
	Settings settings.Settings `json:"settings"`
	Status   drawlab.Status    `json:"status"`
}

func sessionResponse(s *drawlab.Session) SessionResponse {
	return SessionResponse{ID: s.ID(), Settings: s.Settings(), Status: s.Status()}
}

// CreateSession POST /sessions，body 為可省略的設定（缺的欄位用預設值）。
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	set := settings.Default()
	if _, err := decode(r, &set); err != nil {
		h.fail(w, "create session", err)
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()

	sess, err := h.lab.NewSession(ctx, set)
	if err != nil {
		h.fail(w, "create session", err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

// ListSessions GET /sessions，只列出記憶體中的 session。
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": h.lab.Sessions()})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	if err := h.lab.DeleteSession(ctx, netsvr.Param(r, "id")); err != nil {
		h.fail(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DrawResponse 抽號回應。
type DrawResponse struct {
	Value  int            `json:"value"`
	Status drawlab.Status `json:"status"`
}

// Draw POST /sessions/{id}/draw：正式抽出一個值並寫入紀錄。
func (h *Handler) Draw(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	v, err := sess.Draw(ctx)
	if err != nil {
		h.fail(w, "draw", err)
		return
	}
	writeJSON(w, http.StatusOK, DrawResponse{Value: v, Status: sess.Status()})
}

// Roll POST /sessions/{id}/roll：取一個不提交的值。
func (h *Handler) Roll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	v, err := sess.Roll()
	if err != nil {
		h.fail(w, "roll", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"value": v})
}

// HistoryResponse 紀錄回應；Text 是可直接複製的文字。
type HistoryResponse struct {
	History []int  `json:"history"`
	Text    string `json:"text"`
}

// GetHistory GET /sessions/{id}/history；?format=text 回傳純文字。
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	hist := sess.History()
	text := draw.FormatHistory(hist)
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, HistoryResponse{History: hist, Text: text})
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, text)
	default:
		h.fail(w, "history", errs.Warnf("unknown format %q", r.URL.Query().Get("format")))
	}
}

// ResetHistory DELETE /sessions/{id}/history：清空紀錄，週期進度不變。
func (h *Handler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	if err := sess.ResetHistory(ctx); err != nil {
		h.fail(w, "reset history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutRange PUT /sessions/{id}/range，body {"range":"1-55"}。
func (h *Handler) PutRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Range *string `json:"range"`
	}
	if _, err := decode(r, &req); err != nil {
		h.fail(w, "put range", err)
		return
	}
	if req.Range == nil {
		h.fail(w, "put range", errs.NewWarn("range is required"))
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	if _, err := sess.Configure(ctx, *req.Range); err != nil {
		h.fail(w, "put range", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// PutPolicy PUT /sessions/{id}/policy，body {"policy":"norepeat"|"allow"}。
func (h *Handler) PutPolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policy *draw.Policy `json:"policy"`
	}
	if _, err := decode(r, &req); err != nil {
		h.fail(w, "put policy", err)
		return
	}
	if req.Policy == nil {
		h.fail(w, "put policy", errs.NewWarn("policy is required"))
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	if err := sess.SetPolicy(ctx, *req.Policy); err != nil {
		h.fail(w, "put policy", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Settings())
}

// PutSettings PUT /sessions/{id}/settings：body 只需要帶要改的欄位。
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	sess, ok := h.session(ctx, w, r)
	if !ok {
		return
	}
	next := sess.Settings()
	if _, err := decode(r, &next); err != nil {
		h.fail(w, "put settings", err)
		return
	}
	if err := sess.ApplySettings(ctx, next); err != nil {
		h.fail(w, "put settings", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Settings())
}
