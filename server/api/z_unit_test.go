package api

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zintix-labs/drawlab"
	"github.com/zintix-labs/drawlab/reveal"
	"github.com/zintix-labs/drawlab/sdk/core"
	"github.com/zintix-labs/drawlab/server/netsvr"
	"github.com/zintix-labs/drawlab/server/svrcfg"
	"github.com/zintix-labs/drawlab/settings"
	"github.com/zintix-labs/drawlab/stats"
	"github.com/zintix-labs/drawlab/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	lab, err := drawlab.New(core.Default(), drawlab.WithSeed(11), drawlab.WithStore(store.NewMem()))
	if err != nil {
		t.Fatalf("drawlab.New: %v", err)
	}
	sCfg := &svrcfg.SvrCfg{Lab: lab, RequestTimeout: 2 * time.Second, AuditMaxDraws: 50000}
	svr := netsvr.NewChiServer(":0")
	if err := RegisterRoutes(svr, sCfg); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	ts := httptest.NewServer(svr.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

type sessionBody struct {
	ID       string            `json:"id"`
	Settings settings.Settings `json:"settings"`
	Status   drawlab.Status    `json:"status"`
}

func createSession(t *testing.T, ts *httptest.Server, body string) sessionBody {
	t.Helper()
	resp, b := do(t, ts, http.MethodPost, "/v1/sessions", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d %s", resp.StatusCode, b)
	}
	var s sessionBody
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return s
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, b := do(t, ts, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, b)
	}
}

func TestSessionDrawCycle(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, `{"range":"1-3"}`)
	if s.Settings.Range != "1-3" || s.Settings.DelayMs != 750 || s.Status.Remaining != 3 {
		t.Fatalf("unexpected session: %+v", s)
	}

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		resp, b := do(t, ts, http.MethodPost, "/v1/sessions/"+s.ID+"/draw", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("draw: %d %s", resp.StatusCode, b)
		}
		var d struct {
			Value int `json:"value"`
		}
		_ = json.Unmarshal(b, &d)
		if d.Value < 1 || d.Value > 3 || seen[d.Value] {
			t.Fatalf("draw %d returned %d (seen %v)", i, d.Value, seen)
		}
		seen[d.Value] = true
	}

	resp, b := do(t, ts, http.MethodGet, "/v1/sessions/"+s.ID+"/history", "")
	var h struct {
		History []int  `json:"history"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(b, &h); err != nil || resp.StatusCode != http.StatusOK || len(h.History) != 3 {
		t.Fatalf("history: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, ts, http.MethodGet, "/v1/sessions/"+s.ID+"/history?format=text", "")
	if string(b) != h.Text || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Fatalf("text history: %q vs %q", b, h.Text)
	}

	resp, _ = do(t, ts, http.MethodDelete, "/v1/sessions/"+s.ID+"/history", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset history: %d", resp.StatusCode)
	}
	_, b = do(t, ts, http.MethodGet, "/v1/sessions/"+s.ID+"/history", "")
	if !strings.Contains(string(b), `"history":[]`) {
		t.Fatalf("history should be empty: %s", b)
	}

	resp, b = do(t, ts, http.MethodPost, "/v1/sessions/"+s.ID+"/roll", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"value"`) {
		t.Fatalf("roll: %d %s", resp.StatusCode, b)
	}
}

func TestRangeAndPolicy(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, "")
	if s.Settings.Range != "1-55" {
		t.Fatalf("default range expected, got %s", s.Settings.Range)
	}
	base := "/v1/sessions/" + s.ID

	resp, b := do(t, ts, http.MethodPut, base+"/range", `{"range":"10 - 20"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"range":"10-20"`) {
		t.Fatalf("put range: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, ts, http.MethodPut, base+"/range", `{"range":"20-10"}`)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(b), "out_of_bounds") {
		t.Fatalf("bad range: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, ts, http.MethodPut, base+"/range", `{"range":"abc"}`)
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(b), "malformed") {
		t.Fatalf("malformed range: %d %s", resp.StatusCode, b)
	}
	resp, _ = do(t, ts, http.MethodPut, base+"/range", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing range: %d", resp.StatusCode)
	}

	resp, b = do(t, ts, http.MethodPut, base+"/policy", `{"policy":"allow"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), `"policy":"allow"`) {
		t.Fatalf("put policy: %d %s", resp.StatusCode, b)
	}
	resp, b = do(t, ts, http.MethodPut, base+"/policy", `{"policy":"sometimes"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad policy: %d %s", resp.StatusCode, b)
	}
}

func TestSettingsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, `{"range":"1-9","manual":true}`)
	base := "/v1/sessions/" + s.ID

	resp, b := do(t, ts, http.MethodPut, base+"/settings", `{"delay_ms":2000,"roll_color":"#fff"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put settings: %d %s", resp.StatusCode, b)
	}
	var got settings.Settings
	_ = json.Unmarshal(b, &got)
	if got.DelayMs != 2000 || got.RollColor != "#fff" || got.Range != "1-9" || !got.Manual {
		t.Fatalf("partial update lost fields: %+v", got)
	}

	resp, _ = do(t, ts, http.MethodPut, base+"/settings", `{"delay_ms":123}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid delay should be 400, got %d", resp.StatusCode)
	}
	resp, _ = do(t, ts, http.MethodPut, base+"/settings", `{"volume":3}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field should be 400, got %d", resp.StatusCode)
	}
	_, b = do(t, ts, http.MethodGet, base+"/settings", "")
	_ = json.Unmarshal(b, &got)
	if got.DelayMs != 2000 {
		t.Fatalf("rejected update must not apply: %+v", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, "")

	_, b := do(t, ts, http.MethodGet, "/v1/sessions", "")
	if !strings.Contains(string(b), s.ID) {
		t.Fatalf("list should contain %s: %s", s.ID, b)
	}
	resp, _ := do(t, ts, http.MethodGet, "/v1/sessions/"+s.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: %d", resp.StatusCode)
	}
	resp, _ = do(t, ts, http.MethodDelete, "/v1/sessions/"+s.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp, b = do(t, ts, http.MethodGet, "/v1/sessions/"+s.ID, "")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(b), "not_found") {
		t.Fatalf("deleted session should be 404: %d %s", resp.StatusCode, b)
	}
	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions/nope/draw", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id should be 404: %d", resp.StatusCode)
	}
	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions", `{"range":"9-1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid settings should be 400: %d", resp.StatusCode)
	}
}

func readFrames(t *testing.T, r io.Reader) []reveal.Frame {
	t.Helper()
	var frames []reveal.Frame
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var f reveal.Frame
		if err := json.Unmarshal(sc.Bytes(), &f); err != nil {
			t.Fatalf("frame %q: %v", sc.Text(), err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestRevealAutoStream(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, `{"range":"1-5"}`)
	resp, b := do(t, ts, http.MethodPost, "/v1/sessions/"+s.ID+"/reveal", `{"delay_ms":500,"tick_ms":50}`)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/x-ndjson" {
		t.Fatalf("reveal: %d %s", resp.StatusCode, b)
	}
	frames := readFrames(t, strings.NewReader(string(b)))
	if len(frames) < 3 {
		t.Fatalf("expected rolling frames, got %d", len(frames))
	}
	last := frames[len(frames)-1]
	if !last.Final || last.Value < 1 || last.Value > 5 {
		t.Fatalf("bad final frame: %+v", last)
	}

	_, b = do(t, ts, http.MethodGet, "/v1/sessions/"+s.ID+"/history", "")
	if !strings.Contains(string(b), "[") || strings.Contains(string(b), `"history":[]`) {
		t.Fatalf("reveal must commit to history: %s", b)
	}

	resp, _ = do(t, ts, http.MethodPost, "/v1/sessions/"+s.ID+"/reveal", `{"delay_ms":42}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid delay should be 400: %d", resp.StatusCode)
	}
}

func TestRevealManualStopAndBusy(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, `{"range":"1-5","manual":true}`)
	base := "/v1/sessions/" + s.ID

	req, _ := http.NewRequest(http.MethodPost, ts.URL+base+"/reveal", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reveal status %d", resp.StatusCode)
	}
	br := bufio.NewReader(resp.Body)
	// 收到第一個 frame 代表揭曉已開始
	if _, err := br.ReadBytes('\n'); err != nil {
		t.Fatalf("first frame: %v", err)
	}

	r2, b := do(t, ts, http.MethodPut, base+"/policy", `{"policy":"allow"}`)
	if r2.StatusCode != http.StatusConflict || !strings.Contains(string(b), "busy") {
		t.Fatalf("policy change during reveal should be 409: %d %s", r2.StatusCode, b)
	}
	r2, _ = do(t, ts, http.MethodPost, base+"/reveal", "")
	if r2.StatusCode != http.StatusConflict {
		t.Fatalf("second reveal should be 409: %d", r2.StatusCode)
	}

	r2, _ = do(t, ts, http.MethodPost, base+"/reveal/stop", "")
	if r2.StatusCode != http.StatusAccepted {
		t.Fatalf("stop: %d", r2.StatusCode)
	}
	frames := readFrames(t, br)
	if len(frames) == 0 || !frames[len(frames)-1].Final {
		t.Fatalf("stream must end with a final frame: %+v", frames)
	}

	r2, _ = do(t, ts, http.MethodPost, base+"/reveal/stop", "")
	if r2.StatusCode != http.StatusNotFound {
		t.Fatalf("stop without reveal should be 404: %d", r2.StatusCode)
	}
	r2, _ = do(t, ts, http.MethodPut, base+"/policy", `{"policy":"allow"}`)
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("policy change after reveal should succeed: %d", r2.StatusCode)
	}
}

func TestConcurrentDraws(t *testing.T) {
	ts := newTestServer(t)
	s := createSession(t, ts, `{"range":"1-40"}`)
	var mu sync.Mutex
	seen := map[int]int{}
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/sessions/"+s.ID+"/draw", nil)
			resp, err := ts.Client().Do(req)
			if err != nil {
				return
			}
			defer resp.Body.Close()
			var d struct {
				Value int `json:"value"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&d)
			mu.Lock()
			seen[d.Value]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 40 {
		t.Fatalf("40 concurrent draws must cover 1-40 exactly once, got %d distinct", len(seen))
	}
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, b := do(t, ts, http.MethodGet, "/v1/audit?range=1-6&policy=allow&n=6000&seed=7", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: %d %s", resp.StatusCode, b)
	}
	var rep stats.AuditReport
	if err := json.Unmarshal(b, &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Draws != 6000 || rep.Seed != 7 || rep.Size != 6 || len(rep.Counts) != 6 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	resp, b = do(t, ts, http.MethodGet, "/v1/audit?range=1-6&n=600&seed=7&format=text", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(b), "Uniformity Audit") {
		t.Fatalf("text audit: %d %s", resp.StatusCode, b)
	}

	for _, q := range []string{
		"range=6-1",
		"range=1-6&n=50001",
		"range=1-6&n=-3",
		"range=1-6&policy=maybe",
		"range=1-6&format=xml",
		"range=1-6&prng=xorshift",
	} {
		resp, _ := do(t, ts, http.MethodGet, "/v1/audit?"+q, "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}
