package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestParseLogMode(t *testing.T) {
	cases := map[string]LogMode{"": ModeDev, "DEV": ModeDev, "prod": ModeProd, "json": ModeProd, "off": ModeSilence}
	for in, want := range cases {
		got, err := ParseLogMode(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v err %v", in, got, err)
		}
	}
	if _, err := ParseLogMode("loud"); err == nil {
		t.Fatalf("expected error")
	}
	var m LogMode
	if err := m.UnmarshalText([]byte("silence")); err != nil || m != ModeSilence {
		t.Fatalf("UnmarshalText: %v %v", m, err)
	}
}

func TestProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(ModeProd, &buf)
	log.Debug("hidden")
	log.Info("draw", slog.Int("value", 7))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("prod should skip debug, got %q", buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("json: %v", err)
	}
	if m["msg"] != "draw" || m["value"].(float64) != 7 {
		t.Fatalf("unexpected record: %v", m)
	}
}

type syncBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestAsyncDrainsOnClose(t *testing.T) {
	out := &syncBuf{}
	ah := NewAsyncHandler(slog.NewTextHandler(out, nil), 256)
	log := slog.New(ah).With(slog.String("session", "s1"))
	for i := 0; i < 100; i++ {
		log.Info("tick", slog.Int("i", i))
	}
	ah.Close()
	ah.Close()
	got := strings.Count(out.String(), "msg=tick")
	if got+int(ah.Dropped()) != 100 {
		t.Fatalf("written %d + dropped %d != 100", got, ah.Dropped())
	}
	if !strings.Contains(out.String(), "session=s1") {
		t.Fatalf("attrs lost: %s", out.String())
	}
	log.Info("late")
	if strings.Contains(out.String(), "late") || ah.Dropped() == 0 {
		t.Fatalf("records after Close must be dropped")
	}
}
