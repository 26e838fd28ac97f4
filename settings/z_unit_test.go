package settings

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/zintix-labs/drawlab/draw"
	"github.com/zintix-labs/drawlab/errs"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default should be valid: %v", err)
	}
	r, err := s.ParsedRange()
	if err != nil || r != draw.DefaultRange {
		t.Fatalf("default range: got %v err=%v", r, err)
	}
	if s.Delay() != 750*time.Millisecond {
		t.Fatalf("default delay: got %v", s.Delay())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Settings){
		"range":        func(s *Settings) { s.Range = "abc-5" },
		"range bounds": func(s *Settings) { s.Range = "9-1" },
		"policy":       func(s *Settings) { s.Policy = draw.Policy(9) },
		"delay":        func(s *Settings) { s.DelayMs = 600 },
		"roll color":   func(s *Settings) { s.RollColor = "red" },
		"commit color": func(s *Settings) { s.CommitColor = "#12345" },
	}
	for name, mut := range cases {
		s := Default()
		mut(&s)
		err := s.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn {
			t.Fatalf("%s: expected warn level, got %v", name, err)
		}
	}
}

func TestFromYAML(t *testing.T) {
	s, err := FromYAML([]byte("range: 10-20\npolicy: allow\ndelay_ms: 1500\ncommit_color: '#fff'\n"))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if s.Range != "10-20" || s.Policy != draw.AllowRepeat || s.DelayMs != 1500 || s.CommitColor != "#fff" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if s.RollColor != Default().RollColor {
		t.Fatalf("missing field should keep default, got %q", s.RollColor)
	}
}

func TestFromYAMLEmptyIsDefault(t *testing.T) {
	s, err := FromYAML(nil)
	if err != nil {
		t.Fatalf("FromYAML(nil): %v", err)
	}
	if s != Default() {
		t.Fatalf("expected default, got %+v", s)
	}
}

func TestFromYAMLRejectsUnknownField(t *testing.T) {
	if _, err := FromYAML([]byte("rnage: 1-5\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestFromYAMLRejectsInvalidValue(t *testing.T) {
	_, err := FromYAML([]byte("range: 0-1000000\n"))
	if !errors.Is(err, draw.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if _, err := FromYAML([]byte("policy: sometimes\n")); err == nil {
		t.Fatalf("expected bad policy error")
	}
}

func TestFromJSON(t *testing.T) {
	s, err := FromJSON([]byte(`{"range":"1-3","manual":true}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if s.Range != "1-3" || !s.Manual || s.Policy != draw.NoRepeat {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if _, err := FromJSON([]byte(`{"colour":"#000"}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	in := Default()
	in.Policy = draw.AllowRepeat
	in.Manual = true
	var buf bytes.Buffer
	if err := in.WriteYAML(&buf); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("policy: allow")) {
		t.Fatalf("policy should be written as text:\n%s", buf.String())
	}
	out, err := FromYAML(buf.Bytes())
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestKV(t *testing.T) {
	in := Default()
	in.Range = "5-9"
	in.DelayMs = 5000
	out, err := FromKV(in.ToKV())
	if err != nil {
		t.Fatalf("FromKV: %v", err)
	}
	if out != in {
		t.Fatalf("kv mismatch: %+v != %+v", out, in)
	}

	partial, err := FromKV(map[string]string{KeyManual: "true", "unknown": "x"})
	if err != nil {
		t.Fatalf("FromKV partial: %v", err)
	}
	if !partial.Manual || partial.Range != Default().Range {
		t.Fatalf("partial kv: %+v", partial)
	}

	bad := []map[string]string{
		{KeyDelayMs: "fast"},
		{KeyManual: "perhaps"},
		{KeyPolicy: "?"},
		{KeyRange: "1"},
	}
	for _, kv := range bad {
		if _, err := FromKV(kv); err == nil {
			t.Fatalf("expected error for %v", kv)
		}
	}
}
