package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/zintix-labs/drawlab/stats"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func parseValues(t *testing.T, line string) []int {
	t.Helper()
	var vs []int
	for _, f := range strings.Split(strings.TrimSpace(line), ", ") {
		v, err := strconv.Atoi(f)
		if err != nil {
			t.Fatalf("bad output %q", line)
		}
		vs = append(vs, v)
	}
	return vs
}

func TestDrawNoRepeat(t *testing.T) {
	out, _, err := run(t, "", "draw", "-r", "1-10", "-n", "10", "--seed", "3")
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	vs := parseValues(t, out)
	seen := map[int]bool{}
	for _, v := range vs {
		if v < 1 || v > 10 || seen[v] {
			t.Fatalf("not a permutation: %v", vs)
		}
		seen[v] = true
	}
	again, _, _ := run(t, "", "draw", "-r", "1-10", "-n", "10", "--seed", "3")
	if again != out {
		t.Fatalf("same seed must reproduce: %q vs %q", out, again)
	}
}

func TestDrawRejects(t *testing.T) {
	cases := [][]string{
		{"draw", "-r", "10-1"},
		{"draw", "-r", "x"},
		{"draw", "-n", "0"},
		{"draw", "--policy", "sometimes"},
		{"draw", "--prng", "lcg"},
		{"draw", "--session", "abc"},
		{"draw", "--delay", "10"},
	}
	for _, args := range cases {
		if _, _, err := run(t, "", args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestDrawContinuesStoredSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "draws.db")
	out, errOut, err := run(t, "", "draw", "-r", "1-6", "-n", "4", "--db", db, "--print-session")
	if err != nil {
		t.Fatalf("first draw: %v", err)
	}
	id := strings.TrimSpace(errOut)
	first := parseValues(t, out)

	out, _, err = run(t, "", "draw", "-n", "2", "--db", db, "--session", id)
	if err != nil {
		t.Fatalf("continue: %v", err)
	}
	seen := map[int]bool{}
	for _, v := range append(first, parseValues(t, out)...) {
		if seen[v] {
			t.Fatalf("stored cycle must not repeat: %v + %s", first, out)
		}
		seen[v] = true
	}
	if len(seen) != 6 {
		t.Fatalf("six draws must cover 1-6")
	}
}

func TestDrawReveal(t *testing.T) {
	out, _, err := run(t, "", "draw", "-r", "1-3", "-n", "1", "--reveal", "--delay", "500", "--seed", "1")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !strings.Contains(out, "\r") || !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected rolling output, got %q", out)
	}

	out, _, err = run(t, "\n", "draw", "-r", "1-3", "-n", "1", "--reveal", "--manual")
	if err != nil {
		t.Fatalf("manual reveal: %v", err)
	}
	frames := strings.Split(strings.TrimSuffix(out, "\n"), "\r")
	last, err := strconv.Atoi(strings.TrimSpace(frames[len(frames)-1]))
	if err != nil || last < 1 || last > 3 {
		t.Fatalf("bad final value in %q", out)
	}
}

func TestAuditJSON(t *testing.T) {
	out, _, err := run(t, "", "audit", "-r", "1-6", "-n", "6000", "--policy", "allow", "-f", "json", "--seed", "5")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var rep stats.AuditReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rep.Draws != 6000 || rep.Size != 6 || rep.Seed != 5 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestAuditTextAndProfile(t *testing.T) {
	dir := t.TempDir()
	out, errOut, err := run(t, "", "audit", "-r", "1-55", "-n", "5500", "--pprof", "heap", "--pprof-dir", dir)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out, "Uniformity Audit") || !strings.Contains(out, "draws/sec") {
		t.Fatalf("unexpected text report:\n%s", out)
	}
	if !strings.Contains(errOut, "heap.pprof") {
		t.Fatalf("profile path not reported: %q", errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "heap.pprof")); err != nil {
		t.Fatalf("profile missing: %v", err)
	}
	for _, args := range [][]string{
		{"audit", "--pprof", "trace"},
		{"audit", "-f", "csv"},
		{"audit", "-w", "0"},
		{"audit", "--fail-below", "2"},
	} {
		if _, _, err := run(t, "", args...); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}

func TestSettingsCommands(t *testing.T) {
	out, _, err := run(t, "", "settings", "print")
	if err != nil || !strings.Contains(out, "range: 1-55") || !strings.Contains(out, "policy: norepeat") {
		t.Fatalf("print: %v\n%s", err, out)
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	_ = os.WriteFile(good, []byte("range: 5-9\nmanual: true\n"), 0o644)
	out, _, err = run(t, "", "settings", "validate", good)
	if err != nil || !strings.Contains(out, "range: 5-9") || !strings.Contains(out, "delay_ms: 750") {
		t.Fatalf("validate: %v\n%s", err, out)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("range: 5-9\ncolour: red\n"), 0o644)
	if _, _, err := run(t, "", "settings", "validate", bad); err == nil {
		t.Fatalf("unknown key must fail")
	}
	if _, _, err := run(t, "", "settings", "validate", filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file must fail")
	}
}
