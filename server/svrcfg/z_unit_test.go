package svrcfg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/zintix-labs/drawlab/server/logger"
	"github.com/zintix-labs/drawlab/settings"
)

func TestLoadEnvDefaults(t *testing.T) {
	e, err := LoadEnvFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadEnvFrom: %v", err)
	}
	if e.Addr != ":5808" || e.LogMode != logger.ModeDev || e.DB != "" || e.Seed != nil ||
		e.PRNG != "pcg64" || e.RequestTimeout != 5*time.Second || e.AuditMaxDraws != 1000000 {
		t.Fatalf("unexpected defaults: %+v", e)
	}
}

func TestLoadEnvValues(t *testing.T) {
	e, err := LoadEnvFrom(map[string]string{
		"DRAWLAB_ADDR":            "127.0.0.1:9000",
		"DRAWLAB_LOG_MODE":        "prod",
		"DRAWLAB_SEED":            "42",
		"DRAWLAB_PRNG":            "pcg32",
		"DRAWLAB_REQUEST_TIMEOUT": "250ms",
	})
	if err != nil {
		t.Fatalf("LoadEnvFrom: %v", err)
	}
	if e.Addr != "127.0.0.1:9000" || e.LogMode != logger.ModeProd || e.Seed == nil || *e.Seed != 42 ||
		e.PRNG != "pcg32" || e.RequestTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected env: %+v", e)
	}
}

func TestLoadEnvRejects(t *testing.T) {
	bad := []map[string]string{
		{"DRAWLAB_LOG_MODE": "loud"},
		{"DRAWLAB_SEED": "abc"},
		{"DRAWLAB_AUDIT_MAX_DRAWS": "0"},
		{"DRAWLAB_REQUEST_TIMEOUT": "-1s"},
	}
	for _, vars := range bad {
		if _, err := LoadEnvFrom(vars); err == nil {
			t.Fatalf("%v: expected error", vars)
		}
	}
}

func TestValidRequiresLab(t *testing.T) {
	sc := &SvrCfg{}
	if err := sc.Valid(); err == nil {
		t.Fatalf("expected error without lab")
	}
	if sc.Log == nil {
		t.Fatalf("Valid should fill a silent logger")
	}
}

func TestBuildMemoryAndSqlite(t *testing.T) {
	ctx := context.Background()
	seed := int64(9)
	e := Env{LogMode: logger.ModeSilence, Seed: &seed, PRNG: "pcg64", RequestTimeout: time.Second, AuditMaxDraws: 10}
	sc, cleanup, err := Build(ctx, e)
	if err != nil {
		t.Fatalf("Build mem: %v", err)
	}
	if sc.Lab.Seed() != 9 || sc.Addr != ":5808" {
		t.Fatalf("unexpected cfg: seed=%d addr=%s", sc.Lab.Seed(), sc.Addr)
	}
	cleanup()

	e.DB = filepath.Join(t.TempDir(), "draw.db")
	sc, cleanup, err = Build(ctx, e)
	if err != nil {
		t.Fatalf("Build sqlite: %v", err)
	}
	sess, err := sc.Lab.NewSession(ctx, settings.Default())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := sess.Draw(ctx); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	cleanup()

	e.PRNG = "mt19937"
	if _, _, err := Build(ctx, e); err == nil {
		t.Fatalf("expected unknown prng error")
	}
}
