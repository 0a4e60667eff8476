package keytoolconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMergeKeepsDefaultsWhenUnset(t *testing.T) {
	dst := DefaultConfig()
	Merge(&dst, Config{LogLevel: "debug"})

	if dst.LogLevel != "debug" {
		t.Fatalf("expected logLevel=debug, got %q", dst.LogLevel)
	}
	if dst.LogFormat != "json" {
		t.Fatalf("unset logFormat must keep default, got %q", dst.LogFormat)
	}
	if dst.Verification.AttemptBurst != 5 {
		t.Fatalf("unset attemptBurst must keep default, got %d", dst.Verification.AttemptBurst)
	}
}

func TestMergeAppliesVerificationPolicy(t *testing.T) {
	dst := DefaultConfig()
	Merge(&dst, Config{
		Verification: VerificationConfig{
			AttemptBurst:    3,
			AttemptInterval: 90 * time.Second,
		},
	})

	if dst.Verification.AttemptBurst != 3 {
		t.Fatalf("expected attemptBurst=3, got %d", dst.Verification.AttemptBurst)
	}
	if dst.Verification.AttemptInterval != 90*time.Second {
		t.Fatalf("expected attemptInterval=90s, got %s", dst.Verification.AttemptInterval)
	}
}

func TestLoadFromPathReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keytool.yaml")
	raw := "logLevel: warn\noutputDir: /tmp/keys\nverification:\n  attemptBurst: 2\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected logLevel=warn, got %q", cfg.LogLevel)
	}
	if cfg.OutputDir != "/tmp/keys" {
		t.Fatalf("expected outputDir=/tmp/keys, got %q", cfg.OutputDir)
	}
	if cfg.Verification.AttemptBurst != 2 {
		t.Fatalf("expected attemptBurst=2, got %d", cfg.Verification.AttemptBurst)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("missing fields must keep defaults, got %q", cfg.LogFormat)
	}
}

func TestLoadFromPathFallsBackToDefaults(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg != DefaultConfig() {
		t.Fatalf("missing file must yield defaults, got %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NONMSG_LOG_LEVEL", "error")
	t.Setenv("NONMSG_OUTPUT_DIR", "/var/lib/nonmsg")

	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)

	if cfg.LogLevel != "error" {
		t.Fatalf("expected env logLevel=error, got %q", cfg.LogLevel)
	}
	if cfg.OutputDir != "/var/lib/nonmsg" {
		t.Fatalf("expected env outputDir, got %q", cfg.OutputDir)
	}
}
