package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.Engine.ScaleFactor != 1e-6 {
		t.Errorf("scale factor = %g", cfg.Engine.ScaleFactor)
	}
	if cfg.Engine.DurationMs != 20000 {
		t.Errorf("duration = %g", cfg.Engine.DurationMs)
	}
	if cfg.Stream.MaxFPS != 60 {
		t.Errorf("max fps = %d", cfg.Stream.MaxFPS)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http_addr: ":9090"
engine:
  scale_factor: 0.00001
  duration_ms: 30000
stream:
  max_fps: 30
  trust_proxy: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.Engine.ScaleFactor != 1e-5 {
		t.Errorf("scale factor = %g", cfg.Engine.ScaleFactor)
	}
	if cfg.Engine.DurationMs != 30000 {
		t.Errorf("duration = %g", cfg.Engine.DurationMs)
	}
	if cfg.Stream.MaxFPS != 30 || !cfg.Stream.TrustProxy {
		t.Errorf("stream = %+v", cfg.Stream)
	}
	// Untouched keys keep their defaults.
	if cfg.Engine.OrbitPathPoints != 512 {
		t.Errorf("orbit path points = %d", cfg.Engine.OrbitPathPoints)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml", testLogger()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("METEORSIM_HTTP_ADDR", ":7070")
	t.Setenv("METEORSIM_DURATION_MS", "15000")
	t.Setenv("METEORSIM_STREAM_MAX_FPS", "24")

	cfg, err := Load("", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.Engine.DurationMs != 15000 {
		t.Errorf("duration = %g", cfg.Engine.DurationMs)
	}
	if cfg.Stream.MaxFPS != 24 {
		t.Errorf("max fps = %d", cfg.Stream.MaxFPS)
	}
}

func TestInvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("METEORSIM_DURATION_MS", "banana")
	t.Setenv("METEORSIM_SCALE_FACTOR", "-1")
	t.Setenv("METEORSIM_STREAM_MAX_FPS", "9999")

	cfg, err := Load("", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.DurationMs != 20000 {
		t.Errorf("duration = %g, want default", cfg.Engine.DurationMs)
	}
	if cfg.Engine.ScaleFactor != 1e-6 {
		t.Errorf("scale factor = %g, want default", cfg.Engine.ScaleFactor)
	}
	if cfg.Stream.MaxFPS != 60 {
		t.Errorf("max fps = %d, want default", cfg.Stream.MaxFPS)
	}
}

func TestValidationRejectsBadScale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  scale_factor: -2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testLogger()); err == nil {
		t.Error("expected validation error")
	}
}
