// Package config loads service configuration from an optional YAML file with
// environment-variable overrides (METEORSIM_*). Invalid override values fall
// back to the configured default with a warning; the effective configuration
// is logged at startup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root service configuration.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	AuthToken string `yaml:"auth_token"`

	// SourceURL optionally points at a physics-service payload fetched once
	// at startup.
	SourceURL string `yaml:"source_url"`

	Engine EngineConfig `yaml:"engine"`
	Stream StreamConfig `yaml:"stream"`
}

// EngineConfig holds the trajectory engine tunables.
type EngineConfig struct {
	// ScaleFactor is display units per kilometer.
	ScaleFactor float64 `yaml:"scale_factor"`

	// MetersThreshold is the unit classification threshold; zero keeps the
	// built-in default.
	MetersThreshold float64 `yaml:"meters_threshold"`

	OrbitPathPoints int     `yaml:"orbit_path_points"`
	DurationMs      float64 `yaml:"duration_ms"`

	// IdleRate is the idle fallback speed in simulated seconds per wall
	// second (default: one day per second).
	IdleRate float64 `yaml:"idle_rate"`
}

// StreamConfig holds the SSE streaming tunables.
type StreamConfig struct {
	MaxConcurrentPerIP int  `yaml:"max_concurrent_per_ip"`
	KeepaliveSeconds   int  `yaml:"keepalive_interval_seconds"`
	MaxFPS             int  `yaml:"max_fps"`
	TrustProxy         bool `yaml:"trust_proxy"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Engine: EngineConfig{
			ScaleFactor:     1e-6, // 1 display unit = 1e6 km; 1 AU ≈ 149.6 units
			OrbitPathPoints: 512,
			DurationMs:      20000,
			IdleRate:        86400, // one simulated day per wall second
		},
		Stream: StreamConfig{
			MaxConcurrentPerIP: 10,
			KeepaliveSeconds:   30,
			MaxFPS:             60,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg, logger)

	if cfg.Engine.ScaleFactor <= 0 {
		return cfg, fmt.Errorf("engine scale_factor must be positive, got %g", cfg.Engine.ScaleFactor)
	}
	if cfg.Engine.DurationMs <= 0 {
		return cfg, fmt.Errorf("engine duration_ms must be positive, got %g", cfg.Engine.DurationMs)
	}

	logger.Info("configuration loaded",
		"http_addr", cfg.HTTPAddr,
		"source_url", cfg.SourceURL,
		"auth_enabled", cfg.AuthToken != "",
		"scale_factor", cfg.Engine.ScaleFactor,
		"duration_ms", cfg.Engine.DurationMs,
		"orbit_path_points", cfg.Engine.OrbitPathPoints,
		"stream_max_concurrent_per_ip", cfg.Stream.MaxConcurrentPerIP,
		"stream_max_fps", cfg.Stream.MaxFPS,
	)

	return cfg, nil
}

func applyEnv(cfg *Config, logger *slog.Logger) {
	if v := os.Getenv("METEORSIM_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("METEORSIM_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("METEORSIM_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	envFloat(logger, "METEORSIM_SCALE_FACTOR", &cfg.Engine.ScaleFactor, func(f float64) bool { return f > 0 })
	envFloat(logger, "METEORSIM_METERS_THRESHOLD", &cfg.Engine.MetersThreshold, func(f float64) bool { return f > 0 })
	envFloat(logger, "METEORSIM_DURATION_MS", &cfg.Engine.DurationMs, func(f float64) bool { return f > 0 })
	envFloat(logger, "METEORSIM_IDLE_RATE", &cfg.Engine.IdleRate, func(f float64) bool { return f > 0 })
	envInt(logger, "METEORSIM_ORBIT_PATH_POINTS", &cfg.Engine.OrbitPathPoints, func(n int) bool { return n >= 8 })
	envInt(logger, "METEORSIM_STREAM_MAX_CONCURRENT", &cfg.Stream.MaxConcurrentPerIP, func(n int) bool { return n >= 1 })
	envInt(logger, "METEORSIM_STREAM_KEEPALIVE_SECONDS", &cfg.Stream.KeepaliveSeconds, func(n int) bool { return n >= 1 })
	envInt(logger, "METEORSIM_STREAM_MAX_FPS", &cfg.Stream.MaxFPS, func(n int) bool { return n >= 1 && n <= 240 })

	if v := os.Getenv("METEORSIM_STREAM_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid METEORSIM_STREAM_TRUST_PROXY value, keeping default", "value", v)
		} else {
			cfg.Stream.TrustProxy = b
		}
	}
}

func envFloat(logger *slog.Logger, key string, dst *float64, valid func(float64) bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !valid(f) {
		logger.Warn("invalid env override, keeping default", "key", key, "value", v, "default", *dst)
		return
	}
	*dst = f
}

func envInt(logger *slog.Logger, key string, dst *int, valid func(int) bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || !valid(n) {
		logger.Warn("invalid env override, keeping default", "key", key, "value", v, "default", *dst)
		return
	}
	*dst = n
}
