package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config is the handheld's runtime configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Camera  CameraConfig  `koanf:"camera"`
	Haptics HapticsConfig `koanf:"haptics"`
}

type ServerConfig struct {
	URL   string `koanf:"url"`
	Actor string `koanf:"actor"`
}

type CameraConfig struct {
	// SpoolDir is where the camera daemon drops frame grabs.
	SpoolDir string `koanf:"spool_dir"`
	FPS      int    `koanf:"fps"`
}

type HapticsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// loadConfig reads the YAML config file (if present), then overrides with
// PICKPDA_* environment variables, then fills defaults.
//
// Environment variables map section_field, for example:
//
//	PICKPDA_SERVER_URL    -> server.url
//	PICKPDA_CAMERA_FPS    -> camera.fps
func loadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("PICKPDA_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "PICKPDA_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.URL == "" {
		cfg.Server.URL = "http://localhost:8080"
	}
	if cfg.Server.Actor == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "pda"
		}
		cfg.Server.Actor = host
	}
	if cfg.Camera.SpoolDir == "" {
		cfg.Camera.SpoolDir = "/var/spool/pickpda/frames"
	}
	if cfg.Camera.FPS <= 0 {
		cfg.Camera.FPS = 30
	}
}

func (c Config) validate() error {
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server.url must be an http(s) URL, got %q", c.Server.URL)
	}
	if c.Camera.FPS > 120 {
		return fmt.Errorf("camera.fps %d is unreasonably high", c.Camera.FPS)
	}
	return nil
}
