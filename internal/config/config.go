package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
		SecureCookies  bool     `yaml:"secureCookies"`
	} `yaml:"server"`
	Upstream struct {
		BaseURL string `yaml:"baseURL"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		// Source is where quiz content comes from: "api" (default) or "postgres".
		Source       string `yaml:"source"`
		TTL          string `yaml:"ttl"`
		AdvanceDelay string `yaml:"advanceDelay"`
	} `yaml:"quiz"`
	Session struct {
		Secret     string `yaml:"secret"`
		CookieName string `yaml:"cookieName"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	I18n struct {
		Lang string `yaml:"lang"`
	} `yaml:"i18n"`
}

// Load reads YAML config from path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Upstream.BaseURL = "http://localhost:8081"
	cfg.Upstream.Timeout = "15s"
	cfg.Quiz.Source = "api"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.AdvanceDelay = "150ms"
	cfg.Session.TTL = "2h"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.I18n.Lang = "ko"
	return cfg
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
