package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DANMAKU_CONFIG", "CDN_BASE_URL", "DB_DRIVER", "DB_DSN", "HTTP_ADDR", "ENV",
		"CORS_ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"WINDOW_CAP", "METADATA_TIMEOUT", "METADATA_RETRIES",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DBDriver != "pgx" || cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.WindowCap != 100 || cfg.MetadataRetries != 2 || cfg.MetadataTimeout != 10*time.Second {
		t.Errorf("unexpected replay defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to require CDN_BASE_URL")
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CDN_BASE_URL", "https://cdn.example.com")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:test.db")
	t.Setenv("WINDOW_CAP", "50")
	t.Setenv("METADATA_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBDsn != "file:test.db" || cfg.WindowCap != 50 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.MetadataTimeout != 3*time.Second || cfg.RateLimitRPS != 2.5 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadInvalidNumbers(t *testing.T) {
	tests := []struct{ key, value string }{
		{"WINDOW_CAP", "many"},
		{"METADATA_TIMEOUT", "soon"},
		{"RATE_LIMIT_RPS", "fast"},
		{"RATE_LIMIT_BURST", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadTOMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "danmaku.toml")
	body := `cdn_base_url = "https://file.example.com"
window_cap = 25
metadata_timeout = "4s"
cors_allowed_origins = ["https://x.example"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t)
	t.Setenv("DANMAKU_CONFIG", path)
	t.Setenv("WINDOW_CAP", "30")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CDNBaseURL != "https://file.example.com" {
		t.Errorf("CDNBaseURL = %q", cfg.CDNBaseURL)
	}
	if cfg.WindowCap != 30 {
		t.Errorf("env should win over file, WindowCap = %d", cfg.WindowCap)
	}
	if cfg.MetadataTimeout != 4*time.Second {
		t.Errorf("MetadataTimeout = %v", cfg.MetadataTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Errorf("origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadMissingTOML(t *testing.T) {
	clearEnv(t)
	t.Setenv("DANMAKU_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := defaults()
		c.CDNBaseURL = "http://cdn.local:9000/"
		return c
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative cdn", func(c *Config) { c.CDNBaseURL = "/cdn" }},
		{"ftp cdn", func(c *Config) { c.CDNBaseURL = "ftp://cdn.local" }},
		{"bad driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"zero cap", func(c *Config) { c.WindowCap = 0 }},
		{"zero timeout", func(c *Config) { c.MetadataTimeout = 0 }},
		{"negative retries", func(c *Config) { c.MetadataRetries = -1 }},
		{"negative rps", func(c *Config) { c.RateLimitRPS = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	c := defaults()
	if c.IsProduction() {
		t.Error("dev reported as production")
	}
	c.Env = "production"
	if !c.IsProduction() {
		t.Error("production not detected")
	}
}
