package esasync

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		WebhookSecret:          "secret",
		EsaAPIToken:            "token",
		EsaTeam:                "docs",
		PrivateCategoryPattern: "^Private(/.+)?$",
		Target:                 TargetMemory,
	}
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Addr != ":3000" || cfg.SiteName != "esasync" || cfg.DatabasePath != "data/esasync.db" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.PostCacheTTL != 5*time.Minute || cfg.WebhookRateLimit != 60 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.PrivateCategory() == nil || !cfg.PrivateCategory().MatchString("Private/notes") {
		t.Error("expected compiled private category pattern")
	}
	if cfg.AdminEnabled() {
		t.Error("admin should be disabled without a password")
	}
}

func TestValidateReportsEveryMissingSetting(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	want := "env variable ESA_WEBHOOK_SECRET was not set. " +
		"env variable ESA_API_TOKEN was not set. " +
		"env variable ESA_TEAM was not set. " +
		"env variable ESA_PRIVATE_CATEGORY_REGEX was not set. " +
		"env variable DATOCMS_FULL_ACCESS_API_TOKEN was not set. " +
		"env variable DATOCMS_POST_ITEM_ID was not set. " +
		"env variable DATOCMS_BUILD_TRIGGER_ID was not set."
	if err.Error() != want {
		t.Errorf("got %q\nwant %q", err.Error(), want)
	}
}

func TestValidateDatoCMSKeysOnlyForDatoCMS(t *testing.T) {
	cfg := validConfig()
	cfg.Target = TargetSQLite
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sqlite target should not need DatoCMS keys: %v", err)
	}

	cfg = validConfig()
	cfg.Target = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATOCMS_FULL_ACCESS_API_TOKEN") {
		t.Errorf("expected missing DatoCMS token, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown target", func(c *Config) { c.Target = "wordpress" }, `ESASYNC_TARGET "wordpress"`},
		{"admin without session secret", func(c *Config) { c.AdminPassword = "pw" }, "ADMIN_SESSION_SECRET"},
		{"bad pattern", func(c *Config) { c.PrivateCategoryPattern = "(" }, "ESA_PRIVATE_CATEGORY_REGEX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Config{EsaTeam: "from-yaml", Addr: ":8080"}
	err := cfg.applyEnv(envLookup(map[string]string{
		"ESA_TEAM":            "docs",
		"ESASYNC_TARGET":      "sqlite",
		"COOKIE_SECURE":       "true",
		"ESASYNC_SKIP_DEPLOY": "",
	}))
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.EsaTeam != "docs" || cfg.Target != TargetSQLite || !cfg.CookieSecure {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Addr != ":8080" || cfg.SkipDeploy {
		t.Errorf("unset keys should keep their values: %+v", cfg)
	}

	err = cfg.applyEnv(envLookup(map[string]string{"COOKIE_SECURE": "maybe"}))
	if err == nil || !strings.Contains(err.Error(), "COOKIE_SECURE") {
		t.Errorf("expected bool parse error, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "esasync.yaml")
	yamlBody := "esa_team: yaml-team\nesa_api_token: yaml-token\ntarget: sqlite\npost_cache_ttl: 30s\n"
	if err := os.WriteFile(yamlPath, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envPath, []byte("ESASYNC_TEST_DOTENV_ONLY=1\nESA_API_TOKEN=dotenv-token\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ESA_TEAM", "env-team")
	t.Setenv("ESA_API_TOKEN", "env-token")
	t.Cleanup(func() { os.Unsetenv("ESASYNC_TEST_DOTENV_ONLY") })

	cfg, err := LoadConfig(yamlPath, envPath, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.EsaTeam != "env-team" {
		t.Errorf("environment should override yaml, got %q", cfg.EsaTeam)
	}
	if cfg.EsaAPIToken != "env-token" {
		t.Errorf("environment should win over dotenv, got %q", cfg.EsaAPIToken)
	}
	if os.Getenv("ESASYNC_TEST_DOTENV_ONLY") != "1" {
		t.Error("expected dotenv file to be loaded")
	}
	if cfg.Target != TargetSQLite || cfg.PostCacheTTL != 30*time.Second {
		t.Errorf("yaml not applied: %+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("expected error for missing yaml file")
	}
}
