package esasync

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Targets a Config may select.
const (
	TargetDatoCMS = "datocms"
	TargetSQLite  = "sqlite"
	TargetMemory  = "memory"
)

// Config holds all configuration of the sync service.
type Config struct {
	WebhookSecret          string `yaml:"webhook_secret"`           // ESA_WEBHOOK_SECRET
	EsaAPIToken            string `yaml:"esa_api_token"`            // ESA_API_TOKEN
	EsaTeam                string `yaml:"esa_team"`                 // ESA_TEAM
	PrivateCategoryPattern string `yaml:"private_category_regex"`   // ESA_PRIVATE_CATEGORY_REGEX
	EsaBaseURL             string `yaml:"esa_base_url"`             // default https://api.esa.io
	DatoCMSToken           string `yaml:"datocms_api_token"`        // DATOCMS_FULL_ACCESS_API_TOKEN
	DatoCMSPostItemTypeID  string `yaml:"datocms_post_item_id"`     // DATOCMS_POST_ITEM_ID
	DatoCMSBuildTriggerID  string `yaml:"datocms_build_trigger_id"` // DATOCMS_BUILD_TRIGGER_ID

	Target       string `yaml:"target"`        // ESASYNC_TARGET: datocms (default), sqlite or memory
	DatabasePath string `yaml:"database_path"` // DATABASE_PATH (default "data/esasync.db")
	SkipDeploy   bool   `yaml:"skip_deploy"`   // ESASYNC_SKIP_DEPLOY

	Addr     string `yaml:"addr"`      // ADDR (default ":3000")
	SiteName string `yaml:"site_name"` // SITE_NAME (default "esasync")
	SiteURL  string `yaml:"site_url"`  // SITE_URL (default "http://localhost:3000")

	AdminPassword string `yaml:"admin_password"` // ADMIN_PASSWORD; empty disables the admin console
	SessionSecret string `yaml:"session_secret"` // ADMIN_SESSION_SECRET
	CookieSecure  bool   `yaml:"cookie_secure"`  // COOKIE_SECURE

	PostCacheTTL     time.Duration `yaml:"post_cache_ttl"`     // default 5m
	WebhookRateLimit int           `yaml:"webhook_rate_limit"` // deliveries per IP per minute, default 60

	privateCategory *regexp.Regexp
}

func (c *Config) setDefaults() {
	if c.Target == "" {
		c.Target = TargetDatoCMS
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/esasync.db"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.SiteName == "" {
		c.SiteName = "esasync"
	}
	if c.SiteURL == "" {
		c.SiteURL = "http://localhost:3000"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.WebhookRateLimit == 0 {
		c.WebhookRateLimit = 60
	}
}

// LoadConfig builds a Config from, in increasing precedence: the YAML file at
// path (skipped when path is empty), the dotenv files (".env" when none is
// given; missing files are ignored and the real environment always wins) and
// the environment.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("esasync: read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("esasync: parse config %s: %w", path, err)
		}
	}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("esasync: load %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"ESA_WEBHOOK_SECRET", &c.WebhookSecret},
		{"ESA_API_TOKEN", &c.EsaAPIToken},
		{"ESA_TEAM", &c.EsaTeam},
		{"ESA_PRIVATE_CATEGORY_REGEX", &c.PrivateCategoryPattern},
		{"ESA_BASE_URL", &c.EsaBaseURL},
		{"DATOCMS_FULL_ACCESS_API_TOKEN", &c.DatoCMSToken},
		{"DATOCMS_POST_ITEM_ID", &c.DatoCMSPostItemTypeID},
		{"DATOCMS_BUILD_TRIGGER_ID", &c.DatoCMSBuildTriggerID},
		{"ESASYNC_TARGET", &c.Target},
		{"DATABASE_PATH", &c.DatabasePath},
		{"ADDR", &c.Addr},
		{"SITE_NAME", &c.SiteName},
		{"SITE_URL", &c.SiteURL},
		{"ADMIN_PASSWORD", &c.AdminPassword},
		{"ADMIN_SESSION_SECRET", &c.SessionSecret},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}
	bools := []struct {
		key string
		dst *bool
	}{
		{"COOKIE_SECURE", &c.CookieSecure},
		{"ESASYNC_SKIP_DEPLOY", &c.SkipDeploy},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("esasync: env variable %s: %w", b.key, err)
		}
		*b.dst = parsed
	}
	return nil
}

// Validate fills in defaults, then reports every missing setting at once and
// compiles the private category pattern.
func (c *Config) Validate() error {
	c.setDefaults()

	type setting struct{ key, val string }
	required := []setting{
		{"ESA_WEBHOOK_SECRET", c.WebhookSecret},
		{"ESA_API_TOKEN", c.EsaAPIToken},
		{"ESA_TEAM", c.EsaTeam},
		{"ESA_PRIVATE_CATEGORY_REGEX", c.PrivateCategoryPattern},
	}
	if c.Target == TargetDatoCMS {
		required = append(required,
			setting{"DATOCMS_FULL_ACCESS_API_TOKEN", c.DatoCMSToken},
			setting{"DATOCMS_POST_ITEM_ID", c.DatoCMSPostItemTypeID},
			setting{"DATOCMS_BUILD_TRIGGER_ID", c.DatoCMSBuildTriggerID},
		)
	}
	var msgs []string
	for _, r := range required {
		if strings.TrimSpace(r.val) == "" {
			msgs = append(msgs, fmt.Sprintf("env variable %s was not set.", r.key))
		}
	}
	switch c.Target {
	case TargetDatoCMS, TargetSQLite, TargetMemory:
	default:
		msgs = append(msgs, fmt.Sprintf("ESASYNC_TARGET %q is not one of datocms, sqlite, memory.", c.Target))
	}
	if c.AdminPassword != "" && c.SessionSecret == "" {
		msgs = append(msgs, "env variable ADMIN_SESSION_SECRET was not set.")
	}
	if len(msgs) > 0 {
		return errors.New(strings.Join(msgs, " "))
	}

	re, err := regexp.Compile(c.PrivateCategoryPattern)
	if err != nil {
		return fmt.Errorf("esasync: ESA_PRIVATE_CATEGORY_REGEX: %w", err)
	}
	c.privateCategory = re
	return nil
}

// PrivateCategory returns the compiled private category pattern. It is nil
// until Validate succeeds.
func (c *Config) PrivateCategory() *regexp.Regexp {
	return c.privateCategory
}

// AdminEnabled reports whether the admin console is served.
func (c *Config) AdminEnabled() bool {
	return c.AdminPassword != ""
}
