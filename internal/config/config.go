package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment variable name
	EnvPrefix = "LINKDECK_"
	// FileEnv names the variable pointing at an optional YAML config file
	FileEnv = EnvPrefix + "CONFIG_FILE"
)

type Config struct {
	// Upstream linkding API
	APIURL          string        `yaml:"api_url" env:"API_URL"`                 // ex: "https://links.domain.ext/api"
	APIToken        string        `yaml:"api_token" env:"API_TOKEN"`             // linkding REST token
	UpstreamTimeout time.Duration `yaml:"upstream_timeout" env:"UPSTREAM_TIMEOUT"` // 0 => transport default

	InitialPageSize    int `yaml:"initial_page_size" env:"INITIAL_PAGE_SIZE"`       // first fetchAll page (default: 500)
	BatchSize          int `yaml:"batch_size" env:"BATCH_SIZE"`                     // follow-up batch size (default: 200)
	MaxParallelBatches int `yaml:"max_parallel_batches" env:"MAX_PARALLEL_BATCHES"` // concurrent batches (default: 8)
	TagPageSize        int `yaml:"tag_page_size" env:"TAG_PAGE_SIZE"`               // tag listing page size (default: 1000)

	// Server settings
	ListenPort      string        `yaml:"listen_port" env:"LISTEN_PORT"`           // ex: ":8080"
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"` // ex: 5s
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`   // per-request handler budget

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`   // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `yaml:"pretty_log" env:"PRETTY_LOG"` // true => zap dev (color), false => zap prod (JSON)

	// Retrieval cache
	CacheTTL           time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`                       // entry lifetime (default: 2m)
	CacheSweepInterval time.Duration `yaml:"cache_sweep_interval" env:"CACHE_SWEEP_INTERVAL"` // eviction period (default: 1m)
	WarmInterval       time.Duration `yaml:"warm_interval" env:"WARM_INTERVAL"`               // proactive refresh, 0 = off

	// API output
	PageSize    int    `yaml:"page_size" env:"PAGE_SIZE"`         // default /api/bookmarks limit
	MaxPageSize int    `yaml:"max_page_size" env:"MAX_PAGE_SIZE"` // upper bound for limit
	Locale      string `yaml:"locale" env:"LOCALE"`               // BCP-47 tag used for collation

	// Access restrictions
	AllowedHosts []string `yaml:"allowed_hosts" env:"ALLOWED_HOSTS"` // optional, restrict access to specific Host headers
	AllowedCIDRS []string `yaml:"allowed_cidrs" env:"ALLOWED_CIDRS"` // optional, restrict ops routes to IPs/CIDRs
	CORSOrigins  []string `yaml:"cors_origins" env:"CORS_ORIGINS"`   // optional, browser origins allowed on /api
	TrustProxy   bool     `yaml:"trust_proxy" env:"TRUST_PROXY"`     // true => trust X-Forwarded-For headers
	RateBurst    int      `yaml:"rate_burst" env:"RATE_BURST"`       // per-IP bucket size, 0 = no limit
	RatePerMin   int      `yaml:"rate_per_min" env:"RATE_PER_MIN"`   // per-IP refill rate

	Redis Redis `yaml:"redis" envPrefix:"REDIS_"`

	// Lang is Locale parsed by Validate
	Lang language.Tag `yaml:"-"`
}

// Redis is optional: an empty Addr disables the shared snapshot store.
type Redis struct {
	Addr           string        `yaml:"addr" env:"ADDR"`         // ex: "localhost:6379"
	Username       string        `yaml:"username" env:"USERNAME"` // optional
	Password       string        `yaml:"password" env:"PASSWORD"` // optional
	DB             int           `yaml:"db" env:"DB"`
	DialTimeout    time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	PoolSize       int           `yaml:"pool_size" env:"POOL_SIZE"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"` // total time to retry connecting
	RetryInterval  time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL"`   // initial wait, grows exponentially
	MaxWait        time.Duration `yaml:"max_wait" env:"MAX_WAIT"`               // max wait between retries
	PingTimeout    time.Duration `yaml:"ping_timeout" env:"PING_TIMEOUT"`
	WarnThreshold  int           `yaml:"warn_threshold" env:"WARN_THRESHOLD"` // warn after this many attempts
}

// Enabled reports whether a Redis address is configured
func (r Redis) Enabled() bool {
	return r.Addr != ""
}

// ConfigurationError means linkdeck cannot start with the given settings.
type ConfigurationError struct {
	Missing []string // required settings that were not provided
	Reason  string   // other validation failure
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

// Default returns the built-in settings, before any file or environment overlay.
func Default() *Config {
	return &Config{
		InitialPageSize:    500,
		BatchSize:          200,
		MaxParallelBatches: 8,
		TagPageSize:        1000,

		ListenPort:      ":8080",
		ShutdownTimeout: 5 * time.Second,
		RequestTimeout:  30 * time.Second,

		LogLevel:  "info",
		PrettyLog: true,

		CacheTTL:           2 * time.Minute,
		CacheSweepInterval: time.Minute,

		PageSize:    20,
		MaxPageSize: 500,
		Locale:      "en",

		RateBurst:  60,
		RatePerMin: 120,

		Redis: Redis{
			DialTimeout:    5 * time.Second,
			ReadTimeout:    3 * time.Second,
			WriteTimeout:   3 * time.Second,
			PoolSize:       10,
			ConnectTimeout: 30 * time.Second,
			RetryInterval:  2 * time.Second,
			MaxWait:        10 * time.Second,
			PingTimeout:    5 * time.Second,
			WarnThreshold:  3,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// $LINKDECK_CONFIG_FILE when path is empty), then LINKDECK_* variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	cfg.AllowedHosts = splitAndTrim(cfg.AllowedHosts)
	cfg.AllowedCIDRS = splitAndTrim(cfg.AllowedCIDRS)
	cfg.CORSOrigins = splitAndTrim(cfg.CORSOrigins)
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg, nil
}

// Validate checks required settings and value ranges and resolves Lang.
func (c *Config) Validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, EnvPrefix+"API_URL")
	}
	if c.APIToken == "" {
		missing = append(missing, EnvPrefix+"API_TOKEN")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigurationError{Reason: fmt.Sprintf("api_url must be an absolute URL, got %q", c.APIURL)}
	}

	for name, v := range map[string]int{
		"initial_page_size":    c.InitialPageSize,
		"batch_size":           c.BatchSize,
		"max_parallel_batches": c.MaxParallelBatches,
		"tag_page_size":        c.TagPageSize,
		"page_size":            c.PageSize,
		"max_page_size":        c.MaxPageSize,
	} {
		if v <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("%s must be > 0, got %d", name, v)}
		}
	}
	if c.PageSize > c.MaxPageSize {
		return &ConfigurationError{Reason: fmt.Sprintf("page_size (%d) exceeds max_page_size (%d)", c.PageSize, c.MaxPageSize)}
	}
	if c.CacheTTL <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("cache_ttl must be > 0, got %v", c.CacheTTL)}
	}
	if c.RateBurst < 0 || c.RatePerMin < 0 {
		return &ConfigurationError{Reason: "rate_burst and rate_per_min must be >= 0"}
	}

	lang, err := language.Parse(c.Locale)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid locale %q: %v", c.Locale, err)}
	}
	c.Lang = lang

	return nil
}

// Redacted returns a copy that is safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.APIToken != "" {
		cp.APIToken = "***REDACTED***"
	}
	if cp.Redis.Password != "" {
		cp.Redis.Password = "***REDACTED***"
	}
	if cp.Redis.Username != "" {
		cp.Redis.Username = "***REDACTED***"
	}
	return cp
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("failed to read config file: %v", err)}
	}

	// Strip template placeholders ({{...}}) left by deployment tooling.
	// The matching environment variable is expected to provide the value.
	data = templateVar.ReplaceAll(data, []byte(`""`))

	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("failed to parse config file: %v", err)}
	}
	return nil
}

func splitAndTrim(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	parts := make([]string, 0, len(in))
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(part)
			// Remove surrounding quotes if present
			trimmed = strings.Trim(trimmed, `"'`)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}
