package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"feedsieve/internal/apperr"
	"feedsieve/internal/domain"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	configPathEnv = "FEEDSIEVE_CONFIG"
)

// Config is the whole feedsieve configuration file.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Fetch    FetchConfig    `yaml:"fetch"`
	LLM      LLMConfig      `yaml:"llm"`
	Digest   DigestConfig   `yaml:"digest"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	API      APIConfig      `yaml:"api"`
	Feeds    []FeedConfig   `yaml:"feeds"`
	Topics   []TopicConfig  `yaml:"topics"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type ScheduleConfig struct {
	Poll     string `yaml:"poll"`
	Digest   string `yaml:"digest"`
	Timezone string `yaml:"timezone"`
}

// Location resolves the schedule timezone, falling back to UTC.
func (s ScheduleConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type FetchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
	PerHostDelayMS int `yaml:"per_host_delay_ms"`
	BatchLimit     int `yaml:"batch_limit"`
}

func (f FetchConfig) PerHostDelay() time.Duration {
	return time.Duration(f.PerHostDelayMS) * time.Millisecond
}

type LLMConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	MaxChars   int    `yaml:"max_chars"`
	TimeoutSec int    `yaml:"timeout_sec"`
	MaxTokens  int    `yaml:"max_tokens"`
}

// Configured reports whether the assessment stage has a model to talk to.
func (l LLMConfig) Configured() bool {
	return strings.TrimSpace(l.Provider) != "" && strings.TrimSpace(l.Model) != ""
}

func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSec) * time.Second
}

type DigestConfig struct {
	Recipient     string `yaml:"recipient"`
	From          string `yaml:"from"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// To is the digest recipient. Without one the digest is addressed back to
// the sender, which only happens when it is written out instead of mailed.
func (d DigestConfig) To() string {
	if r := strings.TrimSpace(d.Recipient); r != "" {
		return r
	}
	return d.From
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS string `yaml:"tls"`
}

func (s SMTPConfig) Configured() bool {
	return strings.TrimSpace(s.Host) != ""
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

type FeedConfig struct {
	Name         string                  `yaml:"name"`
	URL          string                  `yaml:"url"`
	Enabled      *bool                   `yaml:"enabled"`
	Extraction   domain.ExtractionConfig `yaml:"extraction"`
	CustomFields []string                `yaml:"custom_fields"`
}

func (f FeedConfig) Feed() domain.Feed {
	enabled := f.Enabled == nil || *f.Enabled
	name := f.Name
	if name == "" {
		name = f.URL
	}
	return domain.Feed{
		Name:         name,
		URL:          f.URL,
		Extraction:   f.Extraction,
		CustomFields: f.CustomFields,
		Enabled:      enabled,
	}
}

type TopicConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

func (t TopicConfig) Topic() domain.Topic {
	return domain.Topic{
		Name:        t.Name,
		Description: t.Description,
		Enabled:     t.Enabled == nil || *t.Enabled,
	}
}

// Default returns the configuration used for every key the file omits.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Driver: DriverSQLite, DSN: defaultDBPath()},
		Log:      LogConfig{Level: "info", Format: "text"},
		Schedule: ScheduleConfig{Poll: "*/30 * * * *", Digest: "0 7 * * *", Timezone: "UTC"},
		Fetch:    FetchConfig{MaxConcurrency: 2, PerHostDelayMS: 1000},
		LLM:      LLMConfig{MaxChars: 12000, TimeoutSec: 60, MaxTokens: 1024},
		Digest:   DigestConfig{From: "feedsieve@localhost", SubjectPrefix: "feedsieve digest"},
		SMTP:     SMTPConfig{Port: 587, TLS: "mandatory"},
	}
}

// DefaultPath is ~/.config/feedsieve/config.yaml unless FEEDSIEVE_CONFIG is set.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(configPathEnv)); p != "" {
		return ExpandPath(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "feedsieve", "config.yaml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "feedsieve.db"
	}
	return filepath.Join(home, ".local", "share", "feedsieve", "feedsieve.db")
}

// Load reads .env (if present), the YAML file at path and the environment
// overrides, in that order of increasing precedence. A missing file yields
// the defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("skipping .env", "error", err)
	}

	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	b, err := os.ReadFile(ExpandPath(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, apperr.NewValidationWrap("parse config "+path, err)
		}
	}

	applyEnvOverrides(&cfg)
	if cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = ExpandPath(cfg.Database.DSN)
	}
	cfg.Log.File = ExpandPath(cfg.Log.File)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Database.Driver, "FEEDSIEVE_DB_DRIVER")
	set(&cfg.Database.DSN, "FEEDSIEVE_DB_DSN")
	set(&cfg.Log.Level, "FEEDSIEVE_LOG_LEVEL")
	set(&cfg.LLM.Provider, "FEEDSIEVE_LLM_PROVIDER")
	set(&cfg.LLM.Model, "FEEDSIEVE_LLM_MODEL")
	set(&cfg.LLM.BaseURL, "FEEDSIEVE_LLM_BASE_URL")
	set(&cfg.SMTP.Password, "FEEDSIEVE_SMTP_PASSWORD")
	set(&cfg.API.Addr, "FEEDSIEVE_API_ADDR")

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case ProviderAnthropic:
			set(&cfg.LLM.APIKey, "FEEDSIEVE_LLM_API_KEY", "ANTHROPIC_API_KEY")
		default:
			set(&cfg.LLM.APIKey, "FEEDSIEVE_LLM_API_KEY", "OPENAI_API_KEY")
		}
	}
}

// Validate reports the first configuration problem as a ValidationError.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return apperr.NewValidation(fmt.Sprintf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return apperr.NewValidation("database.dsn is required")
	}
	for name, spec := range map[string]string{"schedule.poll": c.Schedule.Poll, "schedule.digest": c.Schedule.Digest} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return apperr.NewValidationWrap(name, err)
		}
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return apperr.NewValidationWrap("schedule.timezone", err)
		}
	}
	if c.Fetch.MaxConcurrency < 1 {
		return apperr.NewValidation("fetch.max_concurrency must be at least 1")
	}
	if c.Fetch.PerHostDelayMS < 0 {
		return apperr.NewValidation("fetch.per_host_delay_ms must not be negative")
	}
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case ProviderOpenAI, ProviderAnthropic:
		default:
			return apperr.NewValidation(fmt.Sprintf("llm.provider: unsupported provider %q", c.LLM.Provider))
		}
	}
	if c.LLM.MaxChars < 1 {
		return apperr.NewValidation("llm.max_chars must be positive")
	}
	if strings.TrimSpace(c.Digest.From) == "" {
		return apperr.NewValidation("digest.from is required")
	}
	if c.SMTP.Configured() && strings.TrimSpace(c.Digest.Recipient) == "" {
		return apperr.NewValidation("digest.recipient is required when smtp is configured")
	}

	seen := map[string]bool{}
	for i, f := range c.Feeds {
		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.NewValidation(fmt.Sprintf("feeds[%d].url: %q is not an http(s) URL", i, f.URL))
		}
		if seen[f.URL] {
			return apperr.NewValidation(fmt.Sprintf("feeds[%d].url: duplicate %q", i, f.URL))
		}
		seen[f.URL] = true
	}
	names := map[string]bool{}
	for i, t := range c.Topics {
		n := strings.TrimSpace(t.Name)
		if n == "" {
			return apperr.NewValidation(fmt.Sprintf("topics[%d].name is required", i))
		}
		if names[n] {
			return apperr.NewValidation(fmt.Sprintf("topics[%d].name: duplicate %q", i, n))
		}
		names[n] = true
	}
	return nil
}

// Redacted returns a copy with secrets masked, for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.LLM.APIKey = mask(c.LLM.APIKey)
	c.SMTP.Password = mask(c.SMTP.Password)
	if c.Database.Driver == DriverPostgres {
		if u, err := url.Parse(c.Database.DSN); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "********")
				c.Database.DSN = u.String()
			}
		}
	}
	return c
}

// ExpandPath expands leading ~ and environment variables in a filesystem path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}
