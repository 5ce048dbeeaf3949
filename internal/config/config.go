// Package config assembles runtime settings from defaults, an optional YAML
// file and FORMFLOW_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/draft"
	"github.com/goliatone/go-formflow/pkg/session"
)

// EnvPrefix prefixes every environment variable, e.g. FORMFLOW_API_BASE_URL.
const EnvPrefix = "formflow"

// Draft backends.
const (
	DraftsMemory = "memory"
	DraftsSQLite = "sqlite"
	DraftsRedis  = "redis"
)

type Config struct {
	// RespondentID identifies this device to the API and namespaces drafts.
	// A random id is used when empty.
	RespondentID string `yaml:"respondent_id" envconfig:"respondent_id"`

	API    API    `yaml:"api"`
	Log    Log    `yaml:"log"`
	Drafts Drafts `yaml:"drafts"`
	Server Server `yaml:"server"`
	Runner Runner `yaml:"runner"`
}

type API struct {
	BaseURL   string        `yaml:"base_url" envconfig:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size" envconfig:"cache_size"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Drafts struct {
	Backend      string        `yaml:"backend"`
	Path         string        `yaml:"path"`
	RedisAddr    string        `yaml:"redis_addr" envconfig:"redis_addr"`
	RedisMaxIdle int           `yaml:"redis_max_idle" envconfig:"redis_max_idle"`
	MaxAge       time.Duration `yaml:"max_age" envconfig:"max_age"`
	// AsyncBuffer > 0 moves draft writes onto a background worker.
	AsyncBuffer int `yaml:"async_buffer" envconfig:"async_buffer"`
}

type Server struct {
	Addr     string `yaml:"addr"`
	FormsDir string `yaml:"forms_dir" envconfig:"forms_dir"`
}

type Runner struct {
	PageMode         bool          `yaml:"page_mode" envconfig:"page_mode"`
	Output           string        `yaml:"output"`
	AutoAdvanceDelay time.Duration `yaml:"auto_advance_delay" envconfig:"auto_advance_delay"`
	// RulesFile maps field ids to visibility rule expressions.
	RulesFile string `yaml:"rules_file" envconfig:"rules_file"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		API: API{
			BaseURL:   "http://localhost:8080",
			Timeout:   30 * time.Second,
			CacheSize: 64,
		},
		Log: Log{Level: "info", Format: "text"},
		Drafts: Drafts{
			Backend:      DraftsMemory,
			Path:         "formflow-drafts.sqlite",
			RedisAddr:    "localhost:6379",
			RedisMaxIdle: 3,
			MaxAge:       draft.MaxAge,
		},
		Server: Server{Addr: ":8080", FormsDir: "forms"},
		Runner: Runner{Output: "json", AutoAdvanceDelay: session.AutoAdvanceDelay},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every inconsistent setting.
func (cfg Config) Validate() error {
	var errs []error
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", cfg.Log.Format))
	}
	switch cfg.Drafts.Backend {
	case DraftsMemory:
	case DraftsSQLite:
		if strings.TrimSpace(cfg.Drafts.Path) == "" {
			errs = append(errs, errors.New("config: drafts.path is required for the sqlite backend"))
		}
	case DraftsRedis:
		if strings.TrimSpace(cfg.Drafts.RedisAddr) == "" {
			errs = append(errs, errors.New("config: drafts.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown drafts.backend %q", cfg.Drafts.Backend))
	}
	if cfg.API.Timeout < 0 {
		errs = append(errs, errors.New("config: api.timeout must not be negative"))
	}
	if cfg.Drafts.AsyncBuffer < 0 {
		errs = append(errs, errors.New("config: drafts.async_buffer must not be negative"))
	}
	return errors.Join(errs...)
}
