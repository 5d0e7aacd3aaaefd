package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides, e.g. ROADSCAN_PORT.
const EnvPrefix = "ROADSCAN_"

var defaultCandidates = []string{".config.yaml", "config.yaml"}

// Loader reads defaults, then an optional YAML file, then environment overrides.
type Loader struct {
	useDotEnv  bool
	candidates []string
	lookupEnv  func(string) (string, bool)
}

func NewLoader() *Loader {
	return &Loader{
		useDotEnv:  true,
		candidates: defaultCandidates,
		lookupEnv:  os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the YAML file instead of probing the default candidates.
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.candidates = []string{path}
	}
	return l
}

// WithEnv replaces the environment lookup (useful for tests).
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	path := "defaults"

	for _, candidate := range l.candidates {
		data, err := os.ReadFile(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", candidate, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", candidate, err)
		}
		path = candidate
		break
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func (l *Loader) env(key string) (string, bool) {
	v, ok := l.lookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (l *Loader) applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"HOST":           &cfg.Server.IP,
		"LOG_LEVEL":      &cfg.Log.Level,
		"LOG_DIR":        &cfg.Log.Dir,
		"STATIC_DIR":     &cfg.Web.StaticDir,
		"STORE_DRIVER":   &cfg.Store.Driver,
		"REDIS_ADDR":     &cfg.Store.Redis.Addr,
		"REDIS_PASSWORD": &cfg.Store.Redis.Password,
		"SQLITE_DSN":     &cfg.Store.SQLite.DSN,
		"POSTGRES_DSN":   &cfg.Store.Postgres.DSN,
		"COMPANION_ROOT": &cfg.Companion.Root,
		"MODEL_PATH":     &cfg.Model.WeightsPath,
		"RULE":           &cfg.Estimator.Rule,
		"SUMMARY":        &cfg.Processing.Summary,
	}
	for key, dst := range strs {
		if v, ok := l.env(key); ok {
			*dst = v
		}
	}

	if v, ok := l.env("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", EnvPrefix, err)
		}
		cfg.Server.Port = port
	}

	durations := map[string]*time.Duration{
		"DELAY_MIN":       &cfg.Processing.DelayMin,
		"DELAY_MAX":       &cfg.Processing.DelayMax,
		"EVENT_RETENTION": &cfg.Events.Retention,
	}
	for key, dst := range durations {
		if v, ok := l.env(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}
	return nil
}

// normalize folds the case of enum-like settings.
func normalize(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Processing.Summary = strings.ToLower(strings.TrimSpace(cfg.Processing.Summary))
	cfg.Estimator.Rule = strings.TrimSpace(cfg.Estimator.Rule)
}

func (l *Loader) validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	switch strings.ToLower(cfg.Store.Driver) {
	case DriverNull, DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unsupported store driver: %q", cfg.Store.Driver)
	}
	if strings.EqualFold(cfg.Store.Driver, DriverRedis) && cfg.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required for the redis driver")
	}
	if strings.EqualFold(cfg.Store.Driver, DriverPostgres) && cfg.Store.Postgres.DSN == "" {
		return errors.New("store.postgres.dsn is required for the postgres driver")
	}

	switch strings.ToLower(strings.ReplaceAll(cfg.Estimator.Rule, "_", "-")) {
	case "", RuleExact, "exact-match", RuleNonBackground:
	default:
		return fmt.Errorf("unsupported estimator rule: %q", cfg.Estimator.Rule)
	}

	switch strings.ToLower(cfg.Processing.Summary) {
	case "", SummaryDamage, SummaryQuality:
	default:
		return fmt.Errorf("unsupported summary mode: %q", cfg.Processing.Summary)
	}

	p := cfg.Processing
	if p.DelayMin < 0 || p.DelayMax < 0 || p.DelayMax < p.DelayMin {
		return fmt.Errorf("invalid processing delay range: %s..%s", p.DelayMin, p.DelayMax)
	}
	if cfg.Ingest.MaxFileSize <= 0 {
		return fmt.Errorf("invalid ingest max_file_size: %d", cfg.Ingest.MaxFileSize)
	}
	if cfg.Events.Retention < 0 || cfg.Events.PruneInterval < 0 {
		return fmt.Errorf("invalid events retention: %s every %s", cfg.Events.Retention, cfg.Events.PruneInterval)
	}
	if cfg.Companion.Root == "" {
		return errors.New("companion.root is required")
	}
	return nil
}
