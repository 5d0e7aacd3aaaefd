package config

import (
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Web        WebConfig        `yaml:"web" mapstructure:"web"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Companion  CompanionConfig  `yaml:"companion" mapstructure:"companion"`
	Estimator  EstimatorConfig  `yaml:"estimator" mapstructure:"estimator"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
}

type ServerConfig struct {
	IP              string        `yaml:"ip" mapstructure:"ip"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"log_level" mapstructure:"log_level"`
	Dir    string `yaml:"log_dir" mapstructure:"log_dir"`
	File   string `yaml:"log_file" mapstructure:"log_file"`
	Format string `yaml:"log_format" mapstructure:"log_format"`
}

type WebConfig struct {
	Enabled     bool     `yaml:"enabled" mapstructure:"enabled"`
	StaticDir   string   `yaml:"static_dir" mapstructure:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	Docs        bool     `yaml:"docs" mapstructure:"docs"`
}

// StoreConfig selects the record store driver. Unknown names are rejected at
// load time; a backend that cannot be reached at startup degrades to "null".
type StoreConfig struct {
	Driver   string              `yaml:"driver" mapstructure:"driver"`
	Timeout  time.Duration       `yaml:"timeout" mapstructure:"timeout"`
	Redis    RecordRedisStore    `yaml:"redis,omitempty" mapstructure:"redis"`
	SQLite   RecordSQLiteStore   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres RecordPostgresStore `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

type RecordRedisStore struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Username string        `yaml:"username,omitempty" mapstructure:"username"`
	Password string        `yaml:"password,omitempty" mapstructure:"password"`
	DB       int           `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string        `yaml:"prefix,omitempty" mapstructure:"prefix"`
	TTL      time.Duration `yaml:"ttl,omitempty" mapstructure:"ttl"`
}

type RecordSQLiteStore struct {
	DSN string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

type RecordPostgresStore struct {
	DSN string `yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// IngestConfig bounds what the upload endpoint accepts.
type IngestConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size" mapstructure:"max_file_size"`
	AllowedTypes   []string `yaml:"allowed_types" mapstructure:"allowed_types"`
	MaxWidth       int      `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight      int      `yaml:"max_height" mapstructure:"max_height"`
	MaxPixels      int64    `yaml:"max_pixels" mapstructure:"max_pixels"`
	EnableDeepScan bool     `yaml:"enable_deep_scan" mapstructure:"enable_deep_scan"`
}

// CompanionConfig locates the pre-rendered overlay images.
type CompanionConfig struct {
	Root      string `yaml:"root" mapstructure:"root"`
	Subdir    string `yaml:"subdir" mapstructure:"subdir"`
	URLPrefix string `yaml:"url_prefix" mapstructure:"url_prefix"`
}

type EstimatorConfig struct {
	Rule  string   `yaml:"rule" mapstructure:"rule"`
	Color RGBColor `yaml:"color" mapstructure:"color"`
}

type RGBColor struct {
	R uint8 `yaml:"r" mapstructure:"r"`
	G uint8 `yaml:"g" mapstructure:"g"`
	B uint8 `yaml:"b" mapstructure:"b"`
}

type ModelConfig struct {
	WeightsPath string `yaml:"weights_path" mapstructure:"weights_path"`
	CreateDir   bool   `yaml:"create_dir" mapstructure:"create_dir"`
}

type ProcessingConfig struct {
	DelayMin           time.Duration `yaml:"delay_min" mapstructure:"delay_min"`
	DelayMax           time.Duration `yaml:"delay_max" mapstructure:"delay_max"`
	MaxConcurrentScans int           `yaml:"max_concurrent_scans" mapstructure:"max_concurrent_scans"`
	Summary            string        `yaml:"summary" mapstructure:"summary"`
	SessionTTL         time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	ResultCacheSize    int           `yaml:"result_cache_size" mapstructure:"result_cache_size"`
}

// EventsConfig sizes the async bus and bounds the SQL event journal.
type EventsConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	Retention     time.Duration `yaml:"retention" mapstructure:"retention"`
	PruneInterval time.Duration `yaml:"prune_interval" mapstructure:"prune_interval"`
}
