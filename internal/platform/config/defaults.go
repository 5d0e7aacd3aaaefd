package config

import "time"

const (
	DriverNull     = "null"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	RuleExact         = "exact"
	RuleNonBackground = "non-background"

	SummaryDamage  = "damage"
	SummaryQuality = "quality"

	DefaultMaxFileSize int64 = 10 * 1024 * 1024
)

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:              "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:     true,
			StaticDir:   "./web",
			CORSOrigins: []string{"*"},
			Docs:        true,
		},
		Store: StoreConfig{
			Driver:  DriverSQLite,
			Timeout: 3 * time.Second,
			SQLite: RecordSQLiteStore{
				DSN: "data/roadscan.db",
			},
			Redis: RecordRedisStore{
				Prefix: "roadscan:",
			},
		},
		Ingest: IngestConfig{
			MaxFileSize: DefaultMaxFileSize,
			AllowedTypes: []string{
				"image/jpeg",
				"image/png",
				"image/tiff",
				"image/heif",
				"image/heic",
			},
			MaxWidth:       16384,
			MaxHeight:      16384,
			MaxPixels:      268435456,
			EnableDeepScan: true,
		},
		Companion: CompanionConfig{
			Root:      "config-folder",
			Subdir:    "im-r",
			URLPrefix: "/config-folder",
		},
		Estimator: EstimatorConfig{
			Rule:  RuleExact,
			Color: RGBColor{R: 254, G: 201, B: 201},
		},
		Model: ModelConfig{
			WeightsPath: "models/road_segmentation_model.pth",
			CreateDir:   true,
		},
		Processing: ProcessingConfig{
			DelayMin:           5 * time.Second,
			DelayMax:           7 * time.Second,
			MaxConcurrentScans: 4,
			Summary:            SummaryDamage,
			SessionTTL:         30 * time.Minute,
			ResultCacheSize:    256,
		},
		Events: EventsConfig{
			Workers:       4,
			Retention:     7 * 24 * time.Hour,
			PruneInterval: time.Hour,
		},
	}
}
