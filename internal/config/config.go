package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Fields   FieldsConfig   `yaml:"fields"`
	Segments SegmentsConfig `yaml:"segments"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// FieldsConfig holds field-definition registry settings.
// CacheTTL bounds how stale validation and rule compilation may be after a
// schema change that was not explicitly invalidated.
type FieldsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl" env:"FIELDS_CACHE_TTL" env-default:"5m"`
}

// SegmentsConfig holds segment evaluation settings.
type SegmentsConfig struct {
	PreviewLimit    int           `yaml:"preview_limit"     env:"SEGMENTS_PREVIEW_LIMIT"     env-default:"25"`
	PreviewMaxLimit int           `yaml:"preview_max_limit" env:"SEGMENTS_PREVIEW_MAX_LIMIT" env-default:"100"`
	RecalcStaleness time.Duration `yaml:"recalc_staleness"  env:"SEGMENTS_RECALC_STALENESS"  env-default:"1h"`
}

// CleanupConfig holds referential-integrity cleanup settings.
// FieldConcurrency bounds how many referencing fields are repaired in
// parallel after a delete.
type CleanupConfig struct {
	FieldConcurrency int `yaml:"field_concurrency" env:"CLEANUP_FIELD_CONCURRENCY" env-default:"4"`
}
