// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Sink kinds accepted by INGEST_SINK.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkCSV      = "csv"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Download DownloadConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required for the postgres sink)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 8)
	MaxConns int `env:"DB_MAX_CONNS" default:"8"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// IngestConfig holds import settings.
type IngestConfig struct {
	// SpecDir holds <TYPE>.json / <TYPE>.yaml layouts that override the built-in ones
	SpecDir string `env:"INGEST_SPEC_DIR"`

	// DataDir is scanned recursively for *.txt data files (default: data)
	DataDir string `env:"INGEST_DATA_DIR" default:"data"`

	// Sink is where tables go: postgres, sqlite or csv (default: postgres)
	Sink string `env:"INGEST_SINK" default:"postgres"`

	// SQLitePath is the database file for the sqlite sink, and for the import
	// ledger when the sink is csv (default: jrdb.db)
	SQLitePath string `env:"INGEST_SQLITE_PATH" default:"jrdb.db"`

	// CSVDir is the output directory of the csv sink (default: out)
	CSVDir string `env:"INGEST_CSV_DIR" default:"out"`

	// MaxConcurrent is the number of files imported in parallel (default: 4)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"4"`

	// BatchSize is the number of rows per INSERT for the sqlite sink (default: 500)
	BatchSize int `env:"INGEST_BATCH_SIZE" default:"500"`

	// StrictDecode fails a whole file on one undecodable record (default: true).
	// When false, bad records are dropped and reported.
	StrictDecode bool `env:"INGEST_STRICT_DECODE" default:"true"`

	// CreateTables issues CREATE TABLE IF NOT EXISTS before loading (default: true)
	CreateTables bool `env:"INGEST_CREATE_TABLES" default:"true"`

	// Timeout is the maximum duration of one import run (default: 30m)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"30m"`
}

// DownloadConfig holds JRDB member site settings.
type DownloadConfig struct {
	// BaseURL is the site root (default: http://www.jrdb.com/)
	BaseURL string `env:"JRDB_BASE_URL" default:"http://www.jrdb.com/"`

	// Username and Password are the JRDB member credentials
	Username string `env:"JRDB_USERNAME"`
	Password string `env:"JRDB_PASSWORD"`

	// RequestsPerSecond throttles requests to the site (default: 1)
	RequestsPerSecond float64 `env:"DOWNLOAD_REQUESTS_PER_SECOND" default:"1"`

	// Timeout is the maximum duration of a single request (default: 5m)
	Timeout time.Duration `env:"DOWNLOAD_TIMEOUT" default:"5m"`

	// OutputDir is where archives are saved (default: downloads)
	OutputDir string `env:"DOWNLOAD_DIR" default:"downloads"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
