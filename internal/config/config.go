package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ledgerspace/internal/blob"
)

type Config struct {
	// Snapshot storage
	StateKey     string
	BlobDriver   string
	BlobFSRoot   string
	SQLiteDBPath string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool

	// Bootstrap secrets, used only when no snapshot exists yet
	AdminSecret  string
	MasterSecret string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Advisor
	AdvisorURL       string
	AdvisorAPIKey    string
	AdvisorTimeout   time.Duration
	AdvisorCacheSize int
	AdvisorCacheTTL  time.Duration

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetPrefix   string

	// Worker
	ExportInterval time.Duration

	// Credential attempts allowed per identifier and minute
	LoginAttemptsPerMinute int

	LogLevel  string
	LogFormat string
}

var validDrivers = []string{
	string(blob.DriverFilesystem),
	string(blob.DriverMemory),
	string(blob.DriverSQLite),
	string(blob.DriverS3),
}

func Load() *Config {
	cfg := &Config{
		StateKey:     getEnv("LEDGER_STATE_KEY", "ledgerspace/state.json"),
		BlobDriver:   getEnv("BLOB_DRIVER", string(blob.DriverFilesystem)),
		BlobFSRoot:   getEnv("BLOB_FS_ROOT", "./data/blobs"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/ledgerspace.db"),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PathStyle:  getEnvBool("S3_PATH_STYLE", false),

		AdminSecret:  getEnv("ADMIN_SECRET", ""),
		MasterSecret: getEnv("MASTER_SECRET", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledgerspace"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_state_changed"),

		AdvisorURL:       getEnv("ADVISOR_URL", ""),
		AdvisorAPIKey:    getEnv("ADVISOR_API_KEY", ""),
		AdvisorTimeout:   getEnvDuration("ADVISOR_TIMEOUT", 15*time.Second),
		AdvisorCacheSize: getEnvInt("ADVISOR_CACHE_SIZE", 64),
		AdvisorCacheTTL:  getEnvDuration("ADVISOR_CACHE_TTL", time.Hour),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetPrefix:   getEnv("GOOGLE_SHEET_PREFIX", "Ledger"),

		ExportInterval: getEnvDuration("EXPORT_INTERVAL", 5*time.Minute),

		LoginAttemptsPerMinute: getEnvInt("LOGIN_ATTEMPTS_PER_MINUTE", 5),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// BlobOptions maps the storage settings onto the blob factory.
func (c *Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver:     blob.Driver(c.BlobDriver),
		FSRoot:     c.BlobFSRoot,
		SQLitePath: c.SQLiteDBPath,
		S3: blob.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			PathStyle: c.S3PathStyle,
		},
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.StateKey) == "" {
		errors = append(errors, "state key cannot be empty")
	}

	isValidDriver := false
	for _, d := range validDrivers {
		if c.BlobDriver == d {
			isValidDriver = true
			break
		}
	}
	if !isValidDriver {
		errors = append(errors, fmt.Sprintf("invalid blob driver '%s': must be one of %v", c.BlobDriver, validDrivers))
	}

	switch blob.Driver(c.BlobDriver) {
	case blob.DriverFilesystem:
		if c.BlobFSRoot == "" {
			errors = append(errors, "blob root cannot be empty when using fs driver")
		}
	case blob.DriverSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite driver")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case blob.DriverS3:
		if c.S3Bucket == "" {
			errors = append(errors, "S3 bucket is required when using s3 driver")
		}
		if c.S3Endpoint != "" {
			if u, err := url.Parse(c.S3Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s'", c.S3Endpoint))
			}
		}
	}

	if c.AdminSecret != "" && len(strings.TrimSpace(c.AdminSecret)) < 4 {
		errors = append(errors, "admin secret must be at least 4 characters")
	}
	if c.MasterSecret != "" && len(strings.TrimSpace(c.MasterSecret)) < 4 {
		errors = append(errors, "master secret must be at least 4 characters")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.AdvisorURL != "" {
		if u, err := url.Parse(c.AdvisorURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid advisor URL '%s': must be http or https", c.AdvisorURL))
		}
	}
	if c.AdvisorTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid advisor timeout %v: must be positive", c.AdvisorTimeout))
	}
	if c.AdvisorCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid advisor cache size %d: must be at least 1", c.AdvisorCacheSize))
	}

	if c.LoginAttemptsPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid login attempts per minute %d: cannot be negative", c.LoginAttemptsPerMinute))
	}

	if c.ExportInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 second", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker adds the requirements of the export worker.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.AMQPURL == "" {
		return fmt.Errorf("configuration validation failed:\n- AMQP URL is required for the worker")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
