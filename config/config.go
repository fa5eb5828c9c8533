package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Curveflow CurveflowConfig `yaml:"curveflow"`
	Reader    ReaderConfig    `yaml:"reader"`
	Source    SourceConfig    `yaml:"source"`
	Writer    WriterConfig    `yaml:"writer"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type CurveflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ReaderConfig struct {
	MaxWorkers int             `yaml:"max_workers"`
	Timeout    Duration        `yaml:"timeout"`
	Retry      RetryConfig     `yaml:"retry"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type SourceConfig struct {
	Nordpool NordpoolSourceConfig `yaml:"nordpool"`
}

// NordpoolSourceConfig points the reader at the market data download center.
// Formats lists the report payload formats to try in order; the trailing
// entries act as fallbacks for dates where the primary format is missing.
type NordpoolSourceConfig struct {
	BaseURL        string               `yaml:"base_url"`
	ReportPrefix   string               `yaml:"report_prefix"`
	Formats        []string             `yaml:"formats"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	MaxConnsPerHost int      `yaml:"max_conns_per_host"`
	IdleConnTimeout Duration `yaml:"idle_conn_timeout"`
}

type WriterConfig struct {
	MaxWorkers  int    `yaml:"max_workers"`
	Compression string `yaml:"compression"`
}

type StorageConfig struct {
	Local LocalStorageConfig `yaml:"local"`
	S3    S3Config           `yaml:"s3"`
}

type LocalStorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type S3Config struct {
	Enabled           bool   `yaml:"enabled"`
	Bucket            string `yaml:"bucket"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	PathStyle         bool   `yaml:"path_style"`
	UploadConcurrency int    `yaml:"upload_concurrency"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
}

// Duration wraps time.Duration so values can be written as "30s" or "1m" in
// the YAML file.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	defaultReportPrefix = "mcp_data_report_"
	defaultTimeout      = 30 * time.Second

	// DefaultPath is the configuration file used when no -config flag is given.
	DefaultPath = "config/config.yml"
)

var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultPath, envConfigPaths)

	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Reader: ReaderConfig{
			MaxWorkers: 1,
			Timeout:    Duration(defaultTimeout),
			Retry:      RetryConfig{MaxAttempts: 3, BaseDelay: Duration(time.Second), MaxDelay: Duration(10 * time.Second)},
		},
		Writer: WriterConfig{MaxWorkers: 1, Compression: "snappy"},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Source.Nordpool.ReportPrefix == "" {
		config.Source.Nordpool.ReportPrefix = defaultReportPrefix
	}
	if len(config.Source.Nordpool.Formats) == 0 {
		config.Source.Nordpool.Formats = []string{"json", "html"}
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Curveflow.Name == "" {
		return fmt.Errorf("curveflow.name is required")
	}

	if cfg.Curveflow.Version == "" {
		return fmt.Errorf("curveflow.version is required")
	}

	if cfg.Reader.MaxWorkers <= 0 {
		return fmt.Errorf("reader.max_workers must be greater than 0")
	}
	if cfg.Reader.Timeout.Std() <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}
	if cfg.Reader.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("reader.retry.max_attempts must be greater than 0")
	}

	if cfg.Source.Nordpool.BaseURL == "" {
		return fmt.Errorf("source.nordpool.base_url is required")
	}
	for _, f := range cfg.Source.Nordpool.Formats {
		if f != "json" && f != "html" {
			return fmt.Errorf("source.nordpool.formats contains unsupported format '%s'", f)
		}
	}

	if cfg.Writer.MaxWorkers <= 0 {
		return fmt.Errorf("writer.max_workers must be greater than 0")
	}
	switch cfg.Writer.Compression {
	case "snappy", "gzip", "none":
	default:
		return fmt.Errorf("writer.compression '%s' is invalid", cfg.Writer.Compression)
	}

	if cfg.Storage.Local.Enabled && cfg.Storage.Local.Dir == "" {
		return fmt.Errorf("storage.local.dir is required when local storage is enabled")
	}

	if IsProductionLike(AppEnvironment()) && !cfg.Storage.Local.Enabled && !cfg.Storage.S3.Enabled {
		return fmt.Errorf("at least one storage backend must be enabled in %s", AppEnvironment())
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
