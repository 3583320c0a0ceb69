// Package config loads the benchmark pipeline settings from QB_-prefixed
// environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every variable name
const Prefix = "QB_"

// BenchmarkOptions locates the benchmark binary and sizes its runs
type BenchmarkOptions struct {
	Binary          string        `env:"BINARY" envDefault:"./target/debug/real_benchmark"`
	WorkDir         string        `env:"WORKDIR" envDefault:"."`
	ArtifactName    string        `env:"ARTIFACT" envDefault:"latency.log"`
	BasicOperations int           `env:"BASIC_OPS" envDefault:"1000"`
	SweepOperations int           `env:"SWEEP_OPS" envDefault:"200"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"300s"`
}

// LogOptions names the basic and sweep latency logs
type LogOptions struct {
	BasicLogPath  string `env:"BASIC_LOG" envDefault:"latency.log"`
	ConfigLogPath string `env:"CONFIG_LOG" envDefault:"latency_configs.log"`
	// BasicLogEarly writes the basic log before the sweep instead of after it
	BasicLogEarly bool `env:"BASIC_LOG_EARLY" envDefault:"false"`
}

// ReportOptions configures chart rendering
type ReportOptions struct {
	OutputDir string `env:"REPORT_DIR" envDefault:"."`
}

// MetricsOptions configures the Prometheus exporter and host sampling
type MetricsOptions struct {
	// Addr serves /metrics while a sweep runs; empty disables the server
	Addr         string `env:"METRICS_ADDR"`
	TextfilePath string `env:"METRICS_TEXTFILE"`
	HostStats    bool   `env:"HOST_STATS" envDefault:"true"`
}

// UploadOptions selects the object store that receives the artifacts
type UploadOptions struct {
	Kind   string `env:"KIND"` // s3 or r2, empty disables upload
	Bucket string `env:"BUCKET"`
	Prefix string `env:"PREFIX" envDefault:"quorum-bench"`
	Region string `env:"REGION" envDefault:"us-east-1"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
}

// Enabled reports whether artifacts should be uploaded
func (u *UploadOptions) Enabled() bool {
	return u.Kind != ""
}

// Validate checks the upload target configuration
func (u *UploadOptions) Validate() error {
	switch u.Kind {
	case "":
		return nil
	case "s3":
	case "r2":
		if u.R2AccountID == "" || u.R2AccessKeyID == "" || u.R2SecretAccessKey == "" {
			return errors.New("upload kind r2 requires account id, access key id and secret access key")
		}
	default:
		return errors.Errorf("upload kind must be 's3' or 'r2', got '%s'", u.Kind)
	}
	if u.Bucket == "" {
		return errors.Errorf("upload kind %s requires a bucket", u.Kind)
	}
	return nil
}

// Config is the complete pipeline configuration
type Config struct {
	Benchmark BenchmarkOptions
	Logs      LogOptions
	Report    ReportOptions
	Metrics   MetricsOptions
	Upload    UploadOptions `envPrefix:"UPLOAD_"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	logger *logrus.Logger
}

// Parse reads the configuration from environ, or from the process environment
// when environ is nil. It does not validate, so callers can apply flag
// overrides first.
func Parse(environ map[string]string) (*Config, error) {
	c := &Config{}
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}
	return c, nil
}

// Validate checks counts, the timeout, the log level and the upload target
func (c *Config) Validate() error {
	if c.Benchmark.Binary == "" {
		return errors.New("QB_BINARY must not be empty")
	}
	if c.Benchmark.BasicOperations <= 0 || c.Benchmark.SweepOperations <= 0 {
		return errors.Errorf("operation counts must be positive, got basic=%d sweep=%d",
			c.Benchmark.BasicOperations, c.Benchmark.SweepOperations)
	}
	if c.Benchmark.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Benchmark.Timeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "silent", "error", "warn", "info", "debug":
	default:
		return errors.Errorf("invalid LOG_LEVEL=%q (expected silent|error|warn|info|debug)", c.LogLevel)
	}
	if err := c.Upload.Validate(); err != nil {
		return errors.Wrap(err, "upload configuration error")
	}
	return nil
}

// ValidateSweep runs Validate and additionally rejects an early basic log
// that would be overwritten by the benchmark artifact
func (c *Config) ValidateSweep() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Logs.BasicLogEarly && c.BasicLogIsArtifact() {
		return errors.Errorf("QB_BASIC_LOG_EARLY cannot be used while the basic log %s is the benchmark artifact", c.Logs.BasicLogPath)
	}
	return nil
}

// ArtifactPath is where the benchmark binary leaves its latency log
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.Benchmark.WorkDir, c.Benchmark.ArtifactName)
}

// BasicLogIsArtifact reports whether the basic log and the artifact share a path
func (c *Config) BasicLogIsArtifact() bool {
	a, errA := filepath.Abs(c.Logs.BasicLogPath)
	b, errB := filepath.Abs(c.ArtifactPath())
	if errA != nil || errB != nil {
		return filepath.Clean(c.Logs.BasicLogPath) == filepath.Clean(c.ArtifactPath())
	}
	return a == b
}

// LogrusLogLevel maps LogLevel onto a logrus level; silent logs only panics
func (c *Config) LogrusLogLevel() logrus.Level {
	switch strings.ToLower(c.LogLevel) {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger returns the process logger, created on first use
func (c *Config) Logger() *logrus.Logger {
	if c.logger == nil {
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(c.LogrusLogLevel())
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		c.logger = logger
	}
	return c.logger
}
