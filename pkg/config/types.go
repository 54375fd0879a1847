package config

import (
	"errors"
	"fmt"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/recorder"
)

// Where a value came from.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
)

// Defaults.
const (
	DefaultDir      = "testdata/fixtures"
	DefaultMode     = recorder.ModePlayback
	DefaultFormat   = codec.FormatJSON
	DefaultLogLevel = "warn"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds resolved pillbox settings.
type Config struct {
	Dir            string        `yaml:"dir"`
	Mode           recorder.Mode `yaml:"mode"`
	Format         string        `yaml:"format"`
	Prefix         string        `yaml:"prefix"`
	LogLevel       string        `yaml:"logLevel"`
	LogFormat      string        `yaml:"logFormat"`
	AccountMasking bool          `yaml:"accountMasking"`
	Condition      string        `yaml:"condition"`

	Fingerprint FingerprintConfig `yaml:"fingerprint"`

	Store StoreConfig `yaml:"store"`

	// Sources tracks where each value came from.
	Sources map[string]string `yaml:"-"`
}

// FingerprintConfig keys fixtures by call parameters when enabled. Fields
// overrides the default JSONPath allow-list.
type FingerprintConfig struct {
	Enabled bool     `yaml:"enabled"`
	Fields  []string `yaml:"fields"`
}

// StoreConfig selects where fixtures live.
type StoreConfig struct {
	Driver storage.Driver `yaml:"driver"`
	S3     S3Config       `yaml:"s3"`
}

// S3Config configures the s3 driver. Credentials come from the default AWS
// chain.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"pathStyle"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Dir:      DefaultDir,
		Mode:     DefaultMode,
		Format:   DefaultFormat,
		LogLevel: DefaultLogLevel,
		Store:    StoreConfig{Driver: storage.DriverFilesystem},
		Sources:  make(map[string]string),
	}
	for _, key := range []string{"dir", "mode", "format", "logLevel", "store.driver"} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

// Validate checks values that would only fail later, deep inside a call.
func (c *Config) Validate() error {
	var errs []error
	if c.Dir == "" && c.Store.Driver == storage.DriverFilesystem {
		errs = append(errs, errors.New("dir is required for the fs store"))
	}
	if c.Mode != recorder.ModeRecord && c.Mode != recorder.ModePlayback {
		errs = append(errs, fmt.Errorf("mode must be record or playback, got %q", c.Mode))
	}
	if _, err := codec.Lookup(c.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Driver {
	case storage.DriverFilesystem, storage.DriverMemory:
	case storage.DriverS3:
		if c.Store.S3.Bucket == "" {
			errs = append(errs, errors.New("store.s3.bucket is required for the s3 store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
