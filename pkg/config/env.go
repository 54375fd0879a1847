package config

import (
	"os"
	"strings"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/recorder"
)

// Environment variable names
const (
	EnvConfig         = "PILLBOX_CONFIG"
	EnvDir            = "PILLBOX_DIR"
	EnvMode           = "PILLBOX_MODE"
	EnvFormat         = "PILLBOX_FORMAT"
	EnvPrefix         = "PILLBOX_PREFIX"
	EnvLogLevel       = "PILLBOX_LOG_LEVEL"
	EnvLogFormat      = "PILLBOX_LOG_FORMAT"
	EnvAccountMasking = "PILLBOX_ACCOUNT_MASKING"
	EnvStore          = "PILLBOX_STORE"
	EnvS3Bucket       = "PILLBOX_S3_BUCKET"
	EnvS3Region       = "PILLBOX_S3_REGION"
	EnvS3Endpoint     = "PILLBOX_S3_ENDPOINT"
	EnvS3Prefix       = "PILLBOX_S3_PREFIX"
	EnvS3PathStyle    = "PILLBOX_S3_PATH_STYLE"
)

// LoadEnv applies environment variables to cfg.
// It only sets values that are present in the environment.
func LoadEnv(cfg *Config) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	setString := func(env, key string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
			cfg.Sources[key] = SourceEnv
		}
	}
	setBool := func(env, key string, dst *bool) {
		if v := os.Getenv(env); v != "" {
			*dst = parseBool(v)
			cfg.Sources[key] = SourceEnv
		}
	}

	setString(EnvDir, "dir", &cfg.Dir)
	setString(EnvFormat, "format", &cfg.Format)
	setString(EnvPrefix, "prefix", &cfg.Prefix)
	setString(EnvLogLevel, "logLevel", &cfg.LogLevel)
	setString(EnvLogFormat, "logFormat", &cfg.LogFormat)
	setBool(EnvAccountMasking, "accountMasking", &cfg.AccountMasking)

	// PILLBOX_MODE
	if v := os.Getenv(EnvMode); v != "" {
		cfg.Mode = recorder.Mode(strings.ToLower(v))
		cfg.Sources["mode"] = SourceEnv
	}

	// PILLBOX_STORE
	if v := os.Getenv(EnvStore); v != "" {
		cfg.Store.Driver = storage.Driver(strings.ToLower(v))
		cfg.Sources["store.driver"] = SourceEnv
	}

	setString(EnvS3Bucket, "store.s3.bucket", &cfg.Store.S3.Bucket)
	setString(EnvS3Region, "store.s3.region", &cfg.Store.S3.Region)
	setString(EnvS3Endpoint, "store.s3.endpoint", &cfg.Store.S3.Endpoint)
	setString(EnvS3Prefix, "store.s3.prefix", &cfg.Store.S3.Prefix)
	setBool(EnvS3PathStyle, "store.s3.pathStyle", &cfg.Store.S3.PathStyle)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
