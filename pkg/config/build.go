package config

import (
	"context"
	"io"
	"log/slog"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/logging"
	"github.com/getmockd/pillbox/pkg/recorder"
)

// StorageConfig returns the bucket settings for cfg.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver: c.Store.Driver,
		Dir:    c.Dir,
		S3: storage.S3Config{
			Bucket:    c.Store.S3.Bucket,
			Region:    c.Store.S3.Region,
			Endpoint:  c.Store.S3.Endpoint,
			Prefix:    c.Store.S3.Prefix,
			PathStyle: c.Store.S3.PathStyle,
		},
	}
}

// Logger returns a logger writing to out at the configured level.
func (c *Config) Logger(out io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(c.LogLevel),
		Format: logging.ParseFormat(c.LogFormat),
		Output: out,
	})
}

// RecorderOptions translates cfg into controller options. It does not
// select a bucket.
func (c *Config) RecorderOptions() []recorder.Option {
	opts := []recorder.Option{
		recorder.WithFormat(c.Format),
		recorder.WithPrefix(c.Prefix),
		recorder.WithAccountMasking(c.AccountMasking),
	}
	if c.Condition != "" {
		opts = append(opts, recorder.WithCondition(c.Condition))
	}
	if c.Fingerprint.Enabled {
		opts = append(opts, recorder.KeyByParams(c.Fingerprint.Fields...))
	}
	return opts
}

// NewController opens the configured bucket and returns an idle controller
// over it. extra options are applied after the configured ones, e.g.
// recorder.WithRegisterer to report fixture counters.
func (c *Config) NewController(ctx context.Context, extra ...recorder.Option) (*recorder.Controller, error) {
	bucket, err := storage.Open(ctx, c.StorageConfig())
	if err != nil {
		return nil, err
	}
	opts := append(c.RecorderOptions(), recorder.WithBucket(bucket))
	return recorder.New(c.Dir, append(opts, extra...)...)
}

// Start puts ctl into the configured mode, recording every service when
// the mode is record.
func (c *Config) Start(ctl *recorder.Controller) error {
	if c.Mode == recorder.ModeRecord {
		return ctl.Record("", "")
	}
	return ctl.Playback()
}
