package recorder

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/fingerprint"
	"github.com/getmockd/pillbox/pkg/logging"
	"github.com/getmockd/pillbox/pkg/metrics"
)

type options struct {
	bucket      storage.Bucket
	format      string
	prefix      string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maskAccount bool
	condition   string
	keyByParams bool
	fields      []string
}

// Option configures a Controller.
type Option func(*options)

// WithBucket stores fixtures in b instead of a directory.
func WithBucket(b storage.Bucket) Option {
	return func(o *options) { o.bucket = b }
}

// WithFormat selects the fixture encoding by name (json, yaml or gob).
func WithFormat(name string) Option {
	return func(o *options) { o.format = name }
}

// WithPrefix prepends prefix to every fixture name.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRegisterer reports fixture counters to reg. Controllers sharing a
// registry share the counters.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.metrics = metrics.New(reg) }
}

// WithAccountMasking replaces AWS account numbers inside ARNs with
// MaskedAccount when fixtures are written and read.
func WithAccountMasking(enabled bool) Option {
	return func(o *options) { o.maskAccount = enabled }
}

// WithCondition records only calls for which the expression is true. The
// expression sees service, operation, status_code, params and data.
func WithCondition(expression string) Option {
	return func(o *options) { o.condition = expression }
}

// KeyByParams adds the call fingerprint to fixture names, so calls with
// different parameters are replayed from separate sequences. Fields
// overrides the fingerprint allow-list.
func KeyByParams(fields ...string) Option {
	return func(o *options) {
		o.keyByParams = true
		o.fields = fields
	}
}

func (o *options) resolve(dir string) (storage.Bucket, codec.Codec, *fingerprint.Matcher, error) {
	bucket := o.bucket
	if bucket == nil {
		bucket = storage.NewDirBucket(dir)
	}
	format, err := codec.Lookup(o.format)
	if err != nil {
		return nil, nil, nil, err
	}
	matcher, err := fingerprint.New(o.fields...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fingerprint fields: %w", err)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	return bucket, format, matcher, nil
}
