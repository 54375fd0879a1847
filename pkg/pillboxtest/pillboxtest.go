package pillboxtest

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/getmockd/pillbox/pkg/awshook"
	"github.com/getmockd/pillbox/pkg/config"
	"github.com/getmockd/pillbox/pkg/recorder"
)

// Fixtures is the per-test controller.
type Fixtures struct {
	t    testing.TB
	ctl  *recorder.Controller
	cfg  *config.Config
	name string
}

// Option adjusts the environment-derived configuration of one test.
type Option func(*settings)

type settings struct {
	dir      string
	mode     recorder.Mode
	format   string
	recorder []recorder.Option
	config   func(*config.Config)
}

// WithDir overrides PILLBOX_DIR. The test name is still appended.
func WithDir(dir string) Option {
	return func(s *settings) { s.dir = dir }
}

// WithMode overrides PILLBOX_MODE.
func WithMode(mode recorder.Mode) Option {
	return func(s *settings) { s.mode = mode }
}

// WithFormat overrides PILLBOX_FORMAT.
func WithFormat(name string) Option {
	return func(s *settings) { s.format = name }
}

// WithRecorderOptions passes extra options to the controller, applied
// after the configured ones.
func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(s *settings) { s.recorder = append(s.recorder, opts...) }
}

// WithRegisterer reports the test's fixture counters to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return WithRecorderOptions(recorder.WithRegisterer(reg))
}

// WithConfig edits the resolved configuration before the controller is
// built.
func WithConfig(fn func(*config.Config)) Option {
	return func(s *settings) { s.config = fn }
}

// New attaches a controller for t to src and starts it in the configured
// mode. Configuration errors fail the test immediately.
func New(t testing.TB, src recorder.Source, opts ...Option) *Fixtures {
	t.Helper()

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("pillbox: load config: %v", err)
	}
	if s.dir != "" {
		cfg.Dir = s.dir
	}
	if s.mode != "" {
		cfg.Mode = s.mode
	}
	if s.format != "" {
		cfg.Format = s.format
	}
	if s.config != nil {
		s.config(cfg)
	}

	name := t.Name()
	cfg.Dir = filepath.Join(cfg.Dir, filepath.Join(strings.Split(name, "/")...))
	cfg.Store.S3.Prefix = path.Join(cfg.Store.S3.Prefix, name)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("pillbox: %v", err)
	}

	ropts := append([]recorder.Option{recorder.WithLogger(cfg.Logger(logWriter{t}))}, s.recorder...)
	ctl, err := cfg.NewController(context.Background(), ropts...)
	if err != nil {
		t.Fatalf("pillbox: %v", err)
	}
	t.Cleanup(ctl.Close)

	if err := ctl.Attach(src); err != nil {
		t.Fatalf("pillbox: attach: %v", err)
	}
	if err := cfg.Start(ctl); err != nil {
		t.Fatalf("pillbox: start %s: %v", cfg.Mode, err)
	}
	return &Fixtures{t: t, ctl: ctl, cfg: cfg, name: name}
}

// Session wraps an AWS config for t. SDK clients built from the returned
// config record or replay through the returned Fixtures.
func Session(t testing.TB, cfg aws.Config, opts ...Option) (aws.Config, *Fixtures) {
	t.Helper()
	sess := awshook.NewSession(cfg)
	fx := New(t, sess, opts...)
	return sess.Config(), fx
}

// Controller returns the underlying controller.
func (f *Fixtures) Controller() *recorder.Controller { return f.ctl }

// Dir returns the fixture directory of the test.
func (f *Fixtures) Dir() string { return f.cfg.Dir }

// Mode returns the mode the test runs in.
func (f *Fixtures) Mode() recorder.Mode { return f.ctl.Mode() }

// Recording reports whether the test is recording.
func (f *Fixtures) Recording() bool { return f.ctl.Mode() == recorder.ModeRecord }

// Close stops the controller before the test ends. It is safe to call
// more than once.
func (f *Fixtures) Close() { f.ctl.Close() }

// logWriter sends log lines to the test log.
type logWriter struct{ t testing.TB }

func (w logWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
