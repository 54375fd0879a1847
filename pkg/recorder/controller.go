package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/fingerprint"
	"github.com/getmockd/pillbox/pkg/fixture"
	"github.com/getmockd/pillbox/pkg/hooks"
	"github.com/getmockd/pillbox/pkg/logging"
)

// ErrInvalidModeTransition is returned for operations the current mode
// does not allow.
var ErrInvalidModeTransition = errors.New("invalid mode transition")

// Mode is the controller state.
type Mode string

// Modes.
const (
	ModeIdle     Mode = "idle"
	ModeRecord   Mode = "record"
	ModePlayback Mode = "playback"
)

// ParseMode parses record or playback. Anything else is an error.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRecord, ModePlayback, ModeIdle:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Source is something clients are created from, usually a
// *hooks.Session.
type Source interface {
	Registry() *hooks.Registry
	OnClientCreated(fn func(*hooks.Client)) (cancel func())
}

// registration is one hook the controller has installed everywhere.
type registration struct {
	event   string
	id      string
	handler hooks.Handler
}

// Controller records and replays calls made through attached sources.
type Controller struct {
	store       *fixture.Store
	matcher     *fingerprint.Matcher
	keyByParams bool
	maskAccount bool
	condition   *condition
	logger      *slog.Logger
	ns          string

	mu      sync.Mutex
	mode    Mode
	filters []filter
	regs    []registration
	sources []Source
	cancels []func()
	clients []*hooks.Client
}

// New creates an idle controller storing fixtures under dir.
func New(dir string, opts ...Option) (*Controller, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	bucket, format, matcher, err := o.resolve(dir)
	if err != nil {
		return nil, err
	}
	cond, err := compileCondition(o.condition)
	if err != nil {
		return nil, err
	}
	logger := logging.Component(o.logger, "recorder")
	store := fixture.NewStore(bucket,
		fixture.WithFormat(format),
		fixture.WithPrefix(o.prefix),
		fixture.WithLogger(o.logger),
		fixture.WithMetrics(o.metrics),
	)
	return &Controller{
		store:       store,
		matcher:     matcher,
		keyByParams: o.keyByParams,
		maskAccount: o.maskAccount,
		condition:   cond,
		logger:      logger,
		ns:          uuid.NewString(),
		mode:        ModeIdle,
	}, nil
}

// Store returns the fixture store.
func (c *Controller) Store() *fixture.Store { return c.store }

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Events returns the hook names the controller has registered, sorted.
func (c *Controller) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.regs))
	for i, r := range c.regs {
		out[i] = r.event
	}
	sort.Strings(out)
	return out
}

// Clients returns the clients created from attached sources.
func (c *Controller) Clients() []*hooks.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*hooks.Client(nil), c.clients...)
}

// Attach subscribes to client creation on src and installs the current
// mode's hooks on its registry.
func (c *Controller) Attach(src Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sources {
		if s == src {
			return nil
		}
	}
	for _, r := range c.regs {
		if err := src.Registry().Register(r.event, r.handler, r.id); err != nil {
			return err
		}
	}
	c.sources = append(c.sources, src)
	c.cancels = append(c.cancels, src.OnClientCreated(c.clientCreated))
	return nil
}

func (c *Controller) clientCreated(client *hooks.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = append(c.clients, client)
	for _, r := range c.regs {
		if err := client.Registry().Register(r.event, r.handler, r.id); err != nil {
			c.logger.Error("register hook on new client", "event", r.event, "error", err)
		}
	}
}

// registries lists every registry hooks are installed on.
func (c *Controller) registries() []*hooks.Registry {
	out := make([]*hooks.Registry, 0, len(c.sources)+len(c.clients))
	for _, s := range c.sources {
		out = append(out, s.Registry())
	}
	for _, cl := range c.clients {
		out = append(out, cl.Registry())
	}
	return out
}

func (c *Controller) install(event, purpose string, h hooks.Handler) error {
	r := registration{event: event, id: c.ns + ":" + purpose + ":" + event, handler: h}
	for _, reg := range c.registries() {
		if err := reg.Register(r.event, r.handler, r.id); err != nil {
			return err
		}
	}
	c.regs = append(c.regs, r)
	return nil
}

// Record starts recording calls whose service and operation match the
// glob patterns. Empty patterns match everything. Calling Record again
// adds filters. Recording from playback stops playback first.
func (c *Controller) Record(service, operation string) error {
	f, err := newFilter(service, operation)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModePlayback {
		c.stopLocked()
	}
	for _, existing := range c.filters {
		if existing == f {
			c.mode = ModeRecord
			return nil
		}
	}
	if err := c.install(f.event(hooks.BeforeCall), "record", c.stashFingerprint); err != nil {
		return err
	}
	if err := c.install(f.event(hooks.AfterCall), "record", c.recordResponse); err != nil {
		return err
	}
	c.filters = append(c.filters, f)
	if c.mode != ModeRecord {
		c.logger.Info("recording started", "filter", f.String())
	}
	c.mode = ModeRecord
	return nil
}

// Playback starts answering every call from the fixture store. Entering
// playback from record stops recording first.
func (c *Controller) Playback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModePlayback {
		return nil
	}
	if c.mode == ModeRecord {
		c.stopLocked()
	}
	if err := c.install(hooks.BeforeCall, "playback", c.replayResponse); err != nil {
		return err
	}
	c.mode = ModePlayback
	c.logger.Info("playback started")
	return nil
}

// Stop removes every hook and rewinds playback. Stopping an idle
// controller does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.mode == ModeIdle && len(c.regs) == 0 {
		return
	}
	registries := c.registries()
	for _, r := range c.regs {
		for _, reg := range registries {
			reg.Unregister(r.event, r.id)
		}
	}
	c.logger.Info("stopped", "mode", string(c.mode), "hooks", len(c.regs))
	c.regs = nil
	c.filters = nil
	c.mode = ModeIdle
	c.store.Reset()
}

// Close stops the controller and cancels client-creation subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	c.sources = nil
}

// per-call context keys, namespaced by controller.
func (c *Controller) fingerprintKey() string { return c.ns + ":fingerprint" }
func (c *Controller) recordedKey() string    { return c.ns + ":recorded" }

func (c *Controller) identity(service, operation string, params codec.Value, callCtx map[string]any) (fixture.Identity, error) {
	id := fixture.Identity{Service: service, Operation: operation}
	if !c.keyByParams {
		return id, nil
	}
	if fp, ok := callCtx[c.fingerprintKey()].(fingerprint.ID); ok {
		id.Fingerprint = fp.String()
		return id, nil
	}
	fp, err := c.matcher.Fingerprint(service, operation, params)
	if err != nil {
		return fixture.Identity{}, err
	}
	id.Fingerprint = fp.String()
	return id, nil
}

func (c *Controller) stashFingerprint(_ context.Context, e *hooks.Event) (*hooks.Response, error) {
	if _, done := e.Context[c.fingerprintKey()]; done {
		return nil, nil
	}
	fp, err := c.matcher.Fingerprint(e.Service, e.Operation, e.Params)
	if err != nil {
		return nil, err
	}
	e.Context[c.fingerprintKey()] = fp
	c.logger.Debug("call intercepted", "service", e.Service, "operation", e.Operation, "fingerprint", fp.Short())
	return nil, nil
}

func (c *Controller) recordResponse(ctx context.Context, e *hooks.Event) (*hooks.Response, error) {
	if e.Response == nil {
		return nil, nil
	}
	// Overlapping filters install several handlers for one call.
	if _, done := e.Context[c.recordedKey()]; done {
		return nil, nil
	}
	e.Context[c.recordedKey()] = true

	ok, err := c.condition.allows(e)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.logger.Debug("call skipped by condition", "service", e.Service, "operation", e.Operation)
		return nil, nil
	}
	id, err := c.identity(e.Service, e.Operation, e.Params, e.Context)
	if err != nil {
		return nil, err
	}
	if _, err := c.save(ctx, id, e.Response.StatusCode, e.Response.Parsed); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Controller) replayResponse(ctx context.Context, e *hooks.Event) (*hooks.Response, error) {
	id, err := c.identity(e.Service, e.Operation, e.Params, e.Context)
	if err != nil {
		return nil, err
	}
	rec, err := c.store.LoadNext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("playback %s: %w", id, err)
	}
	data := rec.Data
	if c.maskAccount {
		data = maskAccounts(data)
	}
	return &hooks.Response{StatusCode: rec.StatusCode, Parsed: data}, nil
}

func (c *Controller) save(ctx context.Context, id fixture.Identity, status int, data codec.Value) (string, error) {
	if c.maskAccount {
		data = maskAccounts(data)
	}
	key, err := c.store.Save(ctx, id, fixture.Record{StatusCode: status, Data: data})
	if err != nil {
		return "", fmt.Errorf("record %s: %w", id, err)
	}
	c.logger.Debug("response recorded", "key", key)
	return key, nil
}

// SaveOption configures SaveResponse.
type SaveOption func(*saveOptions)

type saveOptions struct {
	status int
	params codec.Value
}

// WithStatus sets the status code of a canned response. Default 200.
func WithStatus(code int) SaveOption {
	return func(o *saveOptions) { o.status = code }
}

// WithParams sets the call parameters a canned response is keyed by when
// the controller keys fixtures by params. They should look like the params
// a client would emit, including context.client_region.
func WithParams(params codec.Value) SaveOption {
	return func(o *saveOptions) { o.params = params }
}

// SaveResponse stores a canned response for service and operation. data
// may be a codec.Value or any Go value FromGo accepts. It is not allowed
// during playback.
func (c *Controller) SaveResponse(ctx context.Context, service, operation string, data any, opts ...SaveOption) (string, error) {
	if mode := c.Mode(); mode == ModePlayback {
		return "", fmt.Errorf("%w: cannot save responses in %s mode", ErrInvalidModeTransition, mode)
	}
	o := saveOptions{status: fixture.DefaultStatusCode}
	for _, opt := range opts {
		opt(&o)
	}

	value, ok := data.(codec.Value)
	if !ok {
		var err error
		value, err = codec.FromGo(data)
		if err != nil {
			return "", fmt.Errorf("capture canned %s.%s response: %w", service, operation, err)
		}
	}
	id, err := c.identity(service, operation, o.params, nil)
	if err != nil {
		return "", err
	}
	return c.save(ctx, id, o.status, value)
}
