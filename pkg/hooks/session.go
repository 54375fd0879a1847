package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/getmockd/pillbox/pkg/codec"
)

// ErrNoBackend is returned by Call on a client created without a backend.
var ErrNoBackend = errors.New("client has no backend")

// Keys injected into call params.
const (
	ParamContext      = "context"
	ParamClientRegion = "client_region"
)

// Backend performs a real call.
type Backend func(ctx context.Context, operation string, params codec.Value) (*Response, error)

// Session creates clients and tells observers about them.
type Session struct {
	registry *Registry
	region   string

	mu        sync.Mutex
	observers map[int]func(*Client)
	nextObs   int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRegion sets the region new clients report.
func WithRegion(region string) SessionOption {
	return func(s *Session) { s.region = region }
}

// NewSession creates a session with an empty registry.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		registry:  NewRegistry(),
		observers: make(map[int]func(*Client)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the session registry.
func (s *Session) Registry() *Registry { return s.registry }

// Region returns the default region.
func (s *Session) Region() string { return s.region }

// OnClientCreated calls fn for every client created from now on. The
// returned function cancels the subscription.
func (s *Session) OnClientCreated(fn func(*Client)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientRegion overrides the session region for one client.
func WithClientRegion(region string) ClientOption {
	return func(c *Client) { c.region = region }
}

// NewClient creates a client for service. Its registry starts as a copy of
// the session registry. Observers run before NewClient returns.
func (s *Session) NewClient(service string, backend Backend, opts ...ClientOption) *Client {
	c := &Client{
		service:  service,
		region:   s.region,
		backend:  backend,
		registry: s.registry.Clone(),
	}
	for _, opt := range opts {
		opt(c)
	}

	s.mu.Lock()
	observers := make([]func(*Client), 0, len(s.observers))
	for id := 0; id < s.nextObs; id++ {
		if fn, ok := s.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(c)
	}
	return c
}

// Client emits call events around a backend.
type Client struct {
	service  string
	region   string
	backend  Backend
	registry *Registry
}

// Service returns the service name used in event names.
func (c *Client) Service() string { return c.service }

// Region returns the client region.
func (c *Client) Region() string { return c.region }

// Registry returns the client registry.
func (c *Client) Registry() *Registry { return c.registry }

// Call invokes operation through the hooks and the client backend.
func (c *Client) Call(ctx context.Context, operation string, params codec.Value) (*Response, error) {
	return c.Invoke(ctx, operation, params, func(ctx context.Context) (*Response, error) {
		if c.backend == nil {
			return nil, fmt.Errorf("%s.%s: %w", c.service, operation, ErrNoBackend)
		}
		return c.backend(ctx, operation, params)
	})
}

// Invoke runs call between the before-call and after-call events of the
// client service.
func (c *Client) Invoke(ctx context.Context, operation string, params codec.Value, call func(context.Context) (*Response, error)) (*Response, error) {
	return c.InvokeAs(ctx, c.service, operation, params, call)
}

// InvokeAs is Invoke for clients that serve several services. The client
// region is added to params under context.client_region unless params
// already carry one. If a before-call handler returns a response, call is
// skipped.
func (c *Client) InvokeAs(ctx context.Context, service, operation string, params codec.Value, call func(context.Context) (*Response, error)) (*Response, error) {
	params = withRegion(params, c.region)
	e := &Event{
		Name:      EventName(BeforeCall, service, operation),
		Service:   service,
		Operation: operation,
		Params:    params,
		Context:   make(map[string]any),
	}

	resp, err := c.registry.Emit(ctx, e)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp, err = call(ctx)
		if err != nil {
			return nil, err
		}
	}

	after := &Event{
		Name:      EventName(AfterCall, service, operation),
		Service:   service,
		Operation: operation,
		Params:    params,
		Context:   e.Context,
		Response:  resp,
	}
	if _, err := c.registry.Emit(ctx, after); err != nil {
		return nil, err
	}
	return resp, nil
}

func withRegion(params codec.Value, region string) codec.Value {
	m, ok := params.(codec.Mapping)
	if !ok {
		if params != nil {
			if _, isNull := params.(codec.Null); !isNull {
				return params
			}
		}
		m = codec.Mapping{}
	}
	out := make(codec.Mapping, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	callCtx := codec.Mapping{}
	if existing, ok := m[ParamContext].(codec.Mapping); ok {
		for k, v := range existing {
			callCtx[k] = v
		}
	}
	if _, ok := callCtx[ParamClientRegion]; !ok {
		callCtx[ParamClientRegion] = codec.String(region)
	}
	out[ParamContext] = callCtx
	return out
}
