package hooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

type registration struct {
	id  string
	seq uint64
	fn  Handler
}

// Registry maps event names to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	seq      uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]registration)}
}

// Register adds fn under event. Registering the same id twice for one event
// is a no-op. An empty id registers an anonymous handler that cannot be
// removed.
func (r *Registry) Register(event string, fn Handler, id string) error {
	if event == "" || fn == nil {
		return fmt.Errorf("register %q: event and handler are required", event)
	}
	for _, seg := range strings.Split(event, ".") {
		if !doublestar.ValidatePattern(seg) {
			return fmt.Errorf("register %q: invalid pattern segment %q", event, seg)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id != "" {
		for _, reg := range r.handlers[event] {
			if reg.id == id {
				return nil
			}
		}
	}
	r.seq++
	r.handlers[event] = append(r.handlers[event], registration{id: id, seq: r.seq, fn: fn})
	return nil
}

// Unregister removes the handler registered under event with id. It
// reports whether one was removed.
func (r *Registry) Unregister(event, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs := r.handlers[event]
	for i, reg := range regs {
		if reg.id == id {
			regs = append(regs[:i:i], regs[i+1:]...)
			if len(regs) == 0 {
				delete(r.handlers, event)
			} else {
				r.handlers[event] = regs
			}
			return true
		}
	}
	return false
}

// IDs returns the ids registered under exactly event, in registration order.
func (r *Registry) IDs(event string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	regs := r.handlers[event]
	out := make([]string, len(regs))
	for i, reg := range regs {
		out[i] = reg.id
	}
	return out
}

// Events returns every registered name that has at least one handler.
func (r *Registry) Events() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, regs := range r.handlers {
		n += len(regs)
	}
	return n
}

// Clone returns a registry with the same registrations.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &Registry{handlers: make(map[string][]registration, len(r.handlers)), seq: r.seq}
	for name, regs := range r.handlers {
		c.handlers[name] = append([]registration(nil), regs...)
	}
	return c
}

type match struct {
	depth int
	registration
}

// matching returns the handlers whose names match event, least specific
// first and in registration order within one depth.
func (r *Registry) matching(event string) []match {
	segs := strings.Split(event, ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []match
	for name, regs := range r.handlers {
		pattern := strings.Split(name, ".")
		if !segmentsMatch(pattern, segs) {
			continue
		}
		for _, reg := range regs {
			out = append(out, match{depth: len(pattern), registration: reg})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].depth != out[j].depth {
			return out[i].depth < out[j].depth
		}
		return out[i].seq < out[j].seq
	})
	return out
}

func segmentsMatch(pattern, segs []string) bool {
	if len(pattern) > len(segs) {
		return false
	}
	for i, p := range pattern {
		ok, err := doublestar.Match(p, segs[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Emit calls every handler matching e.Name. It stops at the first error
// or the first non-nil Response and returns it.
func (r *Registry) Emit(ctx context.Context, e *Event) (*Response, error) {
	for _, m := range r.matching(e.Name) {
		resp, err := m.fn(ctx, e)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}
