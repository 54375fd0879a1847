package hooks

import (
	"context"
	"strings"

	"github.com/getmockd/pillbox/pkg/codec"
)

// Event name roots.
const (
	BeforeCall = "before-call"
	AfterCall  = "after-call"
)

// EventName joins a root with service and operation.
func EventName(root, service, operation string) string {
	return strings.Join([]string{root, service, operation}, ".")
}

// Response is the outcome of a call.
type Response struct {
	StatusCode int
	Parsed     codec.Value
}

// Event is passed to handlers. Context is shared between the before-call
// and after-call events of one call, so handlers can stash state in it.
type Event struct {
	Name      string
	Service   string
	Operation string
	Params    codec.Value
	Context   map[string]any

	// Response is set on after-call.
	Response *Response
}

// Handler reacts to an event. Returning a non-nil Response from a
// before-call handler short-circuits the call.
type Handler func(ctx context.Context, e *Event) (*Response, error)
