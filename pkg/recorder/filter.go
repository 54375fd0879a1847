package recorder

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// filter selects the calls recorded by one Record call. Both parts are
// glob patterns matched against a single name segment.
type filter struct {
	service   string
	operation string
}

func newFilter(service, operation string) (filter, error) {
	if service == "" {
		service = "*"
	}
	if operation == "" {
		operation = "*"
	}
	for _, p := range []string{service, operation} {
		if !doublestar.ValidatePattern(p) {
			return filter{}, fmt.Errorf("invalid record filter pattern %q", p)
		}
	}
	return filter{service: service, operation: operation}, nil
}

func (f filter) String() string { return f.service + "." + f.operation }

// event returns the hook name for root under this filter.
func (f filter) event(root string) string {
	return root + "." + f.String()
}
