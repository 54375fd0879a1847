package pillboxtest

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/assert"

	"github.com/getmockd/pillbox/pkg/fixture"
)

func (f *Fixtures) counts() (map[string]int, error) {
	entries, err := f.ctl.Store().List(context.Background())
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Identity.Service+"."+e.Identity.Operation]++
	}
	return counts, nil
}

// AssertFixtureCount asserts how many fixtures exist for service and
// operation, across all fingerprints.
func (f *Fixtures) AssertFixtureCount(service, operation string, want int) bool {
	f.t.Helper()
	counts, err := f.counts()
	if !assert.NoError(f.t, err, "list fixtures") {
		return false
	}
	return assert.Equal(f.t, want, counts[service+"."+operation],
		"fixtures for %s.%s in %s", service, operation, f.Dir())
}

// AssertNoFixtures asserts that the test has no fixtures at all.
func (f *Fixtures) AssertNoFixtures() bool {
	f.t.Helper()
	counts, err := f.counts()
	if !assert.NoError(f.t, err, "list fixtures") {
		return false
	}
	return assert.Empty(f.t, counts, "fixtures in %s", f.Dir())
}

// Fixture loads the fixture at index (1-based) for service and operation.
func (f *Fixtures) Fixture(service, operation string, index int) (fixture.Record, error) {
	store := f.ctl.Store()
	key := store.Key(fixture.Identity{Service: service, Operation: operation}, index)
	rec, err := store.Load(context.Background(), key)
	if err != nil {
		return fixture.Record{}, fmt.Errorf("fixture %s: %w", key, err)
	}
	return rec, nil
}
