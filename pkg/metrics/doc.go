// Package metrics exposes Prometheus counters for fixture traffic.
//
// All counters carry service and operation labels:
//
//   - pillbox_fixtures_recorded_total: responses written to the store
//   - pillbox_fixtures_replayed_total: responses served in playback
//   - pillbox_fixtures_missed_total: playback lookups that found no fixture
//   - pillbox_fixtures_wrapped_total: playback sequences that wrapped back
//     to the oldest fixture
//
// pillbox_fixture_bytes observes the encoded size of each written fixture.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	m.Recorded("ec2", "DescribeAddresses", 512)
package metrics
