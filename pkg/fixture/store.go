package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/getmockd/pillbox/internal/storage"
	"github.com/getmockd/pillbox/pkg/codec"
	"github.com/getmockd/pillbox/pkg/logging"
	"github.com/getmockd/pillbox/pkg/metrics"
)

// maxCreateAttempts bounds retries when another writer claims an index
// between the scan and the create.
const maxCreateAttempts = 8

// Store saves and replays fixtures. It is safe for concurrent use; one
// mutex serializes index allocation and cursor movement.
type Store struct {
	bucket  storage.Bucket
	format  codec.Codec
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	cursors map[string]int
}

// Option configures a Store.
type Option func(*Store)

// WithFormat sets the encoding used for new and loaded fixtures.
func WithFormat(c codec.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.format = c
		}
	}
}

// WithPrefix prepends prefix and a dot to every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = logging.Component(l, "fixture") }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store over bucket.
func NewStore(bucket storage.Bucket, opts ...Option) *Store {
	s := &Store{
		bucket:  bucket,
		format:  codec.MustLookup(codec.DefaultFormat),
		logger:  logging.Nop(),
		cursors: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Format returns the codec fixtures are written with.
func (s *Store) Format() codec.Codec { return s.format }

// Prefix returns the key prefix.
func (s *Store) Prefix() string { return s.prefix }

// Bucket returns the underlying bucket.
func (s *Store) Bucket() storage.Bucket { return s.bucket }

func (s *Store) base(id Identity) string {
	if s.prefix == "" {
		return id.String()
	}
	return s.prefix + "." + id.String()
}

// Key returns the key of fixture index for id.
func (s *Store) Key(id Identity, index int) string {
	return s.base(id) + "_" + strconv.Itoa(index) + "." + s.format.Extension()
}

// indices lists the stored indices for id in ascending order.
func (s *Store) indices(ctx context.Context, id Identity) ([]int, error) {
	base := s.base(id)
	keys, err := s.bucket.List(ctx, base+"_")
	if err != nil {
		return nil, fmt.Errorf("list fixtures for %s: %w", id, err)
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `_(\d+)\.` + regexp.QuoteMeta(s.format.Extension()) + `$`)
	var out []int
	for _, k := range keys {
		m := pattern.FindStringSubmatch(k)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// Save appends rec as the next fixture for id and returns its key.
func (s *Store) Save(ctx context.Context, id Identity, rec Record) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	data, err := s.format.Marshal(rec.document())
	if err != nil {
		return "", fmt.Errorf("encode fixture for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		existing, err := s.indices(ctx, id)
		if err != nil {
			return "", err
		}
		next := 1
		if len(existing) > 0 {
			next = existing[len(existing)-1] + 1
		}
		key := s.Key(id, next)
		err = s.bucket.Create(ctx, key, data)
		if errors.Is(err, storage.ErrExists) {
			s.logger.Debug("fixture index taken, rescanning", "key", key)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write fixture %s: %w", key, err)
		}
		s.logger.Debug("fixture saved", "key", key, "status", rec.StatusCode)
		s.metrics.Recorded(id.Service, id.Operation, len(data))
		return key, nil
	}
	return "", fmt.Errorf("allocate fixture index for %s: gave up after %d attempts", id, maxCreateAttempts)
}

// LoadNext returns the next fixture in the sequence for id. After the last
// stored fixture it wraps to the first.
func (s *Store) LoadNext(ctx context.Context, id Identity) (Record, error) {
	if err := id.Validate(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.indices(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if len(existing) == 0 {
		s.metrics.Missed(id.Service, id.Operation)
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, s.Key(id, 1))
	}

	base := s.base(id)
	pos := s.cursors[base]
	if pos >= len(existing) {
		pos = 0
		s.logger.Warn("fixture sequence wrapped", "identity", id.String(), "count", len(existing))
		s.metrics.Wrapped(id.Service, id.Operation)
	}
	s.cursors[base] = pos + 1

	key := s.Key(id, existing[pos])
	rec, err := s.Load(ctx, key)
	if err != nil {
		return Record{}, err
	}
	s.logger.Debug("fixture loaded", "key", key)
	s.metrics.Replayed(id.Service, id.Operation)
	return rec, nil
}

// Load reads and decodes one fixture by key.
func (s *Store) Load(ctx context.Context, key string) (Record, error) {
	raw, err := s.bucket.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Record{}, fmt.Errorf("read fixture %s: %w", key, err)
	}
	return Decode(s.format, key, raw)
}

// Decode parses and validates a fixture document.
func Decode(c codec.Codec, key string, raw []byte) (Record, error) {
	doc, err := c.Unmarshal(raw)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %v", ErrCorruptFixture, key, err)
	}
	if err := validateDocument(doc); err != nil {
		return Record{}, fmt.Errorf("%s: %w", key, err)
	}
	rec, err := recordFromDocument(doc)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", key, err)
	}
	return rec, nil
}

// Encode renders rec the way Save writes it.
func Encode(c codec.Codec, rec Record) ([]byte, error) {
	return c.Marshal(rec.document())
}

// List returns every fixture under the store's prefix in the store's
// format, sorted by identity and index.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	keys, err := s.bucket.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list fixtures: %w", err)
	}
	var out []Entry
	for _, k := range keys {
		e, ok := ParseKey(k, s.prefix)
		if !ok || e.Format != s.format.Name() {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Identity.String() != b.Identity.String() {
			return a.Identity.String() < b.Identity.String()
		}
		return a.Index < b.Index
	})
	return out, nil
}

// Count returns how many fixtures are stored for id.
func (s *Store) Count(ctx context.Context, id Identity) (int, error) {
	existing, err := s.indices(ctx, id)
	return len(existing), err
}

// Reset rewinds every playback cursor.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.cursors)
}
