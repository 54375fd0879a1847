package fixture

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/getmockd/pillbox/pkg/codec"
)

var (
	// ErrNotFound is returned when no fixture exists for an identity.
	ErrNotFound = errors.New("fixture not found")
	// ErrCorruptFixture is returned when a stored document cannot be parsed
	// or does not have the fixture shape.
	ErrCorruptFixture = errors.New("corrupt fixture")
	// ErrInvalidIdentity is returned for identities that cannot form a name.
	ErrInvalidIdentity = errors.New("invalid fixture identity")
)

// Document keys.
const (
	KeyStatusCode = "status_code"
	KeyData       = "data"
)

// DefaultStatusCode is used when a record has no status code.
const DefaultStatusCode = 200

// Identity names a sequence of fixtures.
type Identity struct {
	Service   string
	Operation string
	// Fingerprint is optional. When set, calls to the same operation with
	// different parameters get separate sequences.
	Fingerprint string
}

func (id Identity) String() string {
	s := id.Service + "." + id.Operation
	if id.Fingerprint != "" {
		s += "." + id.Fingerprint
	}
	return s
}

// Validate checks that every part of id can be embedded in a key.
func (id Identity) Validate() error {
	if id.Service == "" || id.Operation == "" {
		return fmt.Errorf("%w: service and operation are required", ErrInvalidIdentity)
	}
	for _, part := range []string{id.Service, id.Operation, id.Fingerprint} {
		if strings.ContainsAny(part, "./\\") {
			return fmt.Errorf("%w: %q contains a separator", ErrInvalidIdentity, part)
		}
	}
	return nil
}

// Record is a stored response.
type Record struct {
	StatusCode int
	Data       codec.Value
}

func (r Record) document() codec.Mapping {
	status := r.StatusCode
	if status == 0 {
		status = DefaultStatusCode
	}
	data := r.Data
	if data == nil {
		data = codec.Null{}
	}
	return codec.Mapping{
		KeyStatusCode: codec.Int(status),
		KeyData:       data,
	}
}

func recordFromDocument(v codec.Value) (Record, error) {
	m, ok := v.(codec.Mapping)
	if !ok {
		return Record{}, fmt.Errorf("%w: document is %s, not a mapping", ErrCorruptFixture, v.Kind())
	}
	status, ok := m[KeyStatusCode].(codec.Int)
	if !ok {
		return Record{}, fmt.Errorf("%w: %s is missing or not an integer", ErrCorruptFixture, KeyStatusCode)
	}
	data, ok := m[KeyData]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s is missing", ErrCorruptFixture, KeyData)
	}
	return Record{StatusCode: int(status), Data: data}, nil
}

// Entry describes a stored fixture parsed from its key.
type Entry struct {
	Key      string
	Identity Identity
	Index    int
	Format   string
}

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ParseKey splits a fixture key into its parts. The prefix, if any, must
// match exactly. Keys in nested directories belong to another sequence
// set and are rejected.
func ParseKey(key, prefix string) (Entry, bool) {
	name := key
	if prefix != "" {
		rest, ok := strings.CutPrefix(name, prefix+".")
		if !ok {
			return Entry{}, false
		}
		name = rest
	}

	if strings.ContainsAny(name, "/\\") {
		return Entry{}, false
	}

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return Entry{}, false
	}
	c, ok := codec.ByExtension(name[dot+1:])
	if !ok {
		return Entry{}, false
	}
	name = name[:dot]

	us := strings.LastIndexByte(name, '_')
	if us < 0 {
		return Entry{}, false
	}
	index, err := strconv.Atoi(name[us+1:])
	if err != nil || index < 1 {
		return Entry{}, false
	}

	parts := strings.Split(name[:us], ".")
	var id Identity
	switch {
	case len(parts) == 2:
		id = Identity{Service: parts[0], Operation: parts[1]}
	case len(parts) == 3 && fingerprintPattern.MatchString(parts[2]):
		id = Identity{Service: parts[0], Operation: parts[1], Fingerprint: parts[2]}
	default:
		return Entry{}, false
	}
	if id.Service == "" || id.Operation == "" {
		return Entry{}, false
	}
	return Entry{Key: key, Identity: id, Index: index, Format: c.Name()}, true
}
