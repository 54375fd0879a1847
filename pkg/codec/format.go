package codec

import (
	"fmt"
	"strings"
)

// Format identifiers.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatGob  = "gob"

	DefaultFormat = FormatJSON
)

// Codec serializes Value trees.
type Codec interface {
	// Name is the canonical format identifier.
	Name() string
	// Extension is the file extension, without the dot.
	Extension() string
	Marshal(v Value) ([]byte, error)
	Unmarshal(data []byte) (Value, error)
}

// Lookup returns the codec for a format identifier. The empty string selects
// DefaultFormat. Unknown identifiers are rejected with ErrUnknownFormat.
func Lookup(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatJSON:
		return JSON{}, nil
	case FormatYAML, "yml":
		return YAML{}, nil
	case FormatGob:
		return Gob{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// MustLookup is Lookup for identifiers known at compile time.
func MustLookup(name string) Codec {
	c, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Formats lists the canonical format identifiers.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatGob}
}

// ByExtension returns the codec whose files use ext.
func ByExtension(ext string) (Codec, bool) {
	ext = strings.TrimPrefix(ext, ".")
	for _, name := range Formats() {
		c := MustLookup(name)
		if c.Extension() == ext {
			return c, true
		}
	}
	return nil, false
}
