// Package codec converts call payloads into a closed set of storable values
// and serializes those values into fixture documents.
//
// Every payload is first captured into a Value, a sealed variant type with
// exactly these members:
//
//   - Null, Bool, Int, Float, String: scalars
//   - Timestamp: a UTC instant with microsecond precision
//   - BinaryStream: the fully drained contents of a reader or byte slice
//   - Mapping: string-keyed values
//   - Sequence: ordered values
//
// Encoding and decoding are exhaustive switches over these variants, so a
// payload kind that has no variant is rejected with ErrUnsupportedType at
// capture time instead of producing a fixture that cannot be replayed.
//
// # Formats
//
// A Codec serializes a Value tree. Formats are selected by identifier:
//
//	c, err := codec.Lookup("yaml")
//	data, err := c.Marshal(v)
//
// Supported identifiers are "json" (the default), "yaml" and "gob". Unknown
// identifiers fail with ErrUnknownFormat.
//
// Text formats tag non-native values with a "__class__" key:
//
//	{"__class__": "datetime", "year": 2015, "month": 1, "day": 4,
//	 "hour": 9, "minute": 1, "second": 2, "microsecond": 0}
//	{"__class__": "StreamingBody", "payload": "aGVsbG8="}
//
// # Streams
//
// Capturing a reader drains it. The caller's reader is left re-readable:
// seekable readers are rewound to where they were, and readers held in a
// settable location (struct field, map entry, slice element) are swapped for
// a *Stream over the drained bytes.
package codec
