package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Keys and class names used to tag non-native values in text formats.
const (
	ClassKey      = "__class__"
	ClassDatetime = "datetime"
	ClassStream   = "StreamingBody"
	PayloadKey    = "payload"
)

// Tagged converts v into a JSON-native tree: nil, bool, json.Number,
// string, map[string]any and []any. Timestamps and streams become tagged
// maps. The result is suitable for encoding/json and for JSON Schema
// validation.
func Tagged(v Value) (any, error) {
	switch x := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(x), nil
	case Int:
		return json.Number(strconv.FormatInt(int64(x), 10)), nil
	case Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v has no JSON form", ErrUnsupportedType, f)
		}
		return json.Number(formatFloat(f)), nil
	case String:
		if !utf8.ValidString(string(x)) {
			return nil, fmt.Errorf("%w: string is not valid UTF-8", ErrUnsupportedType)
		}
		return string(x), nil
	case Timestamp:
		t := x.Time()
		return map[string]any{
			ClassKey:      ClassDatetime,
			"year":        json.Number(strconv.Itoa(t.Year())),
			"month":       json.Number(strconv.Itoa(int(t.Month()))),
			"day":         json.Number(strconv.Itoa(t.Day())),
			"hour":        json.Number(strconv.Itoa(t.Hour())),
			"minute":      json.Number(strconv.Itoa(t.Minute())),
			"second":      json.Number(strconv.Itoa(t.Second())),
			"microsecond": json.Number(strconv.Itoa(t.Nanosecond() / 1000)),
		}, nil
	case BinaryStream:
		return map[string]any{
			ClassKey:   ClassStream,
			PayloadKey: base64.StdEncoding.EncodeToString(x),
		}, nil
	case Mapping:
		if err := checkMapping(x); err != nil {
			return nil, err
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			tv, err := Tagged(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = tv
		}
		return out, nil
	case Sequence:
		out := make([]any, len(x))
		for i, item := range x {
			tv, err := Tagged(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = tv
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// FromTagged is the inverse of Tagged. Numbers may be json.Number or any Go
// numeric type. Maps carrying an unrecognized __class__ are kept as plain
// mappings.
func FromTagged(t any) (Value, error) {
	switch x := t.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return parseNumber(string(x))
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case map[string]any:
		out := make(Mapping, len(x))
		for k, item := range x {
			v, err := FromTagged(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = v
		}
		return untag(out)
	case []any:
		out := make(Sequence, len(x))
		for i, item := range x {
			v, err := FromTagged(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, t)
}

// checkMapping rejects mappings a text format cannot store faithfully:
// keys that are not valid UTF-8, and a __class__ entry that would decode
// as a timestamp or stream.
func checkMapping(m Mapping) error {
	for k := range m {
		if !utf8.ValidString(k) {
			return fmt.Errorf("%w: mapping key %q is not valid UTF-8", ErrUnsupportedType, k)
		}
	}
	if class, ok := m[ClassKey].(String); ok && (class == ClassDatetime || class == ClassStream) {
		return fmt.Errorf("%w: mapping with %s %q is reserved", ErrUnsupportedType, ClassKey, string(class))
	}
	return nil
}

// untag turns a tagged mapping back into the variant it encodes.
func untag(m Mapping) (Value, error) {
	class, ok := m[ClassKey].(String)
	if !ok {
		return m, nil
	}
	switch string(class) {
	case ClassDatetime:
		var f [7]int
		for i, key := range []string{"year", "month", "day", "hour", "minute", "second", "microsecond"} {
			n, ok := m[key].(Int)
			if !ok {
				return nil, fmt.Errorf("%w: datetime field %q", ErrMalformed, key)
			}
			f[i] = int(n)
		}
		t := time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], f[6]*1000, time.UTC)
		return NewTimestamp(t), nil
	case ClassStream:
		payload, ok := m[PayloadKey].(String)
		if !ok {
			return nil, fmt.Errorf("%w: stream payload", ErrMalformed)
		}
		data, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: stream payload: %v", ErrMalformed, err)
		}
		return BinaryStream(data), nil
	}
	return m, nil
}

func parseNumber(s string) (Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %q", ErrMalformed, s)
	}
	return Float(f), nil
}

// formatFloat renders f so that it reads back as a float, never an int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
