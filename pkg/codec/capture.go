package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
)

var (
	timeType   = reflect.TypeOf(time.Time{})
	readerType = reflect.TypeOf((*io.Reader)(nil)).Elem()
	streamType = reflect.TypeOf((*Stream)(nil))
)

// setter stores a replacement into the location a value was read from.
// It reports false when the location cannot hold the replacement.
type setter func(reflect.Value) bool

// FromGo captures v into a Value. A reader passed directly as v is only
// restored if it is seekable; use Capture to let a top-level reader be
// replaced in place.
func FromGo(v any) (Value, error) {
	return capture(reflect.ValueOf(&v).Elem(), nil)
}

// Capture captures *v into a Value. If *v is (or contains) a reader that
// cannot be rewound, it is replaced with a *Stream over the drained bytes.
func Capture(v *any) (Value, error) {
	if v == nil {
		return Null{}, nil
	}
	rv := reflect.ValueOf(v).Elem()
	return capture(rv, settable(rv))
}

func settable(rv reflect.Value) setter {
	if !rv.CanSet() {
		return nil
	}
	return func(nv reflect.Value) bool {
		if !nv.Type().AssignableTo(rv.Type()) {
			return false
		}
		rv.Set(nv)
		return true
	}
}

func capture(rv reflect.Value, set setter) (Value, error) {
	if !rv.IsValid() {
		return Null{}, nil
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		elem := rv.Elem()
		if elem.Kind() == reflect.Pointer && elem.IsNil() {
			return Null{}, nil
		}
		if isReader(elem) {
			return captureStream(elem, set)
		}
		return capture(elem, nil)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		if isReader(rv) {
			return captureStream(rv, set)
		}
		elem := rv.Elem()
		return capture(elem, settable(elem))
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedType, u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Struct:
		if rv.Type() == timeType {
			return NewTimestamp(rv.Interface().(time.Time)), nil
		}
		return captureStruct(rv)
	case reflect.Map:
		return captureMap(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return Null{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return BinaryStream(bytes.Clone(rv.Bytes())), nil
		}
		return captureList(rv)
	case reflect.Array:
		return captureList(rv)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, rv.Type())
}

func isReader(rv reflect.Value) bool {
	return rv.Type().Implements(readerType)
}

// captureStream drains the reader held by rv and leaves the original
// readable again.
func captureStream(rv reflect.Value, set setter) (Value, error) {
	if s, ok := rv.Interface().(*Stream); ok {
		return BinaryStream(bytes.Clone(s.Bytes())), nil
	}
	r := rv.Interface().(io.Reader)

	if seeker, ok := r.(io.Seeker); ok {
		pos, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("stream position: %w", err)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("drain stream: %w", err)
		}
		if _, err := seeker.Seek(pos, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind stream: %w", err)
		}
		return BinaryStream(data), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("drain stream: %w", err)
	}
	if set != nil && set(reflect.ValueOf(NewStream(data))) {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
		return BinaryStream(bytes.Clone(data)), nil
	}
	if buf, ok := r.(*bytes.Buffer); ok {
		buf.Write(data)
		return BinaryStream(bytes.Clone(data)), nil
	}
	return nil, fmt.Errorf("%w: %T cannot be restored after draining", ErrUnsupportedType, r)
}

func captureStruct(rv reflect.Value) (Value, error) {
	t := rv.Type()
	out := make(Mapping, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := fieldName(sf)
		if !ok {
			continue
		}
		fv := rv.Field(i)
		if omitField(fv) {
			continue
		}
		v, err := capture(fv, settable(fv))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
		out[name] = v
	}
	return out, nil
}

func captureMap(rv reflect.Value) (Value, error) {
	if rv.IsNil() {
		return Null{}, nil
	}
	t := rv.Type()
	if t.Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedType, t.Key())
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	out := make(Mapping, len(keys))
	for _, k := range keys {
		key := k
		set := func(nv reflect.Value) bool {
			if !nv.Type().AssignableTo(t.Elem()) {
				return false
			}
			rv.SetMapIndex(key, nv)
			return true
		}
		v, err := capture(rv.MapIndex(k), set)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k.String(), err)
		}
		out[k.String()] = v
	}
	return out, nil
}

func captureList(rv reflect.Value) (Value, error) {
	out := make(Sequence, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i)
		v, err := capture(ev, settable(ev))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// fieldName resolves the key a struct field is stored under. Unexported
// fields, fields tagged json:"-" and fields of opaque struct types are
// skipped.
func fieldName(sf reflect.StructField) (string, bool) {
	if !sf.IsExported() {
		return "", false
	}
	name := sf.Name
	if tag, ok := sf.Tag.Lookup("json"); ok {
		tagName, _, _ := strings.Cut(tag, ",")
		if tagName == "-" {
			return "", false
		}
		if tagName != "" {
			name = tagName
		}
	}
	if isOpaque(sf.Type) {
		return "", false
	}
	return name, true
}

// isOpaque reports whether t is a struct with no exported fields, such as
// SDK result metadata. Those carry nothing a fixture can restore.
func isOpaque(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return false
		}
	}
	return true
}

func omitField(fv reflect.Value) bool {
	switch fv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return fv.IsNil()
	}
	return false
}
