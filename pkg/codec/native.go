package codec

import (
	"bytes"
	"fmt"
	"reflect"
)

// ToGo converts v into plain Go values: nil, bool, int64, float64, string,
// time.Time (UTC), *Stream, map[string]any and []any.
func ToGo(v Value) any {
	switch x := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Float:
		return float64(x)
	case String:
		return string(x)
	case Timestamp:
		return x.Time()
	case BinaryStream:
		return NewStream(bytes.Clone(x))
	case Mapping:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = ToGo(item)
		}
		return out
	case Sequence:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = ToGo(item)
		}
		return out
	}
	return nil
}

// Into decodes v into target, which must be a non-nil pointer. Struct fields
// are matched by the same names Capture writes. Keys with no matching field
// are ignored.
func Into(v Value, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer, got %T", ErrTypeMismatch, target)
	}
	return into(v, rv.Elem())
}

func into(v Value, rv reflect.Value) error {
	if v == nil {
		v = Null{}
	}
	if _, ok := v.(Null); ok {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return into(v, rv.Elem())
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			rv.Set(reflect.ValueOf(ToGo(v)))
			return nil
		}
		if b, ok := v.(BinaryStream); ok && streamType.Implements(rv.Type()) {
			rv.Set(reflect.ValueOf(NewStream(bytes.Clone(b))))
			return nil
		}
		return mismatch(v, rv)
	}

	switch x := v.(type) {
	case Bool:
		if rv.Kind() == reflect.Bool {
			rv.SetBool(bool(x))
			return nil
		}
	case Int:
		return intoInt(int64(x), rv, v)
	case Float:
		if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
			rv.SetFloat(float64(x))
			return nil
		}
	case String:
		if rv.Kind() == reflect.String {
			rv.SetString(string(x))
			return nil
		}
	case Timestamp:
		if rv.Type() == timeType {
			rv.Set(reflect.ValueOf(x.Time()))
			return nil
		}
	case BinaryStream:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			rv.Set(reflect.ValueOf(bytes.Clone(x)).Convert(rv.Type()))
			return nil
		}
	case Mapping:
		switch rv.Kind() {
		case reflect.Struct:
			return intoStruct(x, rv)
		case reflect.Map:
			return intoMap(x, rv)
		}
	case Sequence:
		return intoList(x, rv)
	}
	return mismatch(v, rv)
}

func intoInt(n int64, rv reflect.Value, v Value) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, n, rv.Type())
		}
		rv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || rv.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: %d overflows %s", ErrTypeMismatch, n, rv.Type())
		}
		rv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		rv.SetFloat(float64(n))
		return nil
	}
	return mismatch(v, rv)
}

func intoStruct(m Mapping, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, ok := fieldName(sf)
		if !ok {
			continue
		}
		item, ok := m[name]
		if !ok {
			continue
		}
		if err := into(item, rv.Field(i)); err != nil {
			return fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err)
		}
	}
	return nil
}

func intoMap(m Mapping, rv reflect.Value) error {
	t := rv.Type()
	if t.Key().Kind() != reflect.String {
		return fmt.Errorf("%w: map key %s", ErrTypeMismatch, t.Key())
	}
	out := reflect.MakeMapWithSize(t, len(m))
	for k, item := range m {
		ev := reflect.New(t.Elem()).Elem()
		if err := into(item, ev); err != nil {
			return fmt.Errorf("[%q]: %w", k, err)
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
	}
	rv.Set(out)
	return nil
}

func intoList(s Sequence, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(rv.Type(), len(s), len(s))
		for i, item := range s {
			if err := into(item, out.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		rv.Set(out)
		return nil
	case reflect.Array:
		for i := 0; i < rv.Len() && i < len(s); i++ {
			if err := into(s[i], rv.Index(i)); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	}
	return mismatch(s, rv)
}

func mismatch(v Value, rv reflect.Value) error {
	return fmt.Errorf("%w: cannot decode %s into %s", ErrTypeMismatch, v.Kind(), rv.Type())
}
