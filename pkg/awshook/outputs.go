package awshook

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ErrOutputNotRegistered is returned in playback when the typed output of
// an operation was never registered.
var ErrOutputNotRegistered = errors.New("operation output type not registered")

var outputTypes = struct {
	sync.RWMutex
	types map[string]reflect.Type
}{types: make(map[string]reflect.Type)}

// RegisterOutputs makes the given operation outputs available to playback.
// Pass pointers to zero values, e.g. &s3.ListBucketsOutput{}.
func RegisterOutputs(outputs ...any) {
	outputTypes.Lock()
	defer outputTypes.Unlock()
	for _, out := range outputs {
		t := structType(reflect.TypeOf(out))
		if t == nil {
			continue
		}
		outputTypes.types[typeKey(t)] = t
	}
}

func structType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func typeKey(t reflect.Type) string { return t.PkgPath() + "." + t.Name() }

// outputFor resolves the output type paired with an operation input:
// FooInput in a package pairs with FooOutput in the same package.
func outputFor(input any) (reflect.Type, error) {
	in := structType(reflect.TypeOf(input))
	if in == nil || !strings.HasSuffix(in.Name(), "Input") {
		return nil, fmt.Errorf("%w: input %T", ErrOutputNotRegistered, input)
	}
	name := strings.TrimSuffix(in.Name(), "Input") + "Output"

	outputTypes.RLock()
	defer outputTypes.RUnlock()
	t, ok := outputTypes.types[in.PkgPath()+"."+name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrOutputNotRegistered, in.PkgPath(), name)
	}
	return t, nil
}
