package codec

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onceReader struct {
	r      io.Reader
	closed bool
}

func (o *onceReader) Read(p []byte) (int, error) { return o.r.Read(p) }
func (o *onceReader) Close() error               { o.closed = true; return nil }

type address struct {
	PublicIp   *string
	Domain     string
	InstanceId *string `json:"instance_id"`
	Ignored    string  `json:"-"`
	private    string
}

type describeAddressesOutput struct {
	Addresses []address
	Count     int32
	Ratio     *float64
	Created   *time.Time
	Labels    map[string]string
	Blob      []byte
	Body      io.ReadCloser
	Metadata  opaque
}

type opaque struct {
	values map[any]any
}

func strPtr(s string) *string { return &s }

func TestFromGoNative(t *testing.T) {
	when := time.Date(2015, 1, 4, 9, 1, 2, 500, time.FixedZone("X", -3600))
	v, err := FromGo(map[string]any{
		"s":    "x",
		"i":    7,
		"u":    uint16(9),
		"f":    float32(1.5),
		"b":    false,
		"nil":  nil,
		"when": when,
		"list": []any{"a", 1},
		"raw":  []byte("abc"),
	})
	require.NoError(t, err)

	assert.Equal(t, Mapping{
		"s":    String("x"),
		"i":    Int(7),
		"u":    Int(9),
		"f":    Float(1.5),
		"b":    Bool(false),
		"nil":  Null{},
		"when": NewTimestamp(time.Date(2015, 1, 4, 10, 1, 2, 0, time.UTC)),
		"list": Sequence{String("a"), Int(1)},
		"raw":  BinaryStream("abc"),
	}, v)
}

func TestFromGoUnsupported(t *testing.T) {
	for name, in := range map[string]any{
		"chan":      make(chan int),
		"func":      func() {},
		"complex":   complex(1, 2),
		"int keys":  map[int]string{1: "a"},
		"nested fn": map[string]any{"f": func() {}},
		"overflow":  uint64(1 << 63),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromGo(in)
			assert.ErrorIs(t, err, ErrUnsupportedType)
		})
	}
}

func TestCaptureStructs(t *testing.T) {
	ratio := 0.25
	out := &describeAddressesOutput{
		Addresses: []address{
			{PublicIp: strPtr("52.53.54.55"), Domain: "standard", Ignored: "x", private: "y"},
		},
		Count:    1,
		Ratio:    &ratio,
		Labels:   map[string]string{"env": "test"},
		Blob:     []byte{1, 2},
		Metadata: opaque{values: map[any]any{1: 2}},
	}

	v, err := FromGo(out)
	require.NoError(t, err)
	assert.Equal(t, Mapping{
		"Addresses": Sequence{Mapping{
			"PublicIp": String("52.53.54.55"),
			"Domain":   String("standard"),
		}},
		"Count":  Int(1),
		"Ratio":  Float(0.25),
		"Labels": Mapping{"env": String("test")},
		"Blob":   BinaryStream{1, 2},
	}, v)
}

func TestCaptureRestoresStreams(t *testing.T) {
	t.Run("struct field is replaced", func(t *testing.T) {
		orig := &onceReader{r: strings.NewReader("payload bytes")}
		out := &describeAddressesOutput{Body: orig}

		v, err := FromGo(out)
		require.NoError(t, err)
		assert.Equal(t, BinaryStream("payload bytes"), v.(Mapping)["Body"])
		assert.True(t, orig.closed)

		// The caller can still consume the body.
		data, err := io.ReadAll(out.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload bytes", string(data))
	})

	t.Run("map entry is replaced", func(t *testing.T) {
		m := map[string]any{"Body": &onceReader{r: strings.NewReader("abc")}}
		_, err := FromGo(m)
		require.NoError(t, err)

		data, err := io.ReadAll(m["Body"].(io.Reader))
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	})

	t.Run("top level reader is replaced through Capture", func(t *testing.T) {
		var payload any = &onceReader{r: strings.NewReader("top")}
		v, err := Capture(&payload)
		require.NoError(t, err)
		assert.Equal(t, BinaryStream("top"), v)

		s, ok := payload.(*Stream)
		require.True(t, ok)
		assert.Equal(t, "top", string(s.Bytes()))
	})

	t.Run("seekable reader is rewound to its position", func(t *testing.T) {
		r := strings.NewReader("0123456789")
		_, _ = r.Seek(4, io.SeekStart)

		v, err := FromGo(r)
		require.NoError(t, err)
		assert.Equal(t, BinaryStream("456789"), v)

		rest, _ := io.ReadAll(r)
		assert.Equal(t, "456789", string(rest))
	})

	t.Run("bytes.Buffer is refilled", func(t *testing.T) {
		buf := bytes.NewBufferString("buffered")
		v, err := FromGo(buf)
		require.NoError(t, err)
		assert.Equal(t, BinaryStream("buffered"), v)
		assert.Equal(t, "buffered", buf.String())
	})

	t.Run("unrestorable reader fails", func(t *testing.T) {
		_, err := FromGo(io.NopCloser(strings.NewReader("gone")))
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("stream values are not drained", func(t *testing.T) {
		s := NewStream([]byte("xyz"))
		_, err := FromGo(s)
		require.NoError(t, err)
		data, _ := io.ReadAll(s)
		assert.Equal(t, "xyz", string(data))
	})
}

func TestToGo(t *testing.T) {
	ts := NewTimestamp(time.Date(2020, 2, 3, 4, 5, 6, 7000, time.UTC))
	got := ToGo(Mapping{
		"a": Sequence{Int(1), Float(2.5), Bool(true), Null{}},
		"t": ts,
		"s": BinaryStream("data"),
	}).(map[string]any)

	assert.Equal(t, []any{int64(1), 2.5, true, nil}, got["a"])
	assert.Equal(t, ts.Time(), got["t"])
	body, ok := got["s"].(*Stream)
	require.True(t, ok)
	data, _ := io.ReadAll(body)
	assert.Equal(t, "data", string(data))
}

func TestIntoTypedStruct(t *testing.T) {
	created := time.Date(2019, 5, 6, 7, 8, 9, 0, time.UTC)
	ratio := 0.75
	src := &describeAddressesOutput{
		Addresses: []address{{PublicIp: strPtr("53.54.55.56"), InstanceId: strPtr("i-1")}},
		Count:     2,
		Ratio:     &ratio,
		Created:   &created,
		Labels:    map[string]string{"a": "b"},
		Blob:      []byte("blob"),
		Body:      io.NopCloser(strings.NewReader("streamed")),
	}
	v, err := FromGo(src)
	require.NoError(t, err)

	// Round trip through the text format the store would use.
	data, err := JSON{}.Marshal(v)
	require.NoError(t, err)
	decoded, err := JSON{}.Unmarshal(data)
	require.NoError(t, err)

	var dst describeAddressesOutput
	require.NoError(t, Into(decoded, &dst))

	require.Len(t, dst.Addresses, 1)
	assert.Equal(t, "53.54.55.56", *dst.Addresses[0].PublicIp)
	assert.Equal(t, "i-1", *dst.Addresses[0].InstanceId)
	assert.Equal(t, int32(2), dst.Count)
	assert.Equal(t, 0.75, *dst.Ratio)
	assert.True(t, created.Equal(*dst.Created))
	assert.Equal(t, map[string]string{"a": "b"}, dst.Labels)
	assert.Equal(t, []byte("blob"), dst.Blob)
	body, err := io.ReadAll(dst.Body)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(body))
}

func TestIntoMismatch(t *testing.T) {
	var n int8
	assert.ErrorIs(t, Into(Int(1000), &n), ErrTypeMismatch)
	var s string
	assert.ErrorIs(t, Into(Int(1), &s), ErrTypeMismatch)
	assert.ErrorIs(t, Into(Int(1), s), ErrTypeMismatch)
}

func TestWalkReplaces(t *testing.T) {
	in := Mapping{"arn": String("a"), "list": Sequence{String("a"), Int(1)}}
	out := Walk(in, func(v Value) Value {
		if s, ok := v.(String); ok && s == "a" {
			return String("b")
		}
		return nil
	})
	assert.Equal(t, Mapping{"arn": String("b"), "list": Sequence{String("b"), Int(1)}}, out)
	assert.Equal(t, String("a"), in["arn"], "input must not be modified")
}
