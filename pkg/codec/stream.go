package codec

import (
	"bytes"
	"io"
)

// Stream is a re-readable body over captured bytes. It satisfies
// io.ReadSeekCloser; Close is a no-op so a replayed body can be consumed and
// closed like a live one.
type Stream struct {
	data []byte
	r    *bytes.Reader
}

// NewStream returns a Stream positioned at the start of data.
func NewStream(data []byte) *Stream {
	return &Stream{data: data, r: bytes.NewReader(data)}
}

func (s *Stream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	return s.r.Seek(offset, whence)
}

// Close implements io.Closer.
func (s *Stream) Close() error { return nil }

// Bytes returns the full contents regardless of the read position.
func (s *Stream) Bytes() []byte { return s.data }

// Len returns the total size of the stream.
func (s *Stream) Len() int { return len(s.data) }

// Reset rewinds the stream to the start.
func (s *Stream) Reset() { s.r.Reset(s.data) }

var _ io.ReadSeekCloser = (*Stream)(nil)
