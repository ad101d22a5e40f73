// Package stream provides the byte-stream input that demuxers read from.
// It exposes peeking (read-ahead without consuming) for format probing, and
// optional seeking for demuxers that support position queries. A short peek
// is a recoverable condition: probing code must treat it as "not enough
// data", never as fatal.
package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// peekBufferSize bounds how far ahead Peek can look. 64 KiB is enough for
// every format probe in this module while keeping per-stream memory small.
const peekBufferSize = 64 << 10

// Reader is the minimal input surface a demuxer may rely on: consuming reads
// plus bounded read-ahead.
type Reader interface {
	io.Reader

	// Peek returns the next n bytes without consuming them. If fewer than n
	// bytes are available it returns what is buffered along with an error;
	// callers probing a format should report that as not-enough-data rather
	// than failing the stream.
	Peek(n int) ([]byte, error)
}

// Seeker extends Reader with random access. Demuxers that can compute byte
// positions (directly or through the control helper) require a Seeker.
type Seeker interface {
	Reader

	// Seek repositions the next read to the absolute byte offset.
	Seek(offset int64) error
	// Tell returns the absolute offset of the next read.
	Tell() int64
	// Size returns the total stream size in bytes, or false if unknown.
	Size() (int64, bool)
}

type reader struct {
	br  *bufio.Reader
	off int64
}

// New wraps a plain io.Reader (a network connection, a pipe) into a Reader.
// The result is not seekable.
func New(r io.Reader) Reader {
	return &reader{br: bufio.NewReaderSize(r, peekBufferSize)}
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.br.Read(p)
	r.off += int64(n)
	return n, err
}

func (r *reader) Peek(n int) ([]byte, error) {
	return r.br.Peek(n)
}

type seeker struct {
	rs   io.ReadSeeker
	br   *bufio.Reader
	off  int64
	size int64 // < 0 when unknown
}

// NewSeeker wraps an io.ReadSeeker into a Seeker. Pass size < 0 when the
// total length is unknown.
func NewSeeker(rs io.ReadSeeker, size int64) Seeker {
	return &seeker{
		rs:   rs,
		br:   bufio.NewReaderSize(rs, peekBufferSize),
		size: size,
	}
}

// NewBytes returns an in-memory Seeker over b.
func NewBytes(b []byte) Seeker {
	return NewSeeker(bytes.NewReader(b), int64(len(b)))
}

// OpenFile opens path and returns a Seeker over its contents together with
// a closer for the underlying file.
func OpenFile(path string) (Seeker, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stream: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stream: stat %s: %w", path, err)
	}
	return NewSeeker(f, st.Size()), f, nil
}

func (s *seeker) Read(p []byte) (int, error) {
	n, err := s.br.Read(p)
	s.off += int64(n)
	return n, err
}

func (s *seeker) Peek(n int) ([]byte, error) {
	return s.br.Peek(n)
}

func (s *seeker) Seek(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("stream: negative seek offset %d", offset)
	}
	if _, err := s.rs.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("stream: seek to %d: %w", offset, err)
	}
	s.br.Reset(s.rs)
	s.off = offset
	return nil
}

func (s *seeker) Tell() int64 {
	return s.off
}

func (s *seeker) Size() (int64, bool) {
	if s.size < 0 {
		return 0, false
	}
	return s.size, true
}
