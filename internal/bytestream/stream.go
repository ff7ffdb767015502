// Package bytestream opens the bytes behind a split: it resolves the path to
// a datasource, enters it at the requested offset, applies a decompression
// codec chosen by suffix, and exposes buffered byte access with a cursor.
package bytestream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"splitread/internal/codec"
	"splitread/internal/datasource"
)

// DefaultBufferSize is used when the configured size is not positive.
const DefaultBufferSize = 64 * 1024

// ErrUnsplittable is returned when a compressed file is entered at a non-zero
// offset. Compressed inputs are only readable as one split from offset 0.
var ErrUnsplittable = errors.New("bytestream: compressed input cannot be split")

// Stream is a sequential, buffered view of a split's bytes. Position counts
// bytes of the logical (decompressed) file. A Stream is not safe for
// concurrent use.
type Stream struct {
	path    string
	br      *bufio.Reader
	closers []io.Closer
	pos     int64
	codec   string
}

// Open resolves path and returns a Stream positioned at offset.
func Open(ctx context.Context, path string, offset int64, bufSize int) (*Stream, error) {
	src, err := datasource.ForPath(path)
	if err != nil {
		return nil, err
	}
	return OpenSource(ctx, src, path, offset, bufSize)
}

// OpenSource is Open for an already resolved source. path is used for codec
// detection and error messages.
func OpenSource(ctx context.Context, src datasource.RangeSource, path string, offset int64, bufSize int) (*Stream, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	c, compressed := codec.ForPath(path)
	if compressed && offset != 0 {
		return nil, fmt.Errorf("%w: %s (%s) at offset %d", ErrUnsplittable, path, c.Name, offset)
	}

	raw, err := src.OpenAt(ctx, offset)
	if err != nil {
		return nil, err
	}
	s := &Stream{path: path, pos: offset, closers: []io.Closer{raw}}

	var r io.Reader = raw
	if compressed {
		dec, err := c.Open(bufio.NewReaderSize(raw, bufSize))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s.closers = append(s.closers, dec)
		s.codec = c.Name
		r = dec
	}
	s.br = bufio.NewReaderSize(r, bufSize)
	return s, nil
}

// Codec names the decompressor in use, or "" for raw input.
func (s *Stream) Codec() string { return s.codec }

// Compressed reports whether positions refer to decompressed bytes.
func (s *Stream) Compressed() bool { return s.codec != "" }

// Position is the file offset of the next byte ReadByte would return.
func (s *Stream) Position() int64 { return s.pos }

// ReadByte returns the next byte, or io.EOF at the end of the file.
func (s *Stream) ReadByte() (byte, error) {
	b, err := s.br.ReadByte()
	if err != nil {
		return 0, s.wrap(err)
	}
	s.pos++
	return b, nil
}

// Peek returns up to n upcoming bytes without consuming them. Near the end
// of the file it returns fewer bytes together with io.EOF.
func (s *Stream) Peek(n int) ([]byte, error) {
	b, err := s.br.Peek(n)
	if err != nil && len(b) == 0 {
		return nil, s.wrap(err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return b, s.wrap(err)
	}
	return b, err
}

// Discard skips n bytes.
func (s *Stream) Discard(n int) (int, error) {
	d, err := s.br.Discard(n)
	s.pos += int64(d)
	if err != nil {
		return d, s.wrap(err)
	}
	return d, nil
}

// Close releases the decoder and the underlying source, innermost first. It
// is safe to call more than once.
func (s *Stream) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// wrap annotates read failures with the path and offset; io.EOF passes
// through untouched so callers can compare against it.
func (s *Stream) wrap(err error) error {
	if err == io.EOF {
		return err
	}
	return fmt.Errorf("read %s at %d: %w", s.path, s.pos, err)
}
