// Package parsertest provides in-memory streams and helpers for scanner tests.
package parsertest

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"splitread/internal/parser"
)

// Stream is an in-memory parser.Stream over data, starting at file offset
// base. A small buffer size exercises markers that straddle refills.
type Stream struct {
	br  *bufio.Reader
	pos int64
}

// NewStream returns a stream over data whose first byte is at offset base.
func NewStream(data []byte, base int64, bufSize int) *Stream {
	return &Stream{br: bufio.NewReaderSize(bytes.NewReader(data), bufSize), pos: base}
}

// At returns a stream over data[off:] that reports offsets relative to the
// whole of data.
func At(data []byte, off int64) *Stream {
	return NewStream(data[off:], off, 16)
}

func (s *Stream) ReadByte() (byte, error) {
	b, err := s.br.ReadByte()
	if err == nil {
		s.pos++
	}
	return b, err
}

func (s *Stream) Peek(n int) ([]byte, error) { return s.br.Peek(n) }

func (s *Stream) Discard(n int) (int, error) {
	d, err := s.br.Discard(n)
	s.pos += int64(d)
	return d, err
}

func (s *Stream) Position() int64 { return s.pos }

// Record is a scanned record with its raw bytes copied out.
type Record struct {
	Raw    string
	Offset int64
}

// All drains sc over s with the given ownership test.
func All(t testing.TB, sc parser.Scanner, s parser.Stream, owns parser.Owns) ([]Record, error) {
	t.Helper()
	var out []Record
	for {
		raw, off, err := sc.Next(s, owns)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, Record{Raw: string(raw), Offset: off})
	}
}

// Always owns every record start.
func Always(int64) bool { return true }
