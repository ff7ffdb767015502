// Package xmlparser extracts tag-delimited fragments from a byte stream.
//
// A record is the span from the first byte of a start-tag sequence through
// the last byte of the next end-tag sequence, kept verbatim. Bytes between
// records are discarded. Tags are plain byte sequences in the stream
// encoding; the scanner does not parse XML, so nested elements with the same
// start tag are not supported.
package xmlparser

import (
	"errors"
	"fmt"
	"io"

	"splitread/internal/parser"
	"splitread/internal/textenc"
)

// DefaultMaxRecordSize bounds a record when Options leaves it zero.
const DefaultMaxRecordSize = 64 << 20

// Options configures a Scanner. StartTag and EndTag are required.
type Options struct {
	Encoding      *textenc.Encoding
	StartTag      string
	EndTag        string
	MaxRecordSize int
}

// Scanner implements parser.Scanner for tag-delimited fragments. It is not
// safe for concurrent use.
type Scanner struct {
	start, end matcher
	unit       int
	max        int
	buf        []byte
}

var _ parser.Scanner = (*Scanner)(nil)

// New encodes the tags and returns a Scanner.
func New(opt Options) (*Scanner, error) {
	if opt.StartTag == "" || opt.EndTag == "" {
		return nil, errors.New("xml: start_tag and end_tag are required")
	}
	enc := opt.Encoding
	if enc == nil {
		enc = textenc.MustLookup("")
	}
	if opt.MaxRecordSize <= 0 {
		opt.MaxRecordSize = DefaultMaxRecordSize
	}
	st, err := enc.Encode(opt.StartTag)
	if err != nil {
		return nil, fmt.Errorf("xml: start tag: %w", err)
	}
	et, err := enc.Encode(opt.EndTag)
	if err != nil {
		return nil, fmt.Errorf("xml: end tag: %w", err)
	}
	if len(st)+len(et) > opt.MaxRecordSize {
		return nil, fmt.Errorf("xml: tags are longer than max record size %d", opt.MaxRecordSize)
	}
	return &Scanner{
		start: newMatcher(st),
		end:   newMatcher(et),
		unit:  enc.Unit(),
		max:   opt.MaxRecordSize,
	}, nil
}

// SkipPartial is a no-op: ownership is decided by where a start tag begins,
// and a split never sees the beginning of an earlier split's element.
func (sc *Scanner) SkipPartial(parser.Stream) error { return nil }

// Next implements parser.Scanner. owns is asked about every candidate
// start-tag position before the byte that would extend it is read, so a
// match already under way when the split end is reached is finished.
func (sc *Scanner) Next(s parser.Stream, owns parser.Owns) ([]byte, int64, error) {
	sc.start.reset()
	var off int64
	for {
		cand := s.Position() - int64(sc.start.progress())
		if !owns(cand) {
			return nil, cand, io.EOF
		}
		b, err := s.ReadByte()
		if err != nil {
			return nil, cand, err
		}
		if sc.start.step(b) {
			off = s.Position() - int64(len(sc.start.pat))
			if sc.aligned(off) {
				break
			}
		}
	}

	sc.buf = append(sc.buf[:0], sc.start.pat...)
	sc.end.reset()
	for {
		b, err := s.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, off, &parser.UnterminatedElementError{Offset: off}
			}
			return nil, off, err
		}
		if len(sc.buf) >= sc.max {
			return nil, off, &parser.RecordTooLargeError{Offset: off, Limit: sc.max}
		}
		sc.buf = append(sc.buf, b)
		if sc.end.step(b) && sc.aligned(s.Position()) {
			return sc.buf, off, nil
		}
	}
}

// aligned reports whether off falls on a code unit boundary, which keeps
// UTF-16 tags from matching across two characters.
func (sc *Scanner) aligned(off int64) bool {
	return sc.unit == 1 || off%int64(sc.unit) == 0
}
