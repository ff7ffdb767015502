// Package csv scans delimiter-separated records out of a byte stream.
//
// Records are cut on unquoted line terminators (LF, CR or CR-LF). Quoted
// fields may contain delimiters and terminators. Markers (delimiter, quote,
// close quote, escape) can be any string and are matched as raw bytes in the
// stream encoding, so multi-byte markers and non-UTF-8 files work without
// transcoding the whole input.
//
// The scanner returns the record's bytes as they appear in the file with two
// reductions: a doubled close quote inside a quoted field becomes one quote,
// and a distinct escape marker is dropped in front of the marker or code unit
// it escapes. Enclosing quotes are kept. Terminators are not part of the
// record, and blank lines produce no record.
package csv

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"splitread/internal/parser"
	"splitread/internal/textenc"
)

// Defaults applied to zero Options fields.
const (
	DefaultDelimiter     = ","
	DefaultQuote         = `"`
	DefaultMaxRecordSize = 64 << 20
)

// Options configures a Scanner. Zero values take the defaults; CloseQuote
// defaults to Quote and Escape to CloseQuote.
type Options struct {
	Encoding      *textenc.Encoding
	Delimiter     string
	Quote         string
	CloseQuote    string
	Escape        string
	MaxRecordSize int
}

type state uint8

const (
	fieldStart state = iota
	unquoted
	quoted
	quoteSeen // just read a close quote inside a quoted field
)

// Scanner implements parser.Scanner for delimiter-separated text. It is not
// safe for concurrent use; each split reader owns one.
type Scanner struct {
	delim, open, close, esc []byte
	lf, cr                  []byte
	escDistinct             bool
	escIsOpen               bool // an escape at field start opens a quoted field

	unit int // code unit width; plain bytes are consumed a unit at a time
	peek int // longest lookahead any marker test needs
	max  int

	buf []byte
}

var _ parser.Scanner = (*Scanner)(nil)

// New encodes the markers and returns a Scanner.
func New(opt Options) (*Scanner, error) {
	enc := opt.Encoding
	if enc == nil {
		enc = textenc.MustLookup("")
	}
	if opt.Delimiter == "" {
		opt.Delimiter = DefaultDelimiter
	}
	if opt.Quote == "" {
		opt.Quote = DefaultQuote
	}
	if opt.CloseQuote == "" {
		opt.CloseQuote = opt.Quote
	}
	if opt.Escape == "" {
		opt.Escape = opt.CloseQuote
	}
	if opt.MaxRecordSize <= 0 {
		opt.MaxRecordSize = DefaultMaxRecordSize
	}

	sc := &Scanner{unit: enc.Unit(), max: opt.MaxRecordSize}
	markers := []struct {
		dst  *[]byte
		text string
	}{
		{&sc.delim, opt.Delimiter},
		{&sc.open, opt.Quote},
		{&sc.close, opt.CloseQuote},
		{&sc.esc, opt.Escape},
		{&sc.lf, "\n"},
		{&sc.cr, "\r"},
	}
	for _, m := range markers {
		b, err := enc.Encode(m.text)
		if err != nil {
			return nil, fmt.Errorf("csv: marker %q: %w", m.text, err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("csv: marker %q encodes to no bytes in %s", m.text, enc.Name())
		}
		*m.dst = b
	}

	for _, m := range [][]byte{sc.open, sc.close, sc.esc} {
		if bytes.Equal(m, sc.delim) {
			return nil, fmt.Errorf("csv: delimiter %q collides with a quote or escape marker", opt.Delimiter)
		}
	}
	for _, m := range [][]byte{sc.delim, sc.open, sc.close, sc.esc} {
		if sc.isTerminator(m) {
			return nil, errors.New("csv: markers must not be line terminators")
		}
	}
	sc.escDistinct = !bytes.Equal(sc.esc, sc.close)
	sc.escIsOpen = bytes.Equal(sc.esc, sc.open)

	sc.peek = len(sc.cr) + len(sc.lf)
	for _, m := range [][]byte{sc.delim, sc.open, sc.close, sc.esc} {
		sc.peek = max(sc.peek, len(m))
	}
	return sc, nil
}

// SkipPartial discards bytes through the first line terminator at or after
// the current position. A CR-LF pair counts as one terminator.
func (sc *Scanner) SkipPartial(s parser.Stream) error {
	for {
		p, err := s.Peek(sc.peek)
		if len(p) == 0 {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n := sc.terminator(p); n > 0 {
			_, err := s.Discard(n)
			return err
		}
		if _, err := s.Discard(min(sc.unit, len(p))); err != nil {
			return err
		}
	}
}

// Next implements parser.Scanner.
func (sc *Scanner) Next(s parser.Stream, owns parser.Owns) ([]byte, int64, error) {
	for {
		off := s.Position()
		if !owns(off) {
			return nil, off, io.EOF
		}
		p, err := s.Peek(sc.peek)
		if len(p) == 0 {
			if err == nil {
				err = io.EOF
			}
			return nil, off, err
		}
		n := sc.terminator(p)
		if n == 0 {
			break
		}
		// Blank line.
		if _, err := s.Discard(n); err != nil {
			return nil, off, err
		}
	}

	off := s.Position()
	sc.buf = sc.buf[:0]
	if err := sc.record(s, off); err != nil {
		return nil, off, err
	}
	return sc.buf, off, nil
}

// record runs the state machine from a record start to its terminator or the
// end of input. The terminator is consumed but not buffered.
func (sc *Scanner) record(s parser.Stream, off int64) error {
	st := fieldStart
	for {
		p, err := s.Peek(sc.peek)
		if len(p) == 0 {
			if !errors.Is(err, io.EOF) {
				return err
			}
			if st == quoted {
				return &parser.UnterminatedQuoteError{Offset: off}
			}
			return nil
		}

		switch st {
		case quoteSeen:
			switch {
			case bytes.HasPrefix(p, sc.close):
				// Doubled close quote. The first one is already buffered and
				// stands for the literal; the field stays open.
				if _, err := s.Discard(len(sc.close)); err != nil {
					return err
				}
				st = quoted
			case bytes.HasPrefix(p, sc.delim):
				if err := sc.take(s, sc.delim, len(sc.delim), off); err != nil {
					return err
				}
				st = fieldStart
			default:
				if n := sc.terminator(p); n > 0 {
					_, err := s.Discard(n)
					return err
				}
				return &parser.MalformedQuoteError{Offset: off, At: s.Position()}
			}

		case quoted:
			switch {
			case sc.escDistinct && bytes.HasPrefix(p, sc.esc):
				if err := sc.escaped(s, off, true); err != nil {
					return err
				}
			case bytes.HasPrefix(p, sc.close):
				if err := sc.take(s, sc.close, len(sc.close), off); err != nil {
					return err
				}
				st = quoteSeen
			default:
				if err := sc.take(s, p, min(sc.unit, len(p)), off); err != nil {
					return err
				}
			}

		default: // fieldStart, unquoted
			switch {
			case sc.escDistinct && !(st == fieldStart && sc.escIsOpen) && bytes.HasPrefix(p, sc.esc):
				if err := sc.escaped(s, off, false); err != nil {
					return err
				}
				st = unquoted
			case st == fieldStart && bytes.HasPrefix(p, sc.open):
				if err := sc.take(s, sc.open, len(sc.open), off); err != nil {
					return err
				}
				st = quoted
			case bytes.HasPrefix(p, sc.delim):
				if err := sc.take(s, sc.delim, len(sc.delim), off); err != nil {
					return err
				}
				st = fieldStart
			default:
				if n := sc.terminator(p); n > 0 {
					_, err := s.Discard(n)
					return err
				}
				if err := sc.take(s, p, min(sc.unit, len(p)), off); err != nil {
					return err
				}
				st = unquoted
			}
		}
	}
}

// escaped consumes an escape marker and appends the marker or code unit that
// follows it. An escape as the last thing in the input is kept as a literal
// outside quotes and leaves a quoted field unterminated.
func (sc *Scanner) escaped(s parser.Stream, off int64, inQuotes bool) error {
	if _, err := s.Discard(len(sc.esc)); err != nil {
		return err
	}
	p, err := s.Peek(sc.peek)
	if len(p) == 0 {
		if !errors.Is(err, io.EOF) {
			return err
		}
		if inQuotes {
			return &parser.UnterminatedQuoteError{Offset: off}
		}
		return sc.append(sc.esc, off)
	}
	for _, m := range [][]byte{sc.esc, sc.close, sc.open, sc.delim, sc.cr, sc.lf} {
		if bytes.HasPrefix(p, m) {
			return sc.take(s, m, len(m), off)
		}
	}
	return sc.take(s, p, min(sc.unit, len(p)), off)
}

// take appends the first n bytes of b (which are the next n stream bytes) and
// advances the stream past them.
func (sc *Scanner) take(s parser.Stream, b []byte, n int, off int64) error {
	if err := sc.append(b[:n], off); err != nil {
		return err
	}
	_, err := s.Discard(n)
	return err
}

func (sc *Scanner) append(b []byte, off int64) error {
	if len(sc.buf)+len(b) > sc.max {
		return &parser.RecordTooLargeError{Offset: off, Limit: sc.max}
	}
	sc.buf = append(sc.buf, b...)
	return nil
}

// terminator returns the length of the line terminator p starts with, or 0.
func (sc *Scanner) terminator(p []byte) int {
	switch {
	case bytes.HasPrefix(p, sc.cr):
		if bytes.HasPrefix(p[len(sc.cr):], sc.lf) {
			return len(sc.cr) + len(sc.lf)
		}
		return len(sc.cr)
	case bytes.HasPrefix(p, sc.lf):
		return len(sc.lf)
	}
	return 0
}

func (sc *Scanner) isTerminator(m []byte) bool {
	return bytes.Equal(m, sc.lf) || bytes.Equal(m, sc.cr)
}
