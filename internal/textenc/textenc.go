// Package textenc resolves a configured text encoding by name and converts
// between it and UTF-8. Readers match markers on raw bytes, so markers are
// encoded once with Encode, and accumulated record bytes are decoded with
// Decode only when a record is materialized.
package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultName is used when no encoding is configured.
const DefaultName = "UTF-8"

// ErrInvalid is matched (via errors.Is) by every *InvalidError.
var ErrInvalid = errors.New("textenc: invalid byte sequence")

// InvalidError reports bytes that are not valid in the configured encoding.
// Index is the position of the first offending byte within the decoded
// input, or -1 when the decoder cannot tell.
type InvalidError struct {
	Encoding string
	Index    int
}

func (e *InvalidError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("textenc: invalid %s byte sequence", e.Encoding)
	}
	return fmt.Sprintf("textenc: invalid %s byte sequence at byte %d", e.Encoding, e.Index)
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// Encoding is a resolved text encoding. The zero value is not usable; call
// Lookup. An Encoding is safe for concurrent use.
type Encoding struct {
	name string
	enc  encoding.Encoding // nil means UTF-8
	// replacement is U+FFFD encoded in enc, used to tell a literal
	// replacement character apart from a decoding failure.
	replacement []byte
	// unit is the code unit width in bytes; bom is the length of any byte
	// order mark the encoder prepends.
	unit int
	bom  int
}

// Lookup resolves an IANA or WHATWG encoding name. An empty name selects
// UTF-8.
func Lookup(name string) (*Encoding, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		n = DefaultName
	}

	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil || enc == nil {
		if alt, herr := htmlindex.Get(n); herr == nil {
			enc, err = alt, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("textenc: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("textenc: unsupported encoding %q", name)
	}

	e := &Encoding{name: n, unit: 1}
	if enc == unicode.UTF8 || enc == encoding.Nop {
		return e, nil
	}
	e.enc = enc

	one, err1 := enc.NewEncoder().Bytes([]byte("\n"))
	two, err2 := enc.NewEncoder().Bytes([]byte("\n\n"))
	if err1 != nil || err2 != nil || len(two) <= len(one) {
		return nil, fmt.Errorf("textenc: encoding %q cannot represent a line feed", name)
	}
	e.unit = len(two) - len(one)
	e.bom = len(one) - e.unit

	if rep, rerr := e.Encode(string(utf8.RuneError)); rerr == nil {
		e.replacement = rep
	}
	return e, nil
}

// MustLookup is Lookup for names known to be valid (tests, constants).
func MustLookup(name string) *Encoding {
	e, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return e
}

// Name returns the name the encoding was looked up with.
func (e *Encoding) Name() string { return e.name }

// Unit is the width in bytes of one code unit: 2 for UTF-16, 4 for UTF-32,
// 1 otherwise. Scanners advance over non-marker bytes a unit at a time so
// multi-byte markers are only matched on unit boundaries.
func (e *Encoding) Unit() int { return e.unit }

// IsUTF8 reports whether values need no transcoding.
func (e *Encoding) IsUTF8() bool { return e.enc == nil }

// Encode converts UTF-8 text (typically a marker such as a quote or tag) to
// the raw bytes it has in this encoding.
func (e *Encoding) Encode(s string) ([]byte, error) {
	if e.enc == nil {
		return []byte(s), nil
	}
	b, err := e.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("textenc: encode %q as %s: %w", s, e.name, err)
	}
	// Markers are matched mid-stream, never at a byte order mark.
	if e.bom > 0 && len(b) >= e.bom {
		b = b[e.bom:]
	}
	return b, nil
}

// Decode converts raw bytes in this encoding to a UTF-8 string. It never
// substitutes replacement characters for bad input; it returns an
// *InvalidError instead.
func (e *Encoding) Decode(b []byte) (string, error) {
	if e.enc == nil {
		if utf8.Valid(b) {
			return string(b), nil
		}
		return "", &InvalidError{Encoding: e.name, Index: firstInvalidUTF8(b)}
	}

	out, err := e.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", &InvalidError{Encoding: e.name, Index: -1}
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		// The decoder replaces bad input with U+FFFD. Accept the output only
		// if the source really carried that character.
		if len(e.replacement) == 0 || !bytes.Contains(b, e.replacement) {
			return "", &InvalidError{Encoding: e.name, Index: -1}
		}
	}
	return string(out), nil
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
