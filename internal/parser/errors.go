package parser

import (
	"errors"
	"fmt"
)

// ErrMalformed is matched (via errors.Is) by every record-level error in this
// package. Such errors are fatal for the split; nothing is skipped silently.
var ErrMalformed = errors.New("malformed record")

// RecordTooLargeError reports a record whose buffered bytes exceeded the
// configured limit.
type RecordTooLargeError struct {
	Split  string
	Offset int64
	Limit  int
}

func (e *RecordTooLargeError) Error() string {
	return fmt.Sprintf("%srecord at offset %d exceeds max record size %d", prefix(e.Split), e.Offset, e.Limit)
}

func (e *RecordTooLargeError) Is(target error) bool { return target == ErrMalformed }

// UnterminatedQuoteError reports end of input inside a quoted field.
type UnterminatedQuoteError struct {
	Split  string
	Offset int64
}

func (e *UnterminatedQuoteError) Error() string {
	return fmt.Sprintf("%sunterminated quoted field in record at offset %d", prefix(e.Split), e.Offset)
}

func (e *UnterminatedQuoteError) Is(target error) bool { return target == ErrMalformed }

// MalformedQuoteError reports a byte other than a quote, delimiter or
// terminator directly after a closing quote.
type MalformedQuoteError struct {
	Split  string
	Offset int64 // record start
	At     int64 // offending byte
}

func (e *MalformedQuoteError) Error() string {
	return fmt.Sprintf("%sunexpected byte at offset %d after closing quote in record at offset %d", prefix(e.Split), e.At, e.Offset)
}

func (e *MalformedQuoteError) Is(target error) bool { return target == ErrMalformed }

// UnterminatedElementError reports end of input before the end tag of an
// element whose start tag was matched.
type UnterminatedElementError struct {
	Split  string
	Offset int64
}

func (e *UnterminatedElementError) Error() string {
	return fmt.Sprintf("%sunterminated element starting at offset %d", prefix(e.Split), e.Offset)
}

func (e *UnterminatedElementError) Is(target error) bool { return target == ErrMalformed }

// DecodeError reports record bytes that are invalid in the configured
// encoding. Offset is the first offending byte when the decoder can tell,
// otherwise the record start.
type DecodeError struct {
	Split    string
	Offset   int64
	Record   int64
	Encoding string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%sinvalid %s at offset %d in record at offset %d", prefix(e.Split), e.Encoding, e.Offset, e.Record)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrMalformed }

// Locate stamps the split identity onto a record-level error found in err's
// chain. Scanners only know offsets; the reader that owns the split calls
// Locate before returning the error.
func Locate(err error, split string) error {
	var l interface{ locate(string) }
	if errors.As(err, &l) {
		l.locate(split)
	}
	return err
}

func (e *RecordTooLargeError) locate(s string)      { e.Split = s }
func (e *UnterminatedQuoteError) locate(s string)   { e.Split = s }
func (e *MalformedQuoteError) locate(s string)      { e.Split = s }
func (e *UnterminatedElementError) locate(s string) { e.Split = s }
func (e *DecodeError) locate(s string)              { e.Split = s }

func prefix(split string) string {
	if split == "" {
		return ""
	}
	return split + ": "
}
