package source

import (
	"errors"

	"splitread/internal/bytestream"
	"splitread/internal/parser"
)

// Record-level failures. They carry the split and the offset of the record
// that failed; every one matches ErrMalformed.
type (
	RecordTooLargeError      = parser.RecordTooLargeError
	UnterminatedQuoteError   = parser.UnterminatedQuoteError
	UnterminatedElementError = parser.UnterminatedElementError
	MalformedQuoteError      = parser.MalformedQuoteError
	DecodeError              = parser.DecodeError
)

var (
	// ErrMalformed matches every record-level failure.
	ErrMalformed = parser.ErrMalformed

	// ErrUnsplittable is returned by Open for a compressed split that does
	// not start at offset 0.
	ErrUnsplittable = bytestream.ErrUnsplittable

	// ErrClosed is returned by Next after Close.
	ErrClosed = errors.New("source: reader is closed")
)
