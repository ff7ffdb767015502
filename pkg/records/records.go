// Package records holds the small value types exchanged between the split
// readers and their callers.
package records

import (
	"fmt"
	"math"
)

// Record is one logical unit of output: a CSV record or one markup element.
type Record struct {
	// Value is the decoded text of the record.
	Value string `json:"value"`

	// Offset is the position of the record's first byte in the (decompressed)
	// file. Callers use it as a stable position key.
	Offset int64 `json:"offset"`
}

// Split is a contiguous byte range of one file assigned to one reader.
// Splits are planned by the caller and never modified by the reader.
type Split struct {
	Path   string `json:"path"`
	Start  int64  `json:"start"`
	Length int64  `json:"length"`

	// FileLength is the size of the whole file in bytes. Zero means unknown.
	FileLength int64 `json:"file_length"`
}

// End returns the exclusive end offset of the split. A Length that would
// overflow saturates at math.MaxInt64, so callers can pass math.MaxInt64 for
// "to the end of the file".
func (s Split) End() int64 {
	if s.Length > math.MaxInt64-s.Start {
		return math.MaxInt64
	}
	return s.Start + s.Length
}

// AtFileEnd reports whether the split reaches the end of a file of known size.
func (s Split) AtFileEnd() bool { return s.FileLength > 0 && s.End() >= s.FileLength }

// String renders the split as path[start:end) for logs and errors.
func (s Split) String() string {
	return fmt.Sprintf("%s[%d:%d)", s.Path, s.Start, s.End())
}
