// Package datasource defines where split bytes come from. A RangeSource can
// be entered at any byte offset, which is what lets independent readers
// start in the middle of a file.
package datasource

import (
	"context"
	"io"

	"splitread/internal/datasource/httpds"
)

// ErrUnknownSize is matched by Size errors when the object length cannot be
// determined up front, e.g. an HTTP response without Content-Length.
var ErrUnknownSize = httpds.ErrUnknownSize

// RangeSource opens a byte stream that starts at a given offset and runs to
// the end of the underlying object.
type RangeSource interface {
	// OpenAt returns a reader positioned at offset. The caller closes it.
	OpenAt(ctx context.Context, offset int64) (io.ReadCloser, error)

	// Size returns the total length of the object in bytes.
	Size(ctx context.Context) (int64, error)
}
