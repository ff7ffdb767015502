// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path. The returned value is safe for concurrent use by multiple goroutines;
// every OpenAt call gets its own descriptor.
func NewLocal(path string) *Local { return &Local{path: path} }

// OpenAt opens the file positioned at offset. A canceled context is
// returned before the filesystem is touched. Filesystem errors are wrapped
// with the path and keep errors.Is working (os.ErrNotExist). An offset past
// the end of the file is not an error; the first read returns io.EOF.
func (l *Local) OpenAt(ctx context.Context, offset int64) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if offset < 0 {
		return nil, fmt.Errorf("open %s: negative offset %d", l.path, offset)
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s to %d: %w", l.path, offset, err)
		}
	}
	adviseSequential(f, offset)
	return f, nil
}

// Size returns the file length from stat.
func (l *Local) Size(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fi, err := os.Stat(l.path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", l.path, err)
	}
	return fi.Size(), nil
}
