package source

import (
	"context"
	"errors"
	"math"

	"splitread/internal/codec"
	"splitread/internal/datasource"
	"splitread/pkg/records"
)

// Plan cuts the file at path into contiguous splits of splitSize bytes. A
// compressed file, a non-positive splitSize, a file smaller than one split or
// a remote object of unknown length yields a single split. An empty file
// yields none.
func Plan(ctx context.Context, path string, splitSize int64) ([]records.Split, error) {
	src, err := datasource.ForPath(path)
	if err != nil {
		return nil, err
	}
	size, err := src.Size(ctx)
	if errors.Is(err, datasource.ErrUnknownSize) {
		return []records.Split{{Path: path, Start: 0, Length: math.MaxInt64}}, nil
	}
	if err != nil {
		return nil, err
	}
	return PlanSize(path, size, splitSize), nil
}

// PlanSize is Plan for a file whose size is already known.
func PlanSize(path string, size, splitSize int64) []records.Split {
	if size <= 0 {
		return nil
	}
	if _, compressed := codec.ForPath(path); compressed {
		return []records.Split{{Path: path, Start: 0, Length: math.MaxInt64, FileLength: size}}
	}
	if splitSize <= 0 || splitSize >= size {
		return []records.Split{{Path: path, Start: 0, Length: size, FileLength: size}}
	}

	splits := make([]records.Split, 0, (size+splitSize-1)/splitSize)
	for off := int64(0); off < size; off += splitSize {
		n := min(splitSize, size-off)
		splits = append(splits, records.Split{Path: path, Start: off, Length: n, FileLength: size})
	}
	return splits
}
