// Package codec maps file name suffixes to streaming decompressors. Split
// readers use it to make compressed inputs look like the raw file.
//
// Compressed streams cannot be entered at an arbitrary offset, so a file
// matched by a codec is always read as a single split from offset 0.
package codec

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec is a named decompressor selected by file suffix.
type Codec struct {
	Name       string
	Extensions []string

	// NewReader wraps compressed input. Closing the returned reader releases
	// decoder resources; it does not close r.
	NewReader func(r io.Reader) (io.ReadCloser, error)
}

var builtin = []Codec{
	{
		Name:       "gzip",
		Extensions: []string{".gz", ".gzip"},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	},
	{
		// Hadoop's DeflateCodec writes zlib-framed streams.
		Name:       "deflate",
		Extensions: []string{".deflate", ".zz"},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return zlib.NewReader(r)
		},
	},
	{
		Name:       "bzip2",
		Extensions: []string{".bz2"},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(bzip2.NewReader(r)), nil
		},
	},
	{
		Name:       "zstd",
		Extensions: []string{".zst", ".zstd"},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
	},
	{
		Name:       "lz4",
		Extensions: []string{".lz4"},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(lz4.NewReader(r)), nil
		},
	},
	{
		Name:       "snappy",
		Extensions: []string{".snappy", ".sz"},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return io.NopCloser(snappy.NewReader(r)), nil
		},
	},
}

// ForPath returns the codec matching the suffix of p. p may be a local path
// or a URL; query strings and fragments are ignored.
func ForPath(p string) (Codec, bool) {
	name := p
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Path != "" {
		name = u.Path
	}
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return Codec{}, false
	}
	for _, c := range builtin {
		for _, e := range c.Extensions {
			if e == ext {
				return c, true
			}
		}
	}
	return Codec{}, false
}

// Open wraps r with the codec, labelling errors with the codec name.
func (c Codec) Open(r io.Reader) (io.ReadCloser, error) {
	rc, err := c.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("codec %s: %w", c.Name, err)
	}
	return rc, nil
}

// Names lists the registered codec names in lookup order.
func Names() []string {
	out := make([]string, len(builtin))
	for i, c := range builtin {
		out[i] = c.Name
	}
	return out
}
