package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ErrUnknownSize is returned (wrapped) by Size when the server does not
// report a Content-Length.
var ErrUnknownSize = errors.New("unknown content length")

// Source is a datasource.RangeSource for one URL.
type Source struct {
	client *Client
	url    string
}

// NewSource binds client to url.
func NewSource(client *Client, url string) *Source {
	return &Source{client: client, url: url}
}

// OpenAt issues "Range: bytes=offset-". Servers that ignore the header and
// answer 200 are handled by discarding the first offset bytes locally. A 206
// whose Content-Range does not start at offset is an error.
func (s *Source) OpenAt(ctx context.Context, offset int64) (io.ReadCloser, error) {
	if offset < 0 {
		return nil, fmt.Errorf("httpds: negative offset %d", offset)
	}

	resp, err := s.client.GetFrom(ctx, s.url, offset)
	if err != nil {
		return nil, fmt.Errorf("httpds: get %s: %w", s.url, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		if start, ok := rangeStart(resp.Header.Get("Content-Range")); ok && start != offset {
			resp.Body.Close()
			return nil, fmt.Errorf("httpds: get %s: asked for offset %d, server sent range from %d", s.url, offset, start)
		}
		return resp.Body, nil
	case http.StatusOK:
		if offset > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil && err != io.EOF {
				resp.Body.Close()
				return nil, fmt.Errorf("httpds: skip to %d in %s: %w", offset, s.url, err)
			}
		}
		return resp.Body, nil
	case http.StatusRequestedRangeNotSatisfiable:
		// Offset at or past the end: an empty stream.
		resp.Body.Close()
		return io.NopCloser(http.NoBody), nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("httpds: get %s: unexpected status %d", s.url, resp.StatusCode)
	}
}

// Size returns Content-Length from a HEAD request.
func (s *Source) Size(ctx context.Context) (int64, error) {
	resp, err := s.client.Head(ctx, s.url)
	if err != nil {
		return 0, fmt.Errorf("httpds: head %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("httpds: head %s: unexpected status %d", s.url, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("httpds: head %s: %w", s.url, ErrUnknownSize)
	}
	return resp.ContentLength, nil
}

// rangeStart parses the first byte position of "bytes first-last/size".
func rangeStart(v string) (int64, bool) {
	v, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(v, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
