package datasource

import (
	"fmt"
	"net/url"
	"strings"

	"splitread/internal/datasource/file"
	"splitread/internal/datasource/httpds"
	"splitread/internal/datasource/s3ds"
)

// ForPath selects a RangeSource by the scheme of p. Plain paths and file://
// URLs are read from the local disk; http(s) URLs use ranged GET requests and
// s3:// URLs ranged GetObject calls.
func ForPath(p string) (RangeSource, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("datasource: empty path")
	}
	if !strings.Contains(p, "://") {
		return file.NewLocal(p), nil
	}

	u, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("datasource: parse %q: %w", p, err)
	}
	switch u.Scheme {
	case "file":
		return file.NewLocal(u.Path), nil
	case "http", "https":
		return httpds.NewSource(httpds.NewClient(httpds.Config{}), p), nil
	case "s3":
		return s3ds.FromURL(p)
	default:
		return nil, fmt.Errorf("datasource: unsupported scheme %q in %q", u.Scheme, p)
	}
}
