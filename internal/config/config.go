// Package config defines the JSON-serializable configuration model for split
// reading jobs. A pipeline file names the input, the record format and its
// options, the runtime limits of the local driver and an optional storage
// sink for the emitted records.
//
// Example (trimmed):
//
//	{
//	  "job":     "plants",
//	  "source":  { "kind": "file", "file": { "path": "data/plants.xml.gz" } },
//	  "parser":  { "kind": "xml", "options": { "start_tag": "<PLANT>", "end_tag": "</PLANT>" } },
//	  "runtime": { "reader_workers": 4, "split_size": 67108864 },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "file:out.db", "table": "records" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job"`

	// Source describes where the input file lives.
	Source Source `json:"source"`

	// Parser selects the record format ("csv" or "xml") and its options.
	Parser Parser `json:"parser"`

	// Storage optionally persists emitted records. An empty kind disables it.
	Storage Storage       `json:"storage"`
	Runtime RuntimeConfig `json:"runtime"`
}

// RuntimeConfig controls how the driver plans and reads splits.
type RuntimeConfig struct {
	// ReaderWorkers bounds the number of splits read at once. 0 means one per
	// CPU.
	ReaderWorkers int `json:"reader_workers"`

	// SplitSize is the planned split length in bytes. 0 reads the whole file
	// as one split.
	SplitSize int64 `json:"split_size"`

	BatchSize     int `json:"batch_size"`
	ChannelBuffer int `json:"channel_buffer"`
}

// Source identifies the input file.
type Source struct {
	// Kind selects the source: "file", "http" or "s3".
	Kind string `json:"kind"`

	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
	S3   SourceS3   `json:"s3"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is a local filesystem path or a file:// URL.
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind. The server must
// honor byte range requests for splits past offset 0 to be efficient.
type SourceHTTP struct {
	URL string `json:"url"`
}

// SourceS3 holds configuration for the "s3" source kind. Credentials and
// region come from the default AWS chain; S3_ENDPOINT and S3_USE_PATH_STYLE
// select an S3-compatible store.
type SourceS3 struct {
	// URL is s3://bucket/key.
	URL string `json:"url"`
}

// Location returns the path or URL the source points at.
func (s Source) Location() string {
	switch s.Kind {
	case "http":
		return s.HTTP.URL
	case "s3":
		return s.S3.URL
	}
	return s.File.Path
}

// Parser selects the record format.
type Parser struct {
	// Kind is "csv" or "xml".
	Kind string `json:"kind"`

	// Options is interpreted by ReaderFromParser. Keys:
	//   buffer_size (int), encoding (string), max_record_size (int);
	//   csv: delimiter, quote, close_quote, escape (string),
	//        resync_from_start (bool, default true);
	//   xml: start_tag, end_tag (string, required).
	Options Options `json:"options"`
}

// Storage selects the sink used to persist records.
type Storage struct {
	// Kind selects the backend ("postgres", "sqlite"); empty disables storage.
	Kind string `json:"kind"`

	DB DBConfig `json:"db"`
}

// DBConfig configures the record table.
type DBConfig struct {
	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Table is the destination table (e.g. "public.records").
	Table string `json:"table"`

	// AutoCreateTable creates the record table when it does not exist.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Load reads and decodes a pipeline file.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so this method accepts float64 and casts to int.
// If the value is neither float64 nor int, def is returned.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Any returns the raw value for key, or nil.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null "options"
// object in JSON decodes to a non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
