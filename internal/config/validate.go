// Package config provides configuration models and helpers for split reading
// jobs.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"splitread/internal/textenc"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "parser.options.start_tag"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Callers may decide whether to treat
// warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

// validateSource validates Source configuration.
func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		u, err := url.Parse(s.HTTP.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.url",
				Message:  fmt.Sprintf("http source requires an absolute http(s) URL, got %q", s.HTTP.URL),
			})
		}
	case "s3":
		u, err := url.Parse(s.S3.URL)
		if err != nil || u.Scheme != "s3" || u.Host == "" || strings.Trim(u.Path, "/") == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.s3.url",
				Message:  fmt.Sprintf("s3 source requires an s3://bucket/key URL, got %q", s.S3.URL),
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; want file, http or s3", s.Kind),
		})
	}

	return issues
}

// validateParser validates parser configuration through the Reader it
// produces.
func validateParser(p Parser) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  "parser.kind must not be empty",
		})
		return issues
	}

	for _, key := range []string{"buffer_size", "max_record_size"} {
		if v := p.Options.Any(key); v != nil && p.Options.Int(key, 0) <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options." + key,
				Message:  fmt.Sprintf("%s must be a positive number", key),
			})
		}
	}

	r := ReaderFromParser(p)
	if _, err := textenc.Lookup(r.Encoding); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.encoding",
			Message:  err.Error(),
		})
	}

	switch p.Kind {
	case FormatCSV:
		if r.SkipToTerminator {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "parser.options.resync_from_start",
				Message:  "resync_from_start=false misassigns records whose quoted fields contain line breaks",
			})
		}
		if r.Delimiter == r.Quote || r.Delimiter == r.Escape || r.Delimiter == r.CloseQuote {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.delimiter",
				Message:  "delimiter must differ from quote, close_quote and escape",
			})
		}
		for key, v := range map[string]string{"delimiter": r.Delimiter, "quote": r.Quote, "close_quote": r.CloseQuote, "escape": r.Escape} {
			if strings.ContainsAny(v, "\r\n") {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "parser.options." + key,
					Message:  "markers must not contain line terminators",
				})
			}
		}
		if p.Options.Any("start_tag") != nil || p.Options.Any("end_tag") != nil {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "parser.options",
				Message:  "start_tag/end_tag are ignored by the csv parser",
			})
		}
	case FormatXML:
		if r.StartTag == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.start_tag",
				Message:  "xml parser requires start_tag",
			})
		}
		if r.EndTag == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "parser.options.end_tag",
				Message:  "xml parser requires end_tag",
			})
		}
		if p.Options.Any("resync_from_start") != nil {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "parser.options.resync_from_start",
				Message:  "resync_from_start only applies to csv",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unknown parser kind %q; want csv or xml", p.Kind),
		})
	}

	return issues
}

// validateStorage validates storage configuration. Storage is optional.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return nil
	}

	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	db := s.DB
	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}

	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations
// (negative values, zero-sized batches, etc.).
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.ReaderWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.reader_workers",
			Message:  "reader_workers must not be negative",
		})
	}
	if r.SplitSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.split_size",
			Message:  "split_size must not be negative",
		})
	} else if r.SplitSize > 0 && r.SplitSize < 1024 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.split_size",
			Message:  fmt.Sprintf("split_size=%d is very small; most records will cross a split boundary", r.SplitSize),
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}
