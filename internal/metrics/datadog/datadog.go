// Package datadog sends splitread metrics to a DogStatsD agent.
//
// Metric names are rewritten from the Prometheus style used by the metrics
// package to dotted StatsD names under a namespace, so
// "splitread_records_total" is sent as "splitread.records.total". The job is
// attached once as a constant tag and dropped from per-call labels. Step
// durations go out as distributions, so percentiles are computed across all
// parallel split readers instead of per agent.
package datadog

import (
	"fmt"
	"sort"
	"strings"

	"splitread/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "splitread."

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket".
	Addr string

	// Job is sent as the constant "job:<Job>" tag.
	Job string

	// Tags are extra constant tags, e.g. "env:prod".
	Tags []string

	// Namespace defaults to DefaultNamespace.
	Namespace string
}

// statter is the part of *statsd.Client the backend uses.
type statter interface {
	Count(name string, value int64, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	Distribution(name string, value float64, tags []string, rate float64) error
	Close() error
}

// Backend is a DogStatsD implementation of metrics.Backend.
type Backend struct {
	client statter
}

// NewBackend dials the agent described by cfg. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	c, err := statsd.New(cfg.Addr,
		statsd.WithNamespace(ns),
		statsd.WithTags(constantTags(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client for %s: %w", cfg.Addr, err)
	}
	return &Backend{client: c}, nil
}

func constantTags(cfg Config) []string {
	tags := append([]string(nil), cfg.Tags...)
	if cfg.Job != "" {
		tags = append(tags, "job:"+cfg.Job)
	}
	sort.Strings(tags)
	return tags
}

// IncCounter sends a Count. Fractional deltas are truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(statsdName(name), int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram sends step durations as a Distribution and anything else
// as a Histogram.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	if name == metrics.StepDurationSeconds {
		_ = b.client.Distribution(statsdName(name), value, labelsToTags(labels), 1)
		return
	}
	_ = b.client.Histogram(statsdName(name), value, labelsToTags(labels), 1)
}

// Flush closes the client, flushing buffered data. Call it once at shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// statsdName turns "splitread_step_duration_seconds" into
// "step.duration.seconds"; the namespace supplies the prefix.
func statsdName(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "splitread_"), "_", ".")
}

// labelsToTags converts labels into sorted "key:value" tags. The job label
// is carried by the constant tags.
func labelsToTags(lbls metrics.Labels) []string {
	var out []string
	for k, v := range lbls {
		if k == "job" {
			continue
		}
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
