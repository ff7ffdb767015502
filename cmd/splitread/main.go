// Command splitread plans contiguous byte splits over a CSV or XML file,
// reads them concurrently and writes every record exactly once, either as
// NDJSON on stdout or into the configured storage table.
//
//	splitread -config pipeline.json [-split-size 64MiB] [-out ndjson|none] [-verify] [-v]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"splitread/internal/config"
	"splitread/internal/metrics"
	"splitread/internal/metrics/datadog"
	"splitread/internal/metrics/prompush"

	// Storage backends register themselves with the storage factory.
	_ "splitread/internal/storage/postgres"
	_ "splitread/internal/storage/sqlite"

	"github.com/dustin/go-humanize"
)

func main() {
	var (
		cfgPath        string
		splitSizeFlg   string
		out            string
		metricsBackend string
		validate       bool
		verify         bool
	)

	flag.StringVar(&cfgPath, "config", "configs/pipelines/sample.json", "pipeline config JSON path")
	flag.StringVar(&splitSizeFlg, "split-size", "", "split size, e.g. 64MiB (overrides runtime.split_size)")
	flag.StringVar(&out, "out", "ndjson", "record output when no storage is configured: ndjson or none")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (default env METRICS_BACKEND)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&verify, "verify", false, "re-read the file as one split and compare record digests")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	log.SetOutput(os.Stderr)

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	opt := options{out: out, verify: verify, verbose: *verbose}
	if splitSizeFlg != "" {
		n, err := humanize.ParseBytes(splitSizeFlg)
		if err != nil {
			fatalf("invalid -split-size %q: %v", splitSizeFlg, err)
		}
		opt.splitSize = int64(n)
	}
	if opt.out != "ndjson" && opt.out != "none" {
		fatalf("invalid -out %q: want ndjson or none", opt.out)
	}

	if flush := setupMetrics(metricsBackend, p.Job, *verbose); flush != nil {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := bufio.NewWriterSize(os.Stdout, 1<<16)
	start := time.Now()
	res, err := run(ctx, p, opt, w)
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		metrics.Flush()
		log.Fatalf("%v", err)
	}

	log.Printf("completed: splits=%d records=%s read=%s digest=%s in %s",
		res.splits,
		humanize.Comma(res.records),
		humanize.IBytes(uint64(res.bytes)),
		res.digest,
		time.Since(start).Truncate(time.Millisecond),
	)
}

// setupMetrics installs the backend named by flag or METRICS_BACKEND and
// returns its flush function, or nil when metrics stay disabled.
func setupMetrics(name, job string, verbose bool) func() {
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	if job == "" {
		job = "splitread"
	}

	var (
		b   metrics.Backend
		err error
	)
	switch name {
	case "pushgateway":
		gwURL := os.Getenv("PUSHGATEWAY_URL")
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err = prompush.NewBackend(job, gwURL)
		log.Printf("metrics: backend=%s url=%s job_name=%s", name, gwURL, job)

	case "datadog":
		addr := os.Getenv("DD_AGENT_ADDR")
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr: addr,
			Job:  job,
			Tags: []string{"service:splitread"},
		})
		log.Printf("metrics: backend=%s addr=%s", name, addr)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled")
		}
		return nil

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", name)
		return nil
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", name, err)
		return nil
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
