package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"runtime"
	"sync"
	"time"

	"splitread/internal/config"
	"splitread/internal/metrics"
	"splitread/internal/source"
	"splitread/internal/storage"
	"splitread/pkg/records"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// options are the command-line overrides of one run.
type options struct {
	splitSize int64  // overrides runtime.split_size when > 0
	out       string // "ndjson" or "none"; ignored when storage is configured
	verify    bool
	verbose   bool
}

type result struct {
	runID   string
	splits  int
	records int64
	bytes   int64
	digest  source.Digest
}

const (
	defaultBatchSize     = 5000
	defaultChannelBuffer = 1024
)

// Test seam.
var newRepositoryFn = storage.New

// run plans the input, reads every split concurrently and sends records to
// storage or, when none is configured, to w as NDJSON.
func run(ctx context.Context, p config.Pipeline, opt options, w io.Writer) (result, error) {
	res := result{runID: uuid.NewString()}
	cfg := config.ReaderFromParser(p.Parser)
	path := p.Source.Location()

	splitSize := p.Runtime.SplitSize
	if opt.splitSize > 0 {
		splitSize = opt.splitSize
	}

	t0 := time.Now()
	splits, err := source.Plan(ctx, path, splitSize)
	metrics.RecordStep(p.Job, "plan", err, time.Since(t0))
	if err != nil {
		return res, fmt.Errorf("plan %s: %w", path, err)
	}
	res.splits = len(splits)

	workers := p.Runtime.ReaderWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log.Printf("run %s: path=%s splits=%d split_size=%s workers=%d",
		res.runID, path, len(splits), humanize.IBytes(uint64(max(splitSize, 0))), workers)

	emit, finish, err := newSink(ctx, p, opt, res.runID, w)
	if err != nil {
		return res, err
	}

	var mu sync.Mutex
	rg, rctx := errgroup.WithContext(emit.ctx)
	rg.SetLimit(workers)
	for _, sp := range splits {
		sp := sp
		rg.Go(func() error {
			st, err := readSplit(rctx, p.Job, sp, cfg, opt.verbose, func(r records.Record) error {
				return emit.record(rctx, sp, r)
			})
			if err != nil {
				return err
			}
			mu.Lock()
			res.records += st.records
			res.bytes += st.bytes
			res.digest.Merge(st.digest)
			mu.Unlock()
			return nil
		})
	}
	readErr := rg.Wait()
	if err := finish(readErr); err != nil {
		return res, err
	}

	if opt.verify {
		t0 := time.Now()
		err := verify(ctx, p.Job, path, cfg, res.digest)
		metrics.RecordStep(p.Job, "verify", err, time.Since(t0))
		if err != nil {
			return res, err
		}
		log.Printf("verify: ok digest=%s", res.digest)
	}
	return res, nil
}

type splitStats struct {
	records int64
	bytes   int64
	digest  source.Digest
}

// readSplit reads one split to the end, handing each record to emit.
func readSplit(ctx context.Context, job string, sp records.Split, cfg config.Reader, verbose bool, emit func(records.Record) error) (st splitStats, err error) {
	t0 := time.Now()
	defer func() { metrics.RecordStep(job, "split_read", err, time.Since(t0)) }()

	r, err := source.Open(ctx, sp, cfg)
	if err != nil {
		return st, err
	}
	defer r.Close()

	for {
		if st.digest.Count%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, err
		}
		st.digest.Add(rec)
		if emit != nil {
			if err := emit(rec); err != nil {
				return st, err
			}
		}
	}

	st.records, st.bytes = r.Stats()
	metrics.RecordRow(job, "emitted", st.records)
	metrics.RecordBytes(job, st.bytes)
	if verbose {
		log.Printf("split %s: records=%d read=%s in %s", sp, st.records, humanize.IBytes(uint64(st.bytes)), time.Since(t0).Truncate(time.Millisecond))
	}
	return st, nil
}

// verify re-reads path as a single split and compares its digest with want.
func verify(ctx context.Context, job, path string, cfg config.Reader, want source.Digest) error {
	whole := records.Split{Path: path, Start: 0, Length: math.MaxInt64}
	st, err := readSplit(ctx, job, whole, cfg, false, nil)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if st.digest != want {
		return fmt.Errorf("verify: digest mismatch: splits=%s whole=%s", want, st.digest)
	}
	return nil
}

// sink receives records from all split readers.
type sink struct {
	ctx    context.Context
	record func(ctx context.Context, sp records.Split, r records.Record) error
}

// newSink returns the record sink for p and a finish function that must be
// called once after all readers returned.
func newSink(ctx context.Context, p config.Pipeline, opt options, runID string, w io.Writer) (sink, func(error) error, error) {
	if p.Storage.Kind != "" {
		return newStorageSink(ctx, p, runID)
	}

	if opt.out == "none" {
		return sink{ctx: ctx, record: func(context.Context, records.Split, records.Record) error { return nil }},
			func(err error) error { return err }, nil
	}

	var mu sync.Mutex
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	s := sink{ctx: ctx, record: func(_ context.Context, _ records.Split, r records.Record) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(r)
	}}
	return s, func(err error) error { return err }, nil
}

func newStorageSink(ctx context.Context, p config.Pipeline, runID string) (sink, func(error) error, error) {
	scfg := storage.Config{Kind: p.Storage.Kind, DSN: p.Storage.DB.DSN, Table: p.Storage.DB.Table}
	repo, err := newRepositoryFn(ctx, scfg)
	if err != nil {
		return sink{}, nil, fmt.Errorf("open storage %s: %w", scfg.Kind, err)
	}
	if p.Storage.DB.AutoCreateTable {
		if err := storage.EnsureRecordTable(ctx, scfg, repo); err != nil {
			repo.Close()
			return sink{}, nil, fmt.Errorf("create table %s: %w", scfg.Table, err)
		}
	}

	batchSize := p.Runtime.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	buf := p.Runtime.ChannelBuffer
	if buf <= 0 {
		buf = defaultChannelBuffer
	}

	rows := make(chan []any, buf)
	lg, lctx := errgroup.WithContext(ctx)
	lg.Go(func() error {
		t0 := time.Now()
		_, err := storage.LoadBatches(lctx, p.Job, storage.RecordColumns, rows, batchSize, repo.CopyFrom)
		metrics.RecordStep(p.Job, "load", err, time.Since(t0))
		return err
	})

	s := sink{ctx: lctx, record: func(rctx context.Context, sp records.Split, r records.Record) error {
		select {
		case rows <- storage.RecordRow(runID, sp, r):
			return nil
		case <-rctx.Done():
			return rctx.Err()
		}
	}}
	finish := func(readErr error) error {
		close(rows)
		loadErr := lg.Wait()
		repo.Close()
		if loadErr != nil && !errors.Is(loadErr, context.Canceled) {
			return fmt.Errorf("load: %w", loadErr)
		}
		if readErr != nil {
			return readErr
		}
		return loadErr
	}
	return s, finish, nil
}
