// Package source turns a split of a CSV or XML file into a sequence of
// records. Open a Reader per split, call Next until io.EOF, then Close.
//
// Every record of a file is produced by exactly one of the readers over a
// contiguous partition of that file, no matter where the split boundaries
// fall (see boundary.go for the ownership rules).
package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"splitread/internal/bytestream"
	"splitread/internal/codec"
	"splitread/internal/config"
	"splitread/internal/parser"
	csvparser "splitread/internal/parser/csv"
	xmlparser "splitread/internal/parser/xml"
	"splitread/internal/textenc"
	"splitread/pkg/records"
)

// Reader reads the records owned by one split. It is not safe for concurrent
// use.
type Reader struct {
	split records.Split
	name  string
	enc   *textenc.Encoding
	sc    parser.Scanner
	st    *bytestream.Stream
	b     *boundary

	records int64
	err     error // sticky
}

// Open positions a reader at the first record owned by split.
func Open(ctx context.Context, split records.Split, cfg config.Reader) (*Reader, error) {
	cfg = cfg.WithDefaults()
	enc, err := textenc.Lookup(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	sc, err := NewScanner(cfg, enc)
	if err != nil {
		return nil, err
	}

	_, compressed := codec.ForPath(split.Path)
	var bom []byte
	if cfg.Format == config.FormatCSV {
		bom, _ = enc.Encode("\ufeff")
	}
	b := newBoundary(split, cfg, enc.Unit(), compressed, bom)

	st, err := bytestream.Open(ctx, split.Path, b.openAt(), cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	r := &Reader{split: split, name: split.String(), enc: enc, sc: sc, st: st, b: b}
	if err := b.skipLeadingPartialRecord(st, sc); err != nil {
		st.Close()
		return nil, parser.Locate(err, r.name)
	}
	return r, nil
}

// NewScanner builds the scanner for cfg.Format.
func NewScanner(cfg config.Reader, enc *textenc.Encoding) (parser.Scanner, error) {
	switch cfg.Format {
	case config.FormatCSV:
		return csvparser.New(csvparser.Options{
			Encoding:      enc,
			Delimiter:     cfg.Delimiter,
			Quote:         cfg.Quote,
			CloseQuote:    cfg.CloseQuote,
			Escape:        cfg.Escape,
			MaxRecordSize: cfg.MaxRecordSize,
		})
	case config.FormatXML:
		return xmlparser.New(xmlparser.Options{
			Encoding:      enc,
			StartTag:      cfg.StartTag,
			EndTag:        cfg.EndTag,
			MaxRecordSize: cfg.MaxRecordSize,
		})
	default:
		return nil, fmt.Errorf("source: unknown format %q", cfg.Format)
	}
}

// Next returns the next record, or io.EOF once the split is exhausted. Any
// other error is final; later calls return it again.
func (r *Reader) Next() (records.Record, error) {
	if r.err != nil {
		return records.Record{}, r.err
	}
	if r.st == nil {
		return records.Record{}, ErrClosed
	}

	raw, off, err := r.sc.Next(r.st, r.b.shouldContinuePastEnd)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			err = parser.Locate(err, r.name)
		}
		r.err = err
		return records.Record{}, err
	}
	v, err := r.enc.Decode(raw)
	if err != nil {
		bad := off
		var ie *textenc.InvalidError
		if errors.As(err, &ie) && ie.Index >= 0 {
			bad += int64(ie.Index)
		}
		r.err = &DecodeError{Split: r.name, Offset: bad, Record: off, Encoding: r.enc.Name(), Err: err}
		return records.Record{}, r.err
	}
	r.records++
	return records.Record{Value: v, Offset: off}, nil
}

// Split returns the split being read.
func (r *Reader) Split() records.Split { return r.split }

// Stats reports how many records were emitted and how many bytes the stream
// has consumed so far, including any resync prefix.
func (r *Reader) Stats() (recordCount, bytesRead int64) {
	if r.st == nil {
		return r.records, 0
	}
	return r.records, r.st.Position() - r.b.openAt()
}

// Close releases the stream. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.st == nil {
		return nil
	}
	err := r.st.Close()
	r.st = nil
	return err
}

// ReadAll reads every record owned by split.
func ReadAll(ctx context.Context, split records.Split, cfg config.Reader) ([]records.Record, error) {
	r, err := Open(ctx, split, cfg)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []records.Record
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
