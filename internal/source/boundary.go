package source

import (
	"errors"
	"io"
	"math"

	"splitread/internal/config"
	"splitread/internal/parser"
	"splitread/pkg/records"
)

// boundary decides which records belong to a split.
//
// CSV: a split owns the records whose first byte lies in [0, end] when it
// starts at 0, and in (start, end] otherwise. A split that starts mid-file
// drops the partial record it lands in, which the previous split finishes.
//
// XML: a split owns the elements whose start tag begins in [start, end).
//
// Offsets are rounded up to the encoding's code unit so that adjacent splits
// agree on the boundary even when a planner cut between the two bytes of a
// UTF-16 character. Compressed splits, and splits that reach the end of a
// file of known length, own everything after their start.
type boundary struct {
	format string
	start  int64
	end    int64

	// resync replays the CSV state machine from offset 0 to find the first
	// record start past start. It is off only when the reader is configured
	// to skip to the next line terminator.
	resync bool

	// bom is the encoded byte order mark, skipped at the head of a CSV file.
	// Records up to bomEnd count as starting at 0 for ownership.
	bom    []byte
	bomEnd int64
}

func newBoundary(split records.Split, cfg config.Reader, unit int, compressed bool, bom []byte) *boundary {
	b := &boundary{
		format: cfg.Format,
		start:  alignUp(split.Start, unit),
		end:    alignUp(split.End(), unit),
	}
	if compressed || split.AtFileEnd() {
		b.end = math.MaxInt64
	}
	if cfg.Format == config.FormatCSV {
		b.bom = bom
		b.resync = !cfg.SkipToTerminator && b.start > 0 && !compressed
	}
	return b
}

// openAt is the offset the stream must be opened at.
func (b *boundary) openAt() int64 {
	if b.resync {
		return 0
	}
	return b.start
}

// skipLeadingPartialRecord moves a freshly opened stream to the first
// record start the split may own.
func (b *boundary) skipLeadingPartialRecord(s parser.Stream, sc parser.Scanner) error {
	if s.Position() == 0 && len(b.bom) > 0 {
		p, err := s.Peek(len(b.bom))
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if string(p) == string(b.bom) {
			if _, err := s.Discard(len(b.bom)); err != nil {
				return err
			}
			b.bomEnd = int64(len(b.bom))
		}
	}
	if b.start == 0 {
		return nil
	}
	if !b.resync {
		return sc.SkipPartial(s)
	}

	earlier := func(off int64) bool { return b.position(off) <= b.start }
	for {
		_, _, err := sc.Next(s, earlier)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// shouldContinuePastEnd reports whether a record starting at off belongs to
// the split. A record that does is read to its end, wherever that is.
func (b *boundary) shouldContinuePastEnd(off int64) bool {
	if b.format == config.FormatXML {
		return off < b.end
	}
	return b.position(off) <= b.end
}

func (b *boundary) position(off int64) int64 {
	if off <= b.bomEnd {
		return 0
	}
	return off
}

func alignUp(off int64, unit int) int64 {
	if unit <= 1 || off == math.MaxInt64 {
		return off
	}
	u := int64(unit)
	if r := off % u; r != 0 {
		off += u - r
	}
	return off
}
