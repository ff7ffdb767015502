package source

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"splitread/pkg/records"
)

// Digest summarizes a multiset of records independently of their order, so
// the output of many split readers can be compared with a single pass over
// the whole file. The zero value is an empty digest.
type Digest struct {
	Count int64
	Hi    uint64
	Lo    uint64
}

// Add folds one record into the digest. The offset seeds the hash, so the
// same text at two positions counts as two different records.
func (d *Digest) Add(r records.Record) {
	h := xxh3.HashString128Seed(r.Value, uint64(r.Offset))
	d.Count++
	d.Hi += h.Hi
	d.Lo += h.Lo
}

// Merge folds another digest into d.
func (d *Digest) Merge(o Digest) {
	d.Count += o.Count
	d.Hi += o.Hi
	d.Lo += o.Lo
}

func (d Digest) String() string {
	return fmt.Sprintf("%d:%016x%016x", d.Count, d.Hi, d.Lo)
}
