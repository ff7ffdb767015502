// Package parser defines the contract shared by the record scanners. A
// Scanner cuts raw record bytes out of a positioned byte stream; the caller
// decides which record starts belong to its split.
package parser

// Stream is the cursor a Scanner reads from. *bytestream.Stream implements
// it; tests use in-memory streams.
type Stream interface {
	ReadByte() (byte, error)
	// Peek returns up to n upcoming bytes. Fewer than n bytes are returned
	// together with io.EOF at the end of the input.
	Peek(n int) ([]byte, error)
	Discard(n int) (int, error)
	// Position is the logical file offset of the next unread byte.
	Position() int64
}

// Owns reports whether a record whose first byte is at off belongs to the
// split being read.
type Owns func(off int64) bool

// Scanner extracts records from a Stream. Implementations keep a reusable
// buffer, so the slice returned by Next is only valid until the next call.
type Scanner interface {
	// SkipPartial discards the tail of a record that began before the
	// stream's current position. It is called once for splits that do not
	// start at offset 0.
	SkipPartial(s Stream) error

	// Next returns the raw bytes of the next record and the offset of its
	// first byte. Before a record is started, owns is consulted with the
	// candidate start; if it reports false Next returns io.EOF without
	// consuming the record. A record that was started is always completed,
	// even past the end of the split.
	Next(s Stream, owns Owns) (raw []byte, off int64, err error)
}
