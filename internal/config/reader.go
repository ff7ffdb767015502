package config

// Record formats.
const (
	FormatCSV = "csv"
	FormatXML = "xml"
)

// Reader defaults.
const (
	DefaultBufferSize    = 64 * 1024
	DefaultEncoding      = "UTF-8"
	DefaultDelimiter     = ","
	DefaultQuote         = `"`
	DefaultMaxRecordSize = 64 << 20
)

// Reader is the typed configuration of one split reader. It is immutable
// once built; readers copy it.
type Reader struct {
	Format        string
	BufferSize    int
	Encoding      string
	MaxRecordSize int

	// CSV markers. CloseQuote defaults to Quote and Escape to CloseQuote, so
	// a doubled close quote stands for one literal quote.
	Delimiter  string
	Quote      string
	CloseQuote string
	Escape     string

	// SkipToTerminator makes a CSV split past offset 0 skip to the next line
	// terminator instead of replaying the quote state from the beginning of
	// the file. It avoids re-reading the prefix but assigns records wrongly
	// when a quoted field contains a line break.
	SkipToTerminator bool

	// XML tag sequences, required for FormatXML.
	StartTag string
	EndTag   string
}

// ReaderFromParser converts parser options into a Reader with defaults
// applied.
func ReaderFromParser(p Parser) Reader {
	o := p.Options
	r := Reader{
		Format:          p.Kind,
		BufferSize:      o.Int("buffer_size", 0),
		Encoding:        o.String("encoding", ""),
		MaxRecordSize:   o.Int("max_record_size", 0),
		Delimiter:       o.String("delimiter", ""),
		Quote:           o.String("quote", ""),
		CloseQuote:      o.String("close_quote", ""),
		Escape:          o.String("escape", ""),
		SkipToTerminator: !o.Bool("resync_from_start", true),
		StartTag:        o.String("start_tag", ""),
		EndTag:          o.String("end_tag", ""),
	}
	return r.WithDefaults()
}

// WithDefaults fills zero fields with their defaults.
func (r Reader) WithDefaults() Reader {
	if r.Format == "" {
		r.Format = FormatCSV
	}
	if r.BufferSize <= 0 {
		r.BufferSize = DefaultBufferSize
	}
	if r.Encoding == "" {
		r.Encoding = DefaultEncoding
	}
	if r.MaxRecordSize <= 0 {
		r.MaxRecordSize = DefaultMaxRecordSize
	}
	if r.Format == FormatCSV {
		if r.Delimiter == "" {
			r.Delimiter = DefaultDelimiter
		}
		if r.Quote == "" {
			r.Quote = DefaultQuote
		}
		if r.CloseQuote == "" {
			r.CloseQuote = r.Quote
		}
		if r.Escape == "" {
			r.Escape = r.CloseQuote
		}
	}
	return r
}
