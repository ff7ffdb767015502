package csv

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"splitread/internal/parser"
	"splitread/internal/parser/parsertest"
	"splitread/internal/textenc"
)

const vanilla = "1,2,3,4\n5,6,7,8\n9,10,11\n12,13,14"

const withNewlines = `"Champion, Mac","1234 Hoth St.
	Apartment 101
	Atlanta, GA
	64086","30","M","5/28/2010 12:00:00 AM","Just some guy"
"Champion, Mac","5678 Tatooine Rd. Apt 5, Mobile, AL 36608","30","M","Some other date","short description"
`

func scanAll(t *testing.T, opt Options, input string) ([]parsertest.Record, error) {
	t.Helper()
	sc, err := New(opt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return parsertest.All(t, sc, parsertest.At([]byte(input), 0), parsertest.Always)
}

func values(recs []parsertest.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Raw
	}
	return out
}

func TestScanner_Records(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		opt   Options
		input string
		want  []string
	}{
		{
			name:  "vanilla",
			input: vanilla,
			want:  []string{"1,2,3,4", "5,6,7,8", "9,10,11", "12,13,14"},
		},
		{
			name:  "quoted_newlines",
			input: withNewlines,
			want: []string{
				"\"Champion, Mac\",\"1234 Hoth St.\n\tApartment 101\n\tAtlanta, GA\n\t64086\",\"30\",\"M\",\"5/28/2010 12:00:00 AM\",\"Just some guy\"",
				"\"Champion, Mac\",\"5678 Tatooine Rd. Apt 5, Mobile, AL 36608\",\"30\",\"M\",\"Some other date\",\"short description\"",
			},
		},
		{
			name:  "custom_quote_equals_escape",
			opt:   Options{Quote: "*", Escape: "*"},
			input: "*Champion, Mac*,*1234 Hoth St.\n\tApartment 101*,*30*\n*Mac, Champion*,*5678 Tatooine Rd.*,*30*\n",
			want: []string{
				"*Champion, Mac*,*1234 Hoth St.\n\tApartment 101*,*30*",
				"*Mac, Champion*,*5678 Tatooine Rd.*,*30*",
			},
		},
		{
			name:  "doubled_quote",
			input: "\"a\"\"b\",c\n\"\"\"\"\n",
			want:  []string{"\"a\"b\",c", "\"\"\""},
		},
		{
			name:  "distinct_escape",
			opt:   Options{Escape: `\`},
			input: "a\\,b,\"x\\\"y\"\nz\\\n\n",
			want:  []string{"a,b,\"x\"y\"", "z\n"},
		},
		{
			name:  "escape_at_eof",
			opt:   Options{Escape: `\`},
			input: `ab\`,
			want:  []string{`ab\`},
		},
		{
			name:  "escape_at_eof_after_quoted_field",
			opt:   Options{Escape: `\`},
			input: "\"q\",z\\",
			want:  []string{"\"q\",z\\"},
		},
		{
			name:  "terminators_and_blank_lines",
			input: "a\r\n\r\nb\rc\n\n",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "multibyte_markers",
			opt:   Options{Quote: "“", CloseQuote: "”", Escape: "＼"},
			input: "“甲，乙”,“丙\n丁”\n“戊＼”己”,庚\n",
			want:  []string{"“甲，乙”,“丙\n丁”", "“戊”己”,庚"},
		},
		{
			name:  "distinct_close_quote",
			opt:   Options{Quote: "“", CloseQuote: "”"},
			input: "“a,b\nc”,d\n“e””f”,g\n",
			want:  []string{"“a,b\nc”,d", "“e”f”,g"},
		},
		{
			name:  "escape_equals_open_quote",
			opt:   Options{Quote: "<", CloseQuote: ">", Escape: "<"},
			input: "<a,b\nc<>>,x<y\n",
			want:  []string{"<a,b\nc>>,xy"},
		},
		{
			name:  "multibyte_delimiter",
			opt:   Options{Delimiter: "||"},
			input: "a||\"b||c\"||d\n",
			want:  []string{"a||\"b||c\"||d"},
		},
		{
			name:  "quote_only_at_field_start",
			input: "ab\"c,d\n",
			want:  []string{"ab\"c,d"},
		},
		{
			name:  "empty_input",
			input: "",
			want:  nil,
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			recs, err := scanAll(t, c.opt, c.input)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if got := values(recs); !reflect.DeepEqual(got, c.want) {
				t.Fatalf("records = %q\nwant %q", got, c.want)
			}
		})
	}
}

func TestScanner_Offsets(t *testing.T) {
	t.Parallel()

	recs, err := scanAll(t, Options{}, "a\r\n\r\nb\rc\n\n"+vanilla)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var got []int64
	for _, r := range recs {
		got = append(got, r.Offset)
	}
	want := []int64{0, 5, 7, 10, 18, 26, 34}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("offsets = %v, want %v", got, want)
	}
}

func TestScanner_UTF16(t *testing.T) {
	t.Parallel()

	enc := textenc.MustLookup("UTF-16BE")
	input, err := enc.Encode("a,\"b\nc\"\nd\n")
	if err != nil {
		t.Fatal(err)
	}
	sc, err := New(Options{Encoding: enc})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	recs, err := parsertest.All(t, sc, parsertest.At(input, 0), parsertest.Always)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	first, err := enc.Decode([]byte(recs[0].Raw))
	if err != nil || first != "a,\"b\nc\"" {
		t.Fatalf("first = %q, %v", first, err)
	}
	if recs[1].Offset != 16 {
		t.Fatalf("second offset = %d, want 16", recs[1].Offset)
	}
}

func TestScanner_Errors(t *testing.T) {
	t.Parallel()

	t.Run("too_large", func(t *testing.T) {
		t.Parallel()
		_, err := scanAll(t, Options{MaxRecordSize: 4}, "abcd\nabcde\n")
		var tl *parser.RecordTooLargeError
		if !errors.As(err, &tl) {
			t.Fatalf("err = %v, want RecordTooLargeError", err)
		}
		if tl.Offset != 5 || tl.Limit != 4 {
			t.Fatalf("error = %+v", tl)
		}
		if !errors.Is(err, parser.ErrMalformed) {
			t.Fatalf("errors.Is(ErrMalformed) = false")
		}
	})

	t.Run("unterminated_quote", func(t *testing.T) {
		t.Parallel()
		_, err := scanAll(t, Options{}, "x\na,\"bc\nd")
		var uq *parser.UnterminatedQuoteError
		if !errors.As(err, &uq) || uq.Offset != 2 {
			t.Fatalf("err = %v, want UnterminatedQuoteError at 2", err)
		}
	})

	t.Run("escape_inside_quotes_at_eof", func(t *testing.T) {
		t.Parallel()
		_, err := scanAll(t, Options{Escape: `\`}, `"ab\`)
		var uq *parser.UnterminatedQuoteError
		if !errors.As(err, &uq) {
			t.Fatalf("err = %v, want UnterminatedQuoteError", err)
		}
	})

	t.Run("malformed_quote", func(t *testing.T) {
		t.Parallel()
		_, err := scanAll(t, Options{}, "\"a\"b,c\n")
		var mq *parser.MalformedQuoteError
		if !errors.As(err, &mq) || mq.Offset != 0 || mq.At != 3 {
			t.Fatalf("err = %v, want MalformedQuoteError at 3", err)
		}
	})
}

func TestNew_RejectsCollidingMarkers(t *testing.T) {
	t.Parallel()

	for _, opt := range []Options{
		{Delimiter: `"`},
		{Quote: "\n"},
		{Delimiter: ";", Escape: ";"},
	} {
		if _, err := New(opt); err == nil {
			t.Errorf("New(%+v) succeeded, want error", opt)
		}
	}
}

func TestSkipPartial(t *testing.T) {
	t.Parallel()

	data := []byte("aa\r\nbb\ncc")
	sc, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	cases := map[int64]int64{1: 4, 2: 4, 3: 4, 4: 7, 5: 7, 8: 9}
	for from, want := range cases {
		s := parsertest.At(data, from)
		if err := sc.SkipPartial(s); err != nil {
			t.Fatalf("SkipPartial from %d: %v", from, err)
		}
		if s.Position() != want {
			t.Errorf("SkipPartial from %d: position %d, want %d", from, s.Position(), want)
		}
	}
}

func TestNext_StopsAtUnownedStart(t *testing.T) {
	t.Parallel()

	sc, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	s := parsertest.At([]byte(vanilla), 0)
	owns := func(off int64) bool { return off <= 8 }

	recs, err := parsertest.All(t, sc, s, owns)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := values(recs); !reflect.DeepEqual(got, []string{"1,2,3,4", "5,6,7,8"}) {
		t.Fatalf("records = %q", got)
	}
	if s.Position() != 16 {
		t.Fatalf("position = %d, want 16 (unowned record left unread)", s.Position())
	}
	if _, _, err := sc.Next(s, owns); err != io.EOF {
		t.Fatalf("Next after stop = %v, want io.EOF", err)
	}
}

func BenchmarkScanner(b *testing.B) {
	line := "123456,\"E - Evidenční\",Nezjištěno,07.10.2011,True\n"
	data := []byte(strings.Repeat(line, 10_000))
	sc, err := New(Options{})
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := parsertest.NewStream(data, 0, 64*1024)
		for {
			if _, _, err := sc.Next(s, parsertest.Always); err != nil {
				break
			}
		}
	}
}
