package csvload

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// encodingAliases maps common non-IANA spellings to IANA names.
var encodingAliases = map[string]string{
	"utf8":      "utf-8",
	"utf-8-sig": "utf-8",
	"latin-1":   "iso-8859-1",
	"cp1252":    "windows-1252",
	"cp1251":    "windows-1251",
}

// lookupEncoding resolves an encoding name.
func lookupEncoding(name string) (encoding.Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "utf-8"
	}
	if alias, ok := encodingAliases[key]; ok {
		key = alias
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// singleRune parses a one-character option. \t is accepted for tab.
func singleRune(option, value string, fallback rune) (rune, error) {
	if value == "" {
		return fallback, nil
	}
	if value == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError || size != len(value) {
		return 0, fmt.Errorf("%s must be a single character, got %q", option, value)
	}
	return r, nil
}

// quoteSwap exchanges quote and '"' so encoding/csv can parse files quoted
// with another character. Applying it twice is the identity.
func quoteSwap(quote rune) func(rune) rune {
	return func(r rune) rune {
		switch r {
		case quote:
			return '"'
		case '"':
			return quote
		}
		return r
	}
}

// recordReader reads decoded CSV records.
type recordReader struct {
	csv  *csv.Reader
	swap func(rune) rune
}

func newRecordReader(r io.Reader, spec FileSpec) (*recordReader, error) {
	enc, err := lookupEncoding(spec.Encoding)
	if err != nil {
		return nil, err
	}
	delimiter, err := singleRune("delimiter", spec.Delimiter, ',')
	if err != nil {
		return nil, err
	}
	quote, err := singleRune("quotechar", spec.QuoteChar, '"')
	if err != nil {
		return nil, err
	}
	if quote == delimiter {
		return nil, fmt.Errorf("quotechar and delimiter must differ")
	}

	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
	rr := &recordReader{}
	if quote != '"' {
		rr.swap = quoteSwap(quote)
		decoded = transform.NewReader(decoded, runes.Map(rr.swap))
		if delimiter == '"' {
			delimiter = quote
		}
	}

	rr.csv = csv.NewReader(decoded)
	rr.csv.Comma = delimiter
	rr.csv.ReuseRecord = true
	return rr, nil
}

// Read returns the next record; io.EOF at the end.
func (rr *recordReader) Read() ([]string, error) {
	record, err := rr.csv.Read()
	if err != nil {
		return nil, err
	}
	if rr.swap != nil {
		for i, field := range record {
			record[i] = strings.Map(rr.swap, field)
		}
	}
	return record, nil
}

// Line returns the current line number.
func (rr *recordReader) Line() int {
	line, _ := rr.csv.FieldPos(0)
	return line
}
