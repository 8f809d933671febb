// Package csv reads the maintenance exports into raw lines.
//
// Exports are small, so a file is read whole: that lets the parser decode
// legacy code pages, fingerprint the content and sniff the delimiter before
// encoding/csv sees a byte.
package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"plantload/pkg/records"
)

// utf8BOM is stripped from the start of the decoded input.
const utf8BOM = "\uFEFF"

// candidates are the delimiters the sniffer chooses from, in tie-break order.
var candidates = []rune{';', ',', '\t'}

// Options configures a Parser. All fields are optional.
type Options struct {
	// Comma is the field delimiter. When zero it is sniffed.
	Comma rune

	// Encoding names the code page of the input. Empty means UTF-8.
	Encoding string

	// SkipForSniff is the number of leading lines ignored by the sniffer,
	// e.g. 1 for reports that start with a free-text banner.
	SkipForSniff int
}

// Document is one parsed export.
type Document struct {
	// Lines are the physical CSV records, banner included.
	Lines [][]string
	// Comma is the delimiter that was used.
	Comma rune
	// Digest is the xxh3 hash of the raw file bytes.
	Digest uint64
	// Skipped counts malformed lines that were dropped.
	Skipped int
}

// Parser turns export bytes into a Document. It holds no state between
// calls and is safe to reuse.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads r to the end and splits it into records.
func (p *Parser) Parse(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read csv: %w", err)
	}
	doc := Document{Digest: xxh3.Hash(raw)}

	text, err := Decode(raw, p.opt.Encoding)
	if err != nil {
		return Document{}, err
	}
	text = bytes.TrimPrefix(text, []byte(utf8BOM))

	doc.Comma = p.opt.Comma
	if doc.Comma == 0 {
		doc.Comma = Sniff(text, p.opt.SkipForSniff)
	}

	cr := csv.NewReader(bytes.NewReader(text))
	cr.Comma = doc.Comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	const limit = 100
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return Document{}, fmt.Errorf("read csv: %w", err)
			}
			if doc.Skipped < limit {
				log.Printf("csv: skipping line %d: %v", perr.Line, perr.Err)
			}
			doc.Skipped++
			continue
		}
		doc.Lines = append(doc.Lines, row)
	}
	return doc, nil
}

// Decode converts raw bytes in the named code page to UTF-8.
func Decode(raw []byte, name string) ([]byte, error) {
	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return raw, nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

func lookup(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "utf-8-sig":
		return nil, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-2", "latin2", "latin-2":
		return charmap.ISO8859_2, nil
	case "windows-1250", "cp1250":
		return charmap.Windows1250, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}
	return nil, fmt.Errorf("csv: unsupported encoding %q", name)
}

// Sniff picks the delimiter of text by counting candidates outside quotes on
// the first line after skip lines. It falls back to ','.
func Sniff(text []byte, skip int) rune {
	lines := bytes.Split(text, []byte("\n"))
	for i := skip; i < len(lines); i++ {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		best, bestN := ',', 0
		for _, c := range candidates {
			if n := countUnquoted(line, c); n > bestN {
				best, bestN = c, n
			}
		}
		return best
	}
	return ','
}

func countUnquoted(line []byte, c rune) int {
	n, quoted := 0, false
	for _, r := range string(line) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == c && !quoted:
			n++
		}
	}
	return n
}

// Table treats the first line as the header and the rest as data. Header
// cells are trimmed; fully blank data lines are dropped.
func Table(lines [][]string) records.Table {
	if len(lines) == 0 {
		return records.Table{}
	}
	header := make([]string, len(lines[0]))
	for i, h := range lines[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, utf8BOM))
	}
	data := make([][]string, 0, len(lines)-1)
	for _, l := range lines[1:] {
		if !blank(l) {
			data = append(data, l)
		}
	}
	return records.FromLines(header, data)
}

func blank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
