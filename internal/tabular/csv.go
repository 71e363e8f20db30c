package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const sniffBytes = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvSource struct {
	r *csv.Reader
}

func newCSVSource(src io.Reader, opts Options) (*csvSource, error) {
	br := bufio.NewReaderSize(src, sniffBytes)
	peek, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	if bytes.HasPrefix(peek, utf8BOM) {
		br.Discard(len(utf8BOM))
		peek = peek[len(utf8BOM):]
	}

	var in io.Reader = br
	// Spreadsheet exports from older desktop tools arrive as Windows-1252.
	if !validUTF8Prefix(peek, len(peek) == sniffBytes || len(peek) == sniffBytes-len(utf8BOM)) {
		in = transform.NewReader(br, charmap.Windows1252.NewDecoder())
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(peek)
	}

	r := csv.NewReader(in)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return &csvSource{r: r}, nil
}

func (c *csvSource) next() ([]string, int, error) {
	rec, err := c.r.Read()
	if err != nil {
		return nil, 0, err
	}
	line, _ := c.r.FieldPos(0)
	return rec, line, nil
}

func (c *csvSource) sheetName() string { return "" }

func (c *csvSource) close() error { return nil }

// validUTF8Prefix tolerates a multi-byte sequence cut at the end of a
// truncated peek window.
func validUTF8Prefix(b []byte, truncated bool) bool {
	if utf8.Valid(b) {
		return true
	}
	if !truncated {
		return false
	}
	for cut := 1; cut <= utf8.UTFMax && cut < len(b); cut++ {
		if utf8.Valid(b[:len(b)-cut]) {
			return true
		}
	}
	return false
}

// sniffDelimiter counts candidate separators outside quotes on the first
// non-blank line and picks the most frequent one.
func sniffDelimiter(peek []byte) rune {
	line := peek
	for len(line) > 0 {
		i := bytes.IndexByte(line, '\n')
		var cur []byte
		if i < 0 {
			cur, line = line, nil
		} else {
			cur, line = line[:i], line[i+1:]
		}
		if len(bytes.TrimSpace(cur)) > 0 {
			line = cur
			break
		}
	}

	candidates := []rune{',', ';', '\t', '|'}
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range string(line) {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best := ','
	for _, c := range candidates {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}
