package tabular

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoSheets          = errors.New("workbook has no sheets")
	ErrTooFewRows        = errors.New("file must have a header row and at least one data row")
)

// RawRow is one non-empty source row. Index is the 1-based row number in
// the file or sheet, blank rows included, so error messages match what the
// uploader sees in a spreadsheet.
type RawRow struct {
	Index int
	Cells []string
}

type Options struct {
	// Delimiter for delimited text; zero means sniff it from the header line.
	Delimiter rune
}

// DetectFormat picks the parser from the file extension, falling back to
// the declared MIME type.
func DetectFormat(fileName, mimeType string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	}
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "text/csv", "text/plain", "application/csv", "text/tab-separated-values":
		return FormatCSV, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, nil
	case "application/vnd.ms-excel":
		return FormatXLS, nil
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, fileName, mimeType)
}

// rowSource is implemented once per format. next returns io.EOF when the
// sheet or file is exhausted.
type rowSource interface {
	next() (cells []string, index int, err error)
	sheetName() string
	close() error
}

// Stream hands out data rows one at a time. Open has already consumed the
// header and buffered the first data row.
type Stream struct {
	src     rowSource
	header  []string
	pending *RawRow
	cur     RawRow
	err     error
	done    bool
}

// Open reads up to the first data row so that empty and header-only files
// fail before any record is processed.
func Open(src io.ReadSeeker, format Format, opts Options) (*Stream, error) {
	var (
		rs  rowSource
		err error
	)
	switch format {
	case FormatCSV:
		rs, err = newCSVSource(src, opts)
	case FormatXLSX:
		rs, err = newXLSXSource(src)
	case FormatXLS:
		rs, err = newXLSSource(src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	s := &Stream{src: rs}
	header, _, err := s.nextNonEmpty()
	if err == io.EOF {
		rs.close()
		return nil, ErrTooFewRows
	}
	if err != nil {
		rs.close()
		return nil, err
	}
	s.header = trimCells(header)

	first, idx, err := s.nextNonEmpty()
	if err == io.EOF {
		rs.close()
		return nil, ErrTooFewRows
	}
	if err != nil {
		rs.close()
		return nil, err
	}
	s.pending = &RawRow{Index: idx, Cells: first}
	return s, nil
}

func (s *Stream) nextNonEmpty() ([]string, int, error) {
	for {
		cells, idx, err := s.src.next()
		if err != nil {
			return nil, 0, err
		}
		if !isRowEmpty(cells) {
			return cells, idx, nil
		}
	}
}

func (s *Stream) Header() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

func (s *Stream) SheetName() string { return s.src.sheetName() }

func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.pending != nil {
		s.cur = *s.pending
		s.pending = nil
		return true
	}
	cells, idx, err := s.nextNonEmpty()
	if err != nil {
		s.done = true
		if err != io.EOF {
			s.err = err
		}
		return false
	}
	s.cur = RawRow{Index: idx, Cells: cells}
	return true
}

func (s *Stream) Row() RawRow { return s.cur }

func (s *Stream) Err() error { return s.err }

func (s *Stream) Close() error {
	s.done = true
	return s.src.close()
}

// ReadAll materializes a whole file. Only meant for small inputs.
func ReadAll(src io.ReadSeeker, format Format, opts Options) ([]string, []RawRow, error) {
	s, err := Open(src, format, opts)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()
	var rows []RawRow
	for s.Next() {
		rows = append(rows, s.Row())
	}
	if err := s.Err(); err != nil {
		return nil, nil, err
	}
	return s.Header(), rows, nil
}

func isRowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	// trailing blank header cells carry no column
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
