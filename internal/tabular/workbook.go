package tabular

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// xlsxSource walks the first sheet with excelize's row iterator so the
// sheet XML is decoded one row at a time.
type xlsxSource struct {
	f     *excelize.File
	rows  *excelize.Rows
	sheet string
	index int
}

func newXLSXSource(src io.Reader) (*xlsxSource, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, ErrNoSheets
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return &xlsxSource{f: f, rows: rows, sheet: sheets[0]}, nil
}

func (x *xlsxSource) next() ([]string, int, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, 0, err
		}
		return nil, 0, io.EOF
	}
	x.index++
	// raw values keep dates as serial numbers instead of locale formatted text
	cells, err := x.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("row %d: %w", x.index, err)
	}
	return cells, x.index, nil
}

func (x *xlsxSource) sheetName() string { return x.sheet }

func (x *xlsxSource) close() error {
	x.rows.Close()
	return x.f.Close()
}

// xlsSource reads legacy BIFF workbooks. The decoder panics on some
// malformed files, so every call into it is guarded.
type xlsSource struct {
	sheet *xls.WorkSheet
	row   int
}

func newXLSSource(src io.ReadSeeker) (s *xlsSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("open xls workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(src, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoSheets
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheets
	}
	return &xlsSource{sheet: sheet}, nil
}

func (x *xlsSource) next() (cells []string, index int, err error) {
	defer func() {
		if r := recover(); r != nil {
			cells, index, err = nil, 0, fmt.Errorf("xls row %d: %v", x.row, r)
		}
	}()
	if x.row > int(x.sheet.MaxRow) {
		return nil, 0, io.EOF
	}
	i := x.row
	x.row++
	row := x.sheet.Row(i)
	if row == nil {
		return []string{}, i + 1, nil
	}
	last := row.LastCol()
	if last < 0 {
		last = 0
	}
	cells = make([]string, last)
	for c := row.FirstCol(); c < last; c++ {
		if c >= 0 {
			cells[c] = row.Col(c)
		}
	}
	return cells, i + 1, nil
}

func (x *xlsSource) sheetName() string { return x.sheet.Name }

func (x *xlsSource) close() error { return nil }
