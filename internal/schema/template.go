package schema

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const TemplateSheet = "Payments"

// TemplateHeaders is the ordered header row producers should upload.
func TemplateHeaders() []string {
	out := make([]string, len(fieldSpecs))
	for i, s := range fieldSpecs {
		out[i] = s.Display
	}
	return out
}

// ExampleRow lines up with TemplateHeaders.
func ExampleRow() []string {
	out := make([]string, len(fieldSpecs))
	for i, s := range fieldSpecs {
		out[i] = s.Example
	}
	return out
}

func WriteTemplateCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders()); err != nil {
		return err
	}
	if err := cw.Write(ExampleRow()); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func WriteTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), TemplateSheet); err != nil {
		return fmt.Errorf("rename template sheet: %w", err)
	}
	if err := writeSheetRow(f, 1, TemplateHeaders()); err != nil {
		return err
	}
	if err := writeSheetRow(f, 2, ExampleRow()); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(fieldSpecs), 1)
		_ = f.SetCellStyle(TemplateSheet, "A1", last, style)
	}
	_, err = f.WriteTo(w)
	return err
}

func writeSheetRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(TemplateSheet, cell, &cells)
}
