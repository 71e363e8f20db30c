package normalize

import (
	"fmt"
	"strings"

	"CollectRecon/internal/schema"
	"CollectRecon/internal/tabular"
)

// Normalize turns one raw row into a typed record. It never fails: missing
// critical fields get the Unknown sentinel and every problem is reported as
// a warning on the record.
func Normalize(row tabular.RawRow, fields []schema.Field) PaymentRecord {
	rec := PaymentRecord{
		Row:    row.Index,
		Values: make(map[schema.Field]Value, len(fields)),
		Raw:    make(map[schema.Field]string, len(fields)),
	}

	for i, f := range fields {
		cell := ""
		if i < len(row.Cells) {
			cell = strings.TrimSpace(row.Cells[i])
		}
		rec.Raw[f] = cell
		if cell == "" {
			continue
		}
		rec.Values[f] = rec.coerce(f, cell)
	}

	// cells past the header width are kept rather than dropped
	for i := len(fields); i < len(row.Cells); i++ {
		cell := strings.TrimSpace(row.Cells[i])
		if cell == "" {
			continue
		}
		f := schema.Synthetic(i)
		rec.Raw[f] = cell
		rec.Values[f] = Value{Kind: schema.KindText, Text: cell}
	}

	for _, f := range schema.CriticalFields() {
		if _, ok := rec.Values[f]; ok {
			continue
		}
		rec.Values[f] = unknownValue(schema.KindOf(f))
		rec.warn(f, CodeMissingField, fmt.Sprintf("%s is missing", f))
	}
	return rec
}

func (r *PaymentRecord) coerce(f schema.Field, cell string) Value {
	kind := schema.KindOf(f)
	switch kind {
	case schema.KindAmount:
		d, ok := ParseAmount(cell)
		if !ok {
			r.warn(f, CodeUnparseableAmount, fmt.Sprintf("%s %q is not a number, using 0", f, cell))
			return Value{Kind: kind, Text: "0.00", Flagged: true}
		}
		return Value{Kind: kind, Text: d.StringFixed(2), Amount: d}
	case schema.KindDate:
		t, ok := ParseDate(cell)
		if !ok {
			r.warn(f, CodeUnparseableDate, fmt.Sprintf("%s %q is not a date", f, cell))
			v := unknownValue(kind)
			v.Flagged = true
			return v
		}
		return Value{Kind: kind, Text: t.Format(DisplayDateFormat), Date: t}
	case schema.KindBool:
		b := ParseBool(cell)
		return Value{Kind: kind, Text: fmt.Sprintf("%t", b), Flag: b}
	default:
		return Value{Kind: kind, Text: cell}
	}
}

func (r *PaymentRecord) warn(f schema.Field, code, msg string) {
	r.Warnings = append(r.Warnings, Issue{Row: r.Row, Field: f, Code: code, Message: msg})
}

// DuplicateColumns reports header cells that resolved to an already used
// canonical field and were therefore kept under a synthetic name.
func DuplicateColumns(headers []string, fields []schema.Field) []Issue {
	var out []Issue
	for i, h := range headers {
		if i >= len(fields) || !schema.IsSynthetic(fields[i]) {
			continue
		}
		if canon := schema.Map(h, i); !schema.IsSynthetic(canon) {
			out = append(out, Issue{
				Row:     0,
				Field:   fields[i],
				Code:    CodeDuplicateColumn,
				Message: fmt.Sprintf("column %q duplicates %s and is kept as %s", h, canon, fields[i]),
			})
		}
	}
	return out
}
