package normalize

import (
	"fmt"
	"time"

	"CollectRecon/internal/schema"

	"github.com/shopspring/decimal"
)

// Unknown fills critical fields that are missing or unparseable.
const Unknown = "UNKNOWN"

// DisplayDateFormat is how normalized dates are rendered in records,
// messages and API payloads.
const DisplayDateFormat = "2006/01/02"

// Issue codes shared by the normalizer and the validator.
const (
	CodeMissingField      = "missing_field"
	CodeUnparseableAmount = "unparseable_amount"
	CodeUnparseableDate   = "unparseable_date"
	CodeInvalidEmail      = "invalid_email"
	CodeInvalidPhone      = "invalid_phone"
	CodeMissingAccount    = "missing_account"
	CodeDuplicateColumn   = "duplicate_column"
)

type Issue struct {
	Row     int          `json:"row"`
	Field   schema.Field `json:"field"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("row %d: %s", i.Row, i.Message)
}

// Value is a typed cell. Exactly one of Text, Amount, Date or Flag is
// meaningful for a given Kind; Text always carries a printable form.
type Value struct {
	Kind    schema.Kind
	Text    string
	Amount  decimal.Decimal
	Date    time.Time
	Flag    bool
	Unknown bool
	// Flagged marks a value that was present but could not be parsed.
	Flagged bool
}

func unknownValue(kind schema.Kind) Value {
	return Value{Kind: kind, Text: Unknown, Unknown: true}
}

// PaymentRecord is one normalized row keyed by canonical or synthetic field.
type PaymentRecord struct {
	Row      int
	Values   map[schema.Field]Value
	Raw      map[schema.Field]string
	Warnings []Issue
}

func (r PaymentRecord) Get(f schema.Field) (Value, bool) {
	v, ok := r.Values[f]
	return v, ok
}

// Text returns the printable value, or Unknown when the field is absent.
func (r PaymentRecord) Text(f schema.Field) string {
	if v, ok := r.Values[f]; ok {
		return v.Text
	}
	return Unknown
}

func (r PaymentRecord) IsUnknown(f schema.Field) bool {
	v, ok := r.Values[f]
	return !ok || v.Unknown
}

func (r PaymentRecord) AccountNumber() string {
	return r.Text(schema.AccountNumber)
}

// Amount reports false for unknown and unparseable amounts.
func (r PaymentRecord) Amount(f schema.Field) (decimal.Decimal, bool) {
	v, ok := r.Values[f]
	if !ok || v.Unknown || v.Flagged || v.Kind != schema.KindAmount {
		return decimal.Zero, false
	}
	return v.Amount, true
}

func (r PaymentRecord) Date(f schema.Field) (time.Time, bool) {
	v, ok := r.Values[f]
	if !ok || v.Unknown || v.Kind != schema.KindDate {
		return time.Time{}, false
	}
	return v.Date, true
}

func (r PaymentRecord) Bool(f schema.Field) bool {
	v, ok := r.Values[f]
	return ok && v.Kind == schema.KindBool && v.Flag
}
