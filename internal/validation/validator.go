package validation

import (
	"fmt"
	"regexp"
	"strings"

	"CollectRecon/internal/normalize"
	"CollectRecon/internal/schema"
)

// Result partitions records into Valid and Invalid; every input record lands
// in exactly one of them.
type Result struct {
	Valid    []normalize.PaymentRecord `json:"-"`
	Invalid  []normalize.PaymentRecord `json:"-"`
	Errors   []normalize.Issue         `json:"errors"`
	Warnings []normalize.Issue         `json:"warnings"`
}

func (r Result) Total() int { return len(r.Valid) + len(r.Invalid) }

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateRecord checks one record. Only a missing account number makes a
// record invalid; contact details and the normalizer's findings come back
// as warnings.
func ValidateRecord(rec normalize.PaymentRecord) (bool, []normalize.Issue, []normalize.Issue) {
	var errs []normalize.Issue
	warns := append([]normalize.Issue(nil), rec.Warnings...)

	if rec.IsUnknown(schema.AccountNumber) {
		errs = append(errs, normalize.Issue{
			Row:     rec.Row,
			Field:   schema.AccountNumber,
			Code:    normalize.CodeMissingAccount,
			Message: "account number is required",
		})
	}

	if v, ok := rec.Get(schema.Email); ok && !v.Unknown && !emailPattern.MatchString(v.Text) {
		warns = append(warns, normalize.Issue{
			Row:     rec.Row,
			Field:   schema.Email,
			Code:    normalize.CodeInvalidEmail,
			Message: fmt.Sprintf("email %q looks invalid", v.Text),
		})
	}

	for _, f := range []schema.Field{schema.Phone, schema.AltPhone} {
		v, ok := rec.Get(f)
		if !ok || v.Unknown || validPhone(v.Text) {
			continue
		}
		warns = append(warns, normalize.Issue{
			Row:     rec.Row,
			Field:   f,
			Code:    normalize.CodeInvalidPhone,
			Message: fmt.Sprintf("%s %q looks invalid", f, v.Text),
		})
	}

	return len(errs) == 0, errs, warns
}

func Validate(records []normalize.PaymentRecord) Result {
	var res Result
	for _, rec := range records {
		ok, errs, warns := ValidateRecord(rec)
		res.Errors = append(res.Errors, errs...)
		res.Warnings = append(res.Warnings, warns...)
		if ok {
			res.Valid = append(res.Valid, rec)
		} else {
			res.Invalid = append(res.Invalid, rec)
		}
	}
	return res
}

// validPhone accepts 7 to 15 digits with an optional leading + and the
// usual spacing characters.
func validPhone(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ', r == '-', r == '(', r == ')', r == '.':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}
