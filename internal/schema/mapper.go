package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// aliases is keyed by NormalizeHeader output. Some keys carry historical
// misspellings that producers still send (LAST_PAYMENT_AMMOUNT,
// OUSTANDING_BALANCE); they have to keep resolving.
var aliases = map[string]Field{
	"ACCOUNT_NUMBER":    AccountNumber,
	"ACCOUNT_NO":        AccountNumber,
	"ACCOUNT_NUM":       AccountNumber,
	"ACCOUNT":           AccountNumber,
	"ACCOUNT_ID":        AccountNumber,
	"ACCOUNT_REF":       AccountNumber,
	"ACCOUNT_REFERENCE": AccountNumber,
	"ACC_NO":            AccountNumber,
	"ACC_NUM":           AccountNumber,
	"ACC_NUMBER":        AccountNumber,
	"ACCT_NO":           AccountNumber,
	"ACCT_NUMBER":       AccountNumber,
	"A_C_NO":            AccountNumber,
	"AC_NO":             AccountNumber,
	"DEBT_ID":           AccountNumber,

	"ACCOUNT_HOLDER":      HolderName,
	"ACCOUNT_HOLDER_NAME": HolderName,
	"ACCOUNT_NAME":        HolderName,
	"HOLDER_NAME":         HolderName,
	"CUSTOMER_NAME":       HolderName,
	"DEBTOR_NAME":         HolderName,
	"DEBTOR":              HolderName,
	"FULL_NAME":           HolderName,
	"NAME":                HolderName,

	"STATUS":         Status,
	"ACCOUNT_STATUS": Status,
	"ACC_STATUS":     Status,
	"STATE":          Status,

	"BALANCE":             Balance,
	"OUTSTANDING_BALANCE": Balance,
	"OUSTANDING_BALANCE":  Balance,
	"OUTSTANDING":         Balance,
	"CURRENT_BALANCE":     Balance,
	"BALANCE_DUE":         Balance,
	"AMOUNT_DUE":          Balance,
	"OS_BALANCE":          Balance,

	"LAST_PAYMENT_AMOUNT":  LastPaymentAmount,
	"LAST_PAYMENT_AMMOUNT": LastPaymentAmount,
	"LAST_PAYMENT":         LastPaymentAmount,
	"LAST_PAID_AMOUNT":     LastPaymentAmount,
	"LAST_PMT_AMT":         LastPaymentAmount,
	"PAYMENT_AMOUNT":       LastPaymentAmount,
	"PAYMENT":              LastPaymentAmount,
	"AMOUNT_PAID":          LastPaymentAmount,
	"AMOUNT":               LastPaymentAmount,

	"LAST_PAYMENT_DATE": LastPaymentDate,
	"LAST_PAID_DATE":    LastPaymentDate,
	"LAST_PMT_DATE":     LastPaymentDate,
	"PAYMENT_DATE":      LastPaymentDate,
	"DATE_PAID":         LastPaymentDate,
	"PAID_DATE":         LastPaymentDate,

	"EMAIL":         Email,
	"E_MAIL":        Email,
	"EMAIL_ADDRESS": Email,

	"PHONE":          Phone,
	"PHONE_NUMBER":   Phone,
	"TELEPHONE":      Phone,
	"TEL":            Phone,
	"MOBILE":         Phone,
	"MOBILE_NUMBER":  Phone,
	"CONTACT_NUMBER": Phone,

	"ALTERNATE_PHONE": AltPhone,
	"ALT_PHONE":       AltPhone,
	"PHONE_2":         AltPhone,
	"SECONDARY_PHONE": AltPhone,
	"WORK_PHONE":      AltPhone,

	"ADDRESS":        Address,
	"ADDRESS_LINE_1": Address,
	"STREET":         Address,

	"POSTCODE":    Postcode,
	"POST_CODE":   Postcode,
	"ZIP":         Postcode,
	"ZIP_CODE":    Postcode,
	"POSTAL_CODE": Postcode,

	"CLIENT_REFERENCE": ClientReference,
	"CLIENT_REF":       ClientReference,
	"CLIENT_ID":        ClientReference,

	"ORIGINAL_BALANCE": OriginalBalance,
	"ORIGINAL_DEBT":    OriginalBalance,
	"PRINCIPAL":        OriginalBalance,

	"DUE_DATE":      DueDate,
	"NEXT_DUE":      DueDate,
	"NEXT_DUE_DATE": DueDate,

	"DO_NOT_CONTACT": DoNotContact,
	"DNC":            DoNotContact,

	"DISPUTED":   Disputed,
	"IN_DISPUTE": Disputed,
	"DISPUTE":    Disputed,
}

// foldAccents returns a fresh chain per call; a transform.Chain keeps
// buffers and is not safe to share between goroutines.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// NormalizeHeader folds accents, trims, uppercases and collapses every run
// of non-alphanumeric characters into a single underscore.
func NormalizeHeader(h string) string {
	folded, _, err := transform.String(foldAccents(), h)
	if err != nil {
		folded = h
	}
	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range strings.TrimSpace(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Map resolves one header. It never fails: anything the alias table does
// not recognize becomes the synthetic name for its position.
func Map(header string, position int) Field {
	if f, ok := aliases[NormalizeHeader(header)]; ok {
		return f
	}
	return Synthetic(position)
}

// MapHeaders maps a header row. When two columns resolve to the same field
// the first one keeps it and the later ones fall back to synthetic names.
func MapHeaders(headers []string) []Field {
	out := make([]Field, len(headers))
	seen := make(map[Field]bool, len(headers))
	for i, h := range headers {
		f := Map(h, i)
		if seen[f] {
			f = Synthetic(i)
		}
		seen[f] = true
		out[i] = f
	}
	return out
}
