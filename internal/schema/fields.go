package schema

import (
	"fmt"
	"strings"
)

// Field is a canonical column name, or a synthetic column_<n> name for
// headers the alias table does not know.
type Field string

const (
	AccountNumber     Field = "account_number"
	HolderName        Field = "holder_name"
	Status            Field = "status"
	Balance           Field = "balance"
	LastPaymentAmount Field = "last_payment_amount"
	LastPaymentDate   Field = "last_payment_date"
	Email             Field = "email"
	Phone             Field = "phone"
	AltPhone          Field = "alt_phone"
	Address           Field = "address"
	Postcode          Field = "postcode"
	ClientReference   Field = "client_reference"
	OriginalBalance   Field = "original_balance"
	DueDate           Field = "due_date"
	DoNotContact      Field = "do_not_contact"
	Disputed          Field = "disputed"
)

type Kind int

const (
	KindText Kind = iota
	KindAmount
	KindDate
	KindBool
	KindEmail
	KindPhone
)

func (k Kind) String() string {
	switch k {
	case KindAmount:
		return "amount"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindEmail:
		return "email"
	case KindPhone:
		return "phone"
	default:
		return "text"
	}
}

// Spec describes one canonical field. Display is the header written into
// upload templates; Example is the sample cell for the template row.
type Spec struct {
	Field    Field
	Display  string
	Kind     Kind
	Critical bool
	Example  string
}

// fieldSpecs is ordered as the template columns are.
var fieldSpecs = []Spec{
	{AccountNumber, "Account Number", KindText, true, "ACC-100245"},
	{HolderName, "Account Holder", KindText, true, "Jane Doe"},
	{Status, "Status", KindText, true, "ACTIVE"},
	{Balance, "Outstanding Balance", KindAmount, true, "1,250.00"},
	{LastPaymentAmount, "Last Payment Amount", KindAmount, true, "-150.00"},
	{LastPaymentDate, "Last Payment Date", KindDate, true, "20240115"},
	{Email, "Email", KindEmail, false, "jane.doe@example.com"},
	{Phone, "Phone", KindPhone, false, "+44 7700 900123"},
	{AltPhone, "Alternate Phone", KindPhone, false, ""},
	{Address, "Address", KindText, false, "1 High Street"},
	{Postcode, "Postcode", KindText, false, "AB1 2CD"},
	{ClientReference, "Client Reference", KindText, false, "CL-778"},
	{OriginalBalance, "Original Balance", KindAmount, false, "2,000.00"},
	{DueDate, "Due Date", KindDate, false, "2024-02-01"},
	{DoNotContact, "Do Not Contact", KindBool, false, "N"},
	{Disputed, "Disputed", KindBool, false, "no"},
}

var specByField = func() map[Field]Spec {
	m := make(map[Field]Spec, len(fieldSpecs))
	for _, s := range fieldSpecs {
		m[s.Field] = s
	}
	return m
}()

// Fields returns the canonical fields in template order.
func Fields() []Field {
	out := make([]Field, len(fieldSpecs))
	for i, s := range fieldSpecs {
		out[i] = s.Field
	}
	return out
}

// CriticalFields are filled with the unknown sentinel when missing.
func CriticalFields() []Field {
	out := make([]Field, 0, 6)
	for _, s := range fieldSpecs {
		if s.Critical {
			out = append(out, s.Field)
		}
	}
	return out
}

func Lookup(f Field) (Spec, bool) {
	s, ok := specByField[f]
	return s, ok
}

// KindOf reports text for synthetic and unknown fields.
func KindOf(f Field) Kind {
	if s, ok := specByField[f]; ok {
		return s.Kind
	}
	return KindText
}

const syntheticPrefix = "column_"

// Synthetic names an unrecognized column by its zero-based position.
func Synthetic(position int) Field {
	return Field(fmt.Sprintf("%s%d", syntheticPrefix, position+1))
}

func IsSynthetic(f Field) bool {
	_, known := specByField[f]
	return !known && strings.HasPrefix(string(f), syntheticPrefix)
}
