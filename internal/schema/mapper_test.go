package schema

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acc No", "ACC_NO"},
		{"  acc.  no.  ", "ACC_NO"},
		{"A/C No", "A_C_NO"},
		{"Last-Payment__Amount", "LAST_PAYMENT_AMOUNT"},
		{"Télé phone", "TELE_PHONE"},
		{"", ""},
		{"***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeader(tt.in))
		})
	}
}

func TestMapAliases(t *testing.T) {
	tests := []struct {
		header string
		want   Field
	}{
		{"Acc No", AccountNumber},
		{"ACCOUNT NUMBER", AccountNumber},
		{"acct_no", AccountNumber},
		{"Debtor Name", HolderName},
		{"Account Status", Status},
		{"Outstanding Balance", Balance},
		{"Oustanding Balance", Balance},
		{"Last Payment Ammount", LastPaymentAmount},
		{"Last Payment Amount", LastPaymentAmount},
		{"Date Paid", LastPaymentDate},
		{"E-mail", Email},
		{"Mobile", Phone},
		{"Zip Code", Postcode},
		{"DNC", DoNotContact},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(tt.header, 0))
		})
	}
}

func TestMapIsTotalAndDeterministic(t *testing.T) {
	inputs := []string{"", " ", "日本語", "Favourite Colour", "\x00\xff", "column_1"}
	for i, h := range inputs {
		first := Map(h, i)
		assert.NotEmpty(t, first)
		assert.Equal(t, first, Map(h, i))
		assert.Equal(t, Synthetic(i), first)
		assert.True(t, IsSynthetic(first))
	}
}

func TestMapHeadersDuplicates(t *testing.T) {
	fields := MapHeaders([]string{"Acc No", "Name", "Account Number", "Notes"})
	assert.Equal(t, []Field{AccountNumber, HolderName, Field("column_3"), Field("column_4")}, fields)
}

func TestMapHeadersConcurrent(t *testing.T) {
	headers := []string{"Número de Cuenta", "Acc No", "Títular", "Último Pago", "Fecha Último Pago", "Notes"}
	want := MapHeaders(headers)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				got := MapHeaders(headers)
				for j := range got {
					if got[j] != want[j] {
						errs <- fmt.Sprintf("column %d mapped to %s, want %s", j, got[j], want[j])
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
	assert.Equal(t, "NUMERO_DE_CUENTA", NormalizeHeader(headers[0]))
}

func TestTemplateHeadersRoundTrip(t *testing.T) {
	headers := TemplateHeaders()
	require.Len(t, headers, len(Fields()))
	for i, h := range headers {
		assert.Equal(t, Fields()[i], Map(h, i), h)
	}
	assert.Len(t, ExampleRow(), len(headers))
}

func TestCriticalFields(t *testing.T) {
	assert.ElementsMatch(t, []Field{
		AccountNumber, HolderName, Status, Balance, LastPaymentAmount, LastPaymentDate,
	}, CriticalFields())
	assert.Equal(t, KindAmount, KindOf(Balance))
	assert.Equal(t, KindText, KindOf(Field("column_9")))
}

func TestWriteTemplateCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplateCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, TemplateHeaders(), records[0])
	assert.Equal(t, ExampleRow(), records[1])
}

func TestWriteTemplateXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplateXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, TemplateSheet, f.GetSheetName(0))
	rows, err := f.GetRows(TemplateSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, TemplateHeaders(), rows[0])
}
