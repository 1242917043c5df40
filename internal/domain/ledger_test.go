package domain

import (
	"encoding/json"
	"strconv"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("15/01/2024")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 1, Day: 15}, d)
	assert.Equal(t, "15/01/2024", FormatDate(d))

	_, err = ParseDate("30/02/2024")
	assert.Error(t, err)
	_, err = ParseDate("29/02/2023")
	assert.Error(t, err)
	_, err = ParseDate("29/02/2024")
	assert.NoError(t, err)
}

func TestAddMonths(t *testing.T) {
	base := civil.Date{Year: 2024, Month: 11, Day: 15}
	assert.Equal(t, "15/12/2024", FormatDate(AddMonths(base, 1)))
	assert.Equal(t, "15/01/2025", FormatDate(AddMonths(base, 2)))

	// Same roll-over as a spreadsheet date constructor.
	assert.Equal(t, "02/03/2023", FormatDate(AddMonths(civil.Date{Year: 2023, Month: 1, Day: 30}, 1)))
}

func TestNumeric(t *testing.T) {
	var c Candidate
	require.NoError(t, json.Unmarshal([]byte(`{"type":"gasto","amount":1500.5,"installments":"3","quantity":null}`), &c))
	assert.Equal(t, Numeric("1500.5"), c.Amount)
	assert.Equal(t, 3, c.InstallmentCount())
	assert.False(t, c.Quantity.IsSet())
	assert.True(t, decimal.RequireFromString("1500.5").Equal(c.Magnitude()))

	d, err := Numeric("1500,25").Decimal()
	require.NoError(t, err)
	assert.Equal(t, "1500.25", d.String())

	_, err = Numeric("abc").Decimal()
	assert.Error(t, err)
	_, err = Numeric("2.5").Int()
	assert.Error(t, err)
	n, err := Numeric("4.0").Int()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNumeric_IntOutOfRange(t *testing.T) {
	_, err := Numeric("18446744073709551619").Int()
	assert.Error(t, err)

	c := Candidate{Installments: "18446744073709551619"}
	assert.Equal(t, 0, c.InstallmentCount())
}

func TestSplitInstallments(t *testing.T) {
	tests := []struct {
		total string
		n     int
		first string
		last  string
	}{
		{"100", 3, "33.33", "33.34"},
		{"1000", 60, "16.67", "16.47"},
		{"10", 7, "1.43", "1.42"},
		{"300", 3, "100.00", "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.total+"/"+strconv.Itoa(tt.n), func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			shares := SplitInstallments(total, tt.n)
			require.Len(t, shares, tt.n)

			sum := decimal.Zero
			for _, s := range shares {
				sum = sum.Add(s)
			}
			assert.True(t, total.Equal(sum), "sum %s", sum)
			assert.Equal(t, tt.first, shares[0].StringFixed(2))
			assert.Equal(t, tt.last, shares[tt.n-1].StringFixed(2))
		})
	}

	assert.Nil(t, SplitInstallments(decimal.NewFromInt(10), 0))
}
