package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(value string) decimal.Decimal {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestCalculateDiscountPercentage(t *testing.T) {
	cap5000 := d("5000")

	tests := []struct {
		name     string
		value    decimal.Decimal
		cap      *decimal.Decimal
		subtotal decimal.Decimal
		want     decimal.Decimal
	}{
		{"uncapped percentage", d("10"), nil, d("2500.00"), d("250.00")},
		{"cap not reached", d("10"), &cap5000, d("20000.00"), d("2000.00")},
		{"cap applies", d("10"), &cap5000, d("100000.00"), d("5000.00")},
		{"hundred percent clamps at subtotal", d("100"), nil, d("750.00"), d("750.00")},
		{"fractional result rounds to 2dp", d("7.5"), nil, d("999.99"), d("75.00")},
		{"zero subtotal yields zero", d("10"), nil, decimal.Zero, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := &DiscountCode{Type: DiscountTypePercentage, Value: tt.value, MaxDiscountAmount: tt.cap}
			got := code.CalculateDiscount(tt.subtotal)
			if !got.Equal(tt.want) {
				t.Errorf("CalculateDiscount(%s) = %s, want %s", tt.subtotal, got, tt.want)
			}
		})
	}
}

func TestCalculateDiscountFixed(t *testing.T) {
	tests := []struct {
		name     string
		value    decimal.Decimal
		subtotal decimal.Decimal
		want     decimal.Decimal
	}{
		{"fixed below subtotal", d("200"), d("1500.00"), d("200.00")},
		{"fixed equal to subtotal", d("1500"), d("1500.00"), d("1500.00")},
		{"fixed never exceeds subtotal", d("2000"), d("1500.00"), d("1500.00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := &DiscountCode{Type: DiscountTypeFixed, Value: tt.value}
			got := code.CalculateDiscount(tt.subtotal)
			if !got.Equal(tt.want) {
				t.Errorf("CalculateDiscount(%s) = %s, want %s", tt.subtotal, got, tt.want)
			}
		})
	}
}

// The discount bound property: no code configuration can produce a discount
// above the subtotal, or above the cap when one is set.
func TestDiscountBound(t *testing.T) {
	cap := d("300")
	codes := []*DiscountCode{
		{Type: DiscountTypePercentage, Value: d("150")},
		{Type: DiscountTypePercentage, Value: d("50"), MaxDiscountAmount: &cap},
		{Type: DiscountTypeFixed, Value: d("99999")},
		{Type: DiscountTypeFixed, Value: d("-10")},
	}
	subtotals := []decimal.Decimal{d("0.01"), d("100"), d("1000.50"), d("100000")}

	for _, code := range codes {
		for _, subtotal := range subtotals {
			got := code.CalculateDiscount(subtotal)
			if got.GreaterThan(subtotal) {
				t.Errorf("discount %s exceeds subtotal %s (type=%s value=%s)",
					got, subtotal, code.Type, code.Value)
			}
			if got.Sign() < 0 {
				t.Errorf("discount %s is negative (type=%s value=%s)", got, code.Type, code.Value)
			}
			if code.MaxDiscountAmount != nil && got.GreaterThan(*code.MaxDiscountAmount) {
				t.Errorf("discount %s exceeds cap %s", got, *code.MaxDiscountAmount)
			}
		}
	}
}

func TestIsWithinValidity(t *testing.T) {
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)
	code := &DiscountCode{ValidFrom: from, ValidUntil: until}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before window", from.Add(-time.Second), false},
		{"at start", from, true},
		{"inside window", from.Add(72 * time.Hour), true},
		{"at end", until, true},
		{"after window", until.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := code.IsWithinValidity(tt.at); got != tt.want {
				t.Errorf("IsWithinValidity(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestIsExhausted(t *testing.T) {
	limit10 := 10

	tests := []struct {
		name      string
		limit     *int
		timesUsed int
		want      bool
	}{
		{"unlimited code never exhausts", nil, 1000000, false},
		{"under limit", &limit10, 9, false},
		{"at limit", &limit10, 10, true},
		{"over limit", &limit10, 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := &DiscountCode{UsageLimit: tt.limit, TimesUsed: tt.timesUsed}
			if got := code.IsExhausted(); got != tt.want {
				t.Errorf("IsExhausted() = %v, want %v", got, tt.want)
			}
		})
	}
}
