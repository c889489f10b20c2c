package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMoneyComparisonsUseEpsilon(t *testing.T) {
	cases := []struct {
		amount, limit string
		exceeds       bool
	}{
		{"100", "100", false},
		{"100.009", "100", false},
		{"100.01", "100", true},
		{"99.99", "100", false},
		{"-200", "-200", false},
	}
	for _, tc := range cases {
		if got := ExceedsMoney(d(tc.amount), d(tc.limit)); got != tc.exceeds {
			t.Fatalf("ExceedsMoney(%s, %s) = %v, want %v", tc.amount, tc.limit, got, tc.exceeds)
		}
	}

	if !IsZeroMoney(d("0.0099")) || !IsZeroMoney(d("-0.005")) {
		t.Fatalf("sub-cent amounts should count as zero")
	}
	if IsZeroMoney(d("0.01")) {
		t.Fatalf("one cent is not zero")
	}
}

func TestCalculateDiscountAmount(t *testing.T) {
	cases := []struct {
		subTotal, rate, want string
	}{
		{"300", "10", "30"},
		{"300", "0", "0"},
		{"300", "-5", "0"},
		{"300", "150", "300"},
		{"99.99", "12.5", "12.4988"},
	}
	for _, tc := range cases {
		got := CalculateDiscountAmount(d(tc.subTotal), d(tc.rate))
		if !got.Equal(d(tc.want)) {
			t.Fatalf("CalculateDiscountAmount(%s, %s) = %s, want %s", tc.subTotal, tc.rate, got, tc.want)
		}
	}
}

func TestLineAmount(t *testing.T) {
	if got := LineAmount(3, d("12.5")); !got.Equal(d("37.5")) {
		t.Fatalf("LineAmount = %s", got)
	}
	if got := LineAmount(0, d("12.5")); !got.IsZero() {
		t.Fatalf("LineAmount of zero quantity = %s", got)
	}
}
