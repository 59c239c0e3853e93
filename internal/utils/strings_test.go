package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "only spaces", input: "   ", expected: nil},
		{name: "comma only", input: ",", expected: nil},
		{name: "single window", input: "12:00", expected: []string{"12:00"}},
		{name: "default windows", input: "12:00,20:00", expected: []string{"12:00", "20:00"}},
		{name: "varied spacing", input: " 08:30 ,  12:00 , 20:00", expected: []string{"08:30", "12:00", "20:00"}},
		{name: "trailing comma", input: "http://localhost:3000,", expected: []string{"http://localhost:3000"}},
		{name: "multiple commas", input: ",,BTC,,ETH,,", expected: []string{"BTC", "ETH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "USD", NormalizeCurrency(" usd "))
	assert.Equal(t, "EUR", NormalizeCurrency("EUR"))
	assert.Equal(t, "", NormalizeCurrency("  "))
}
