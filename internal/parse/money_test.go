package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"$154,201,673", 154_201_673},
		{"$1.2B", 1_200_000_000},
		{"$400M", 400_000_000},
		{"$12.5K", 12_500},
		{"4,440", 4_440},
		{" $99 ", 99},
		{"1.5m", 1_500_000},
	}
	for _, tt := range tests {
		got := Money(tt.in)
		require.NotNil(t, got, "Money(%q)", tt.in)
		assert.Equal(t, tt.want, *got, "Money(%q)", tt.in)
	}
}

func TestMoney_Null(t *testing.T) {
	for _, in := range []string{"", "-", "–", "—", "n/a", "N/A", "abc", "$"} {
		assert.Nil(t, Money(in), "Money(%q)", in)
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jun 14, 2024", "2024-06-14"},
		{"June 14, 2024", "2024-06-14"},
		{"2024-06-14", "2024-06-14"},
		{"06/14/2024", "2024-06-14"},
		{" Dec 16, 2015 ", "2015-12-16"},
	}
	for _, tt := range tests {
		d, ok := Date(tt.in)
		require.True(t, ok, "Date(%q)", tt.in)
		assert.Equal(t, tt.want, d.Format("2006-01-02"))
	}
}

func TestDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "not a date", "14 June"} {
		_, ok := Date(in)
		assert.False(t, ok, "Date(%q)", in)
	}
}
