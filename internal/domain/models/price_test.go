package models

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func Test_ParsePrice_WhenFreeText_ShouldExtractNumber(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1250000.0, ParsePrice("1 250 000 ₽"))
	assert.Equal(0.0, ParsePrice(""))
	assert.Equal(12.5, ParsePrice("12,5"))
	assert.Equal(990000.0, ParsePrice("990000 руб."))
}

func Test_ParsePrice_WhenUnparsable_ShouldReturnZero(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, ParsePrice(NoPrice))
	assert.Equal(0.0, ParsePrice("1.2.3"))
	assert.Equal(0.0, ParsePrice("договорная"))
}

func Test_NormalizeDate(t *testing.T) {
	now := time.Date(2024, time.May, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		input    string
		expected string
	}{
		{"сегодня в 12:30", "2024-05-10"},
		{"Вчера", "2024-05-09"},
		{"today", "2024-05-10"},
		{"12 марта", "2024-03-12"},
		{"1 января 10:00", "2024-01-01"},
		{"2023-11-02", "2023-11-02"},
		{"2023-11-02T10:00:00", "2023-11-02"},
		{"неделю назад", "неделю назад"},
		{Unspecified, Unspecified},
		{"12 мартобря", "12 мартобря"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDate(tt.input, now))
		})
	}
}
