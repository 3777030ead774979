package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nonPriceChars = regexp.MustCompile(`[^\d.,]`)

// ParsePrice returns 0 for empty or unparsable input. Callers that need to
// tell an unknown price from a free one must check the raw text.
func ParsePrice(raw string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}

var months = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

var dayMonthRegex = regexp.MustCompile(`^(\d{1,2})\s+(\p{L}+)`)

const dateLayout = "2006-01-02"

// NormalizeDate converts relative and day-month dates to YYYY-MM-DD. Text it
// does not recognize is returned unchanged.
func NormalizeDate(text string, now time.Time) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "сегодня"), strings.HasPrefix(lower, "today"):
		return now.Format(dateLayout)
	case strings.HasPrefix(lower, "вчера"), strings.HasPrefix(lower, "yesterday"):
		return now.AddDate(0, 0, -1).Format(dateLayout)
	}

	if len(trimmed) >= len(dateLayout) {
		if parsed, err := time.Parse(dateLayout, trimmed[:len(dateLayout)]); err == nil {
			return parsed.Format(dateLayout)
		}
	}

	if match := dayMonthRegex.FindStringSubmatch(lower); match != nil {
		month, ok := months[match[2]]
		day, err := strconv.Atoi(match[1])
		if ok && err == nil && day >= 1 && day <= 31 {
			return time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location()).Format(dateLayout)
		}
	}

	return text
}
