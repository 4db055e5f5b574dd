package service

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for prompt dates.
const DateLayout = "2006-01-02"

// NormalizeDate turns "", "today", "yesterday" or a YYYY-MM-DD string into a
// date in now's location. Dates after today collapse to today unless
// allowFuture is set.
func NormalizeDate(input string, now time.Time, allowFuture bool) (string, error) {
	today := now.Format(DateLayout)

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "today":
		return today, nil
	case "yesterday":
		return now.AddDate(0, 0, -1).Format(DateLayout), nil
	}

	parsed, err := time.ParseInLocation(DateLayout, strings.TrimSpace(input), now.Location())
	if err != nil {
		return "", ErrInvalidDateFormat
	}

	date := parsed.Format(DateLayout)
	if !allowFuture && date > today {
		return today, nil
	}
	return date, nil
}
