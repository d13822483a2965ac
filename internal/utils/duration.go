package utils

import (
	"fmt"
	"strings"
	"time"
)

// PrettyDuration renders a duration as "1 years 2 months 3 days ..." with
// zero-valued parts omitted. Months count as 30 days and years as 365,
// matching the sanction expiry arithmetic.
func PrettyDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	total := int64(d / time.Second)
	years := total / (365 * 86400)
	total %= 365 * 86400
	months := total / (30 * 86400)
	total %= 30 * 86400
	days := total / 86400
	total %= 86400
	hours := total / 3600
	total %= 3600
	minutes := total / 60
	seconds := total % 60

	parts := []struct {
		value int64
		name  string
	}{
		{years, "years"},
		{months, "months"},
		{days, "days"},
		{hours, "hours"},
		{minutes, "minutes"},
		{seconds, "seconds"},
	}

	var out []string
	for _, part := range parts {
		if part.value > 0 {
			out = append(out, fmt.Sprintf("%d %s", part.value, part.name))
		}
	}
	if len(out) == 0 {
		return "0 seconds"
	}
	return strings.Join(out, " ")
}
