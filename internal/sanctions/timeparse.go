package sanctions

import (
	"fmt"
	"strings"
	"time"
)

// maxSpan is the expiry applied for the "max" unit, roughly ten years.
const maxSpan = 3650 * 24 * time.Hour

// ResolveFutureInstant converts a length/unit pair into an absolute instant
// after ref. Units accept a trailing pluralizing "s". Months are exactly 30
// days and years exactly 365, not calendar arithmetic. The literal "max"
// ignores quantity.
func ResolveFutureInstant(unit string, quantity int, ref time.Time) (time.Time, error) {
	if unit == "max" {
		return ref.Add(maxSpan), nil
	}

	var span time.Duration
	switch strings.TrimSuffix(unit, "s") {
	case "second":
		span = time.Second
	case "minute":
		span = time.Minute
	case "hour":
		span = time.Hour
	case "day":
		span = 24 * time.Hour
	case "week":
		span = 7 * 24 * time.Hour
	case "month":
		span = 30 * 24 * time.Hour
	case "year":
		span = 365 * 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidUnit, unit)
	}

	return ref.Add(time.Duration(quantity) * span), nil
}
