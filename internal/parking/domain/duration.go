package domain

import "time"

const millisPerHour = 60 * 60 * 1000

// ElapsedMillis returns end - start in milliseconds. The result is signed: ordering is the
// caller's concern.
func ElapsedMillis(start, end time.Time) (int64, error) {
	if start.IsZero() || end.IsZero() {
		return 0, ErrMissingInput
	}
	return end.Sub(start).Milliseconds(), nil
}

// ToHoursDecimal converts milliseconds to fractional hours without rounding.
func ToHoursDecimal(millis int64) float64 {
	return float64(millis) / millisPerHour
}
