package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestElapsedMillis(t *testing.T) {
	t.Parallel()

	origin := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		want    int64
		wantErr error
	}{
		{name: "one hour", start: origin, end: origin.Add(time.Hour), want: 3_600_000},
		{name: "negative duration is returned as is", start: origin.Add(time.Hour), end: origin, want: -3_600_000},
		{name: "across midnight", start: origin.Add(23 * time.Hour), end: origin.Add(25*time.Hour + 30*time.Minute), want: 9_000_000},
		{name: "missing start", end: origin, wantErr: ErrMissingInput},
		{name: "missing end", start: origin, wantErr: ErrMissingInput},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ElapsedMillis(tc.start, tc.end)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestToHoursDecimal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		millis int64
		want   float64
	}{
		{millis: 2 * 60 * 60 * 1000, want: 2.0},
		{millis: 90 * 60 * 1000, want: 1.5},
		{millis: 45 * 60 * 1000, want: 0.75},
		{millis: 0, want: 0},
	}

	for _, tc := range tests {
		if got := ToHoursDecimal(tc.millis); math.Abs(got-tc.want) > 1e-4 {
			t.Fatalf("ToHoursDecimal(%d): expected %v, got %v", tc.millis, tc.want, got)
		}
	}
}
