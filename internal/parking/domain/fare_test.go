package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFarePolicy_ComputeFare(t *testing.T) {
	t.Parallel()

	exit := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	policy := NewFarePolicy()

	tests := []struct {
		name     string
		category Category
		stay     time.Duration
		loyal    bool
		want     string
	}{
		{name: "car one hour", category: CategoryCar, stay: time.Hour, want: "1.5"},
		{name: "bike one hour", category: CategoryBike, stay: time.Hour, want: "1"},
		{name: "car 15 minutes is free", category: CategoryCar, stay: 15 * time.Minute, want: "0"},
		{name: "bike 20 minutes with discount is free", category: CategoryBike, stay: 20 * time.Minute, loyal: true, want: "0"},
		{name: "just under grace period is free", category: CategoryCar, stay: 30*time.Minute - time.Millisecond, want: "0"},
		{name: "grace period boundary is billed", category: CategoryCar, stay: 30 * time.Minute, want: "0.75"},
		{name: "bike 45 minutes is proportional", category: CategoryBike, stay: 45 * time.Minute, want: "0.75"},
		{name: "bike 150 minutes with discount rounds half up", category: CategoryBike, stay: 150 * time.Minute, loyal: true, want: "2.38"},
		{name: "car 90 minutes with discount rounds half up", category: CategoryCar, stay: 90 * time.Minute, loyal: true, want: "2.14"},
		{name: "car two hours", category: CategoryCar, stay: 2 * time.Hour, want: "3"},
		{name: "car 24 hours", category: CategoryCar, stay: 24 * time.Hour, want: "36"},
		{name: "car 100 minutes rounds to cents", category: CategoryCar, stay: 100 * time.Minute, want: "2.5"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := policy.ComputeFare(tc.category, exit.Add(-tc.stay), exit, tc.loyal)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			want := decimal.RequireFromString(tc.want)
			if !got.Equal(want) {
				t.Fatalf("expected %s, got %s", want, got)
			}
		})
	}
}

func TestFarePolicy_ComputeFareErrors(t *testing.T) {
	t.Parallel()

	exit := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	policy := NewFarePolicy()

	tests := []struct {
		name     string
		category Category
		entry    time.Time
		exit     time.Time
		wantErr  error
	}{
		{name: "unknown category", category: Category("TRUCK"), entry: exit.Add(-time.Hour), exit: exit, wantErr: ErrUnknownCategory},
		{name: "empty category", category: Category(""), entry: exit.Add(-time.Hour), exit: exit, wantErr: ErrUnknownCategory},
		{name: "missing entry", category: CategoryCar, exit: exit, wantErr: ErrMissingInput},
		{name: "missing exit", category: CategoryCar, entry: exit, wantErr: ErrInvalidTimeRange},
		{name: "entry in the future", category: CategoryBike, entry: exit.Add(time.Hour), exit: exit, wantErr: ErrInvalidTimeRange},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := policy.ComputeFare(tc.category, tc.entry, tc.exit, false)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestFarePolicy_ComputeFareIsIdempotent(t *testing.T) {
	t.Parallel()

	policy := NewFarePolicy()
	exit := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	entry := exit.Add(-97 * time.Minute)

	first, err := policy.ComputeFare(CategoryCar, entry, exit, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := policy.ComputeFare(CategoryCar, entry, exit, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected identical fares, got %s and %s", first, second)
	}
}

func TestFarePolicy_Options(t *testing.T) {
	t.Parallel()

	policy := NewFarePolicy(
		WithHourlyRate(CategoryCar, decimal.NewFromInt(2)),
		WithHourlyRate(CategoryCar, decimal.NewFromInt(-1)),
		WithLoyaltyCoefficient(decimal.RequireFromString("0.5")),
		WithGracePeriod(0),
	)
	exit := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	got, err := policy.ComputeFare(CategoryCar, exit.Add(-time.Hour), exit, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected 1, got %s", got)
	}

	got, err = policy.ComputeFare(CategoryBike, exit.Add(-6*time.Minute), exit, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !got.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("expected 0.1 with no grace period, got %s", got)
	}
}
