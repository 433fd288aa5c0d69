package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FreeParkingDuration is the grace period: shorter stays cost nothing.
const FreeParkingDuration = 30 * time.Minute

var (
	CarRatePerHour     = decimal.RequireFromString("1.5")
	BikeRatePerHour    = decimal.RequireFromString("1.0")
	LoyaltyCoefficient = decimal.RequireFromString("0.95")
)

// pricePlaces is the precision prices are stored and billed with.
const pricePlaces = 2

// FarePolicy prices a stay. It holds no mutable state after construction and is safe for
// concurrent use.
type FarePolicy struct {
	rates       map[Category]decimal.Decimal
	coefficient decimal.Decimal
	gracePeriod time.Duration
}

type FarePolicyOption func(*FarePolicy)

// WithHourlyRate overrides the rate of one category. Negative rates are ignored.
func WithHourlyRate(category Category, rate decimal.Decimal) FarePolicyOption {
	return func(p *FarePolicy) {
		if category.Valid() && !rate.IsNegative() {
			p.rates[category] = rate
		}
	}
}

func WithLoyaltyCoefficient(coefficient decimal.Decimal) FarePolicyOption {
	return func(p *FarePolicy) {
		if coefficient.IsPositive() {
			p.coefficient = coefficient
		}
	}
}

func WithGracePeriod(d time.Duration) FarePolicyOption {
	return func(p *FarePolicy) {
		if d >= 0 {
			p.gracePeriod = d
		}
	}
}

func NewFarePolicy(opts ...FarePolicyOption) *FarePolicy {
	p := &FarePolicy{
		rates: map[Category]decimal.Decimal{
			CategoryCar:  CarRatePerHour,
			CategoryBike: BikeRatePerHour,
		},
		coefficient: LoyaltyCoefficient,
		gracePeriod: FreeParkingDuration,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ComputeFare prices a stay from entry to exit.
//
// Stays shorter than the grace period are free. Longer stays are billed proportionally:
// elapsed hours times the hourly rate, times the loyalty coefficient when loyal is set,
// then rounded half-up to two decimals. Hours are kept as an exact decimal so the rounding
// step sees 2.1375, not the nearest binary float.
func (p *FarePolicy) ComputeFare(category Category, entry, exit time.Time, loyal bool) (decimal.Decimal, error) {
	rate, ok := p.rates[category]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCategory, string(category))
	}
	if entry.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: entry time", ErrMissingInput)
	}
	if exit.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: exit time", ErrInvalidTimeRange)
	}

	elapsed, err := ElapsedMillis(entry, exit)
	if err != nil {
		return decimal.Zero, err
	}
	if elapsed < 0 {
		return decimal.Zero, ErrInvalidTimeRange
	}
	if elapsed < p.gracePeriod.Milliseconds() {
		return decimal.Zero, nil
	}

	hours := decimal.NewFromInt(elapsed).Div(decimal.NewFromInt(millisPerHour))
	price := hours.Mul(rate)
	if loyal {
		price = price.Mul(p.coefficient)
	}
	return price.Round(pricePlaces), nil
}
