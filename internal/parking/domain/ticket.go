package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ticket records one stay of one vehicle. ExitTime is nil while the vehicle is parked.
type Ticket struct {
	ID        int64           `json:"id"`
	Spot      Spot            `json:"spot"`
	VehicleID string          `json:"vehicle_id"`
	Price     decimal.Decimal `json:"price"`
	EntryTime time.Time       `json:"entry_time"`
	ExitTime  *time.Time      `json:"exit_time,omitempty"`
}

// NewTicket opens a ticket at entry with a zero price.
func NewTicket(spot Spot, vehicleID string, entry time.Time) (*Ticket, error) {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return nil, ErrEmptyVehicleID
	}
	if spot.ID <= 0 || !spot.Category.Valid() {
		return nil, ErrMissingInput
	}
	if entry.IsZero() {
		return nil, ErrMissingInput
	}

	return &Ticket{
		Spot:      spot,
		VehicleID: vehicleID,
		Price:     decimal.Zero,
		EntryTime: entry,
	}, nil
}

func (t *Ticket) IsOpen() bool {
	return t.ExitTime == nil
}

// Close records the exit and the fare. On error the ticket is left untouched.
func (t *Ticket) Close(exit time.Time, price decimal.Decimal) error {
	if exit.IsZero() {
		return ErrMissingInput
	}
	if exit.Before(t.EntryTime) {
		return ErrInvalidTimeRange
	}
	if price.IsNegative() {
		return ErrInvalidPrice
	}

	t.ExitTime = &exit
	t.Price = price
	return nil
}
