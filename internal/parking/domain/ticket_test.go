package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewTicket(t *testing.T) {
	t.Parallel()

	entry := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	spot := Spot{ID: 1, Category: CategoryCar}

	t.Run("opens ticket with zero price", func(t *testing.T) {
		ticket, err := NewTicket(spot, "  AB-123-CD ", entry)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ticket.VehicleID != "AB-123-CD" {
			t.Fatalf("expected trimmed vehicle id, got %q", ticket.VehicleID)
		}
		if !ticket.Price.IsZero() {
			t.Fatalf("expected zero price, got %s", ticket.Price)
		}
		if !ticket.IsOpen() {
			t.Fatalf("expected open ticket")
		}
	})

	t.Run("rejects blank vehicle id", func(t *testing.T) {
		if _, err := NewTicket(spot, "   ", entry); !errors.Is(err, ErrEmptyVehicleID) {
			t.Fatalf("expected ErrEmptyVehicleID, got %v", err)
		}
	})

	t.Run("rejects missing entry time", func(t *testing.T) {
		if _, err := NewTicket(spot, "AB-123-CD", time.Time{}); !errors.Is(err, ErrMissingInput) {
			t.Fatalf("expected ErrMissingInput, got %v", err)
		}
	})

	t.Run("rejects missing spot", func(t *testing.T) {
		if _, err := NewTicket(Spot{}, "AB-123-CD", entry); !errors.Is(err, ErrMissingInput) {
			t.Fatalf("expected ErrMissingInput, got %v", err)
		}
	})
}

func TestTicket_Close(t *testing.T) {
	t.Parallel()

	entry := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	newTicket := func() *Ticket {
		ticket, err := NewTicket(Spot{ID: 4, Category: CategoryBike}, "BK-1", entry)
		if err != nil {
			t.Fatalf("new ticket: %v", err)
		}
		return ticket
	}

	t.Run("records exit and price", func(t *testing.T) {
		ticket := newTicket()
		if err := ticket.Close(entry.Add(time.Hour), decimal.NewFromInt(1)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if ticket.IsOpen() {
			t.Fatalf("expected closed ticket")
		}
		if !ticket.ExitTime.Equal(entry.Add(time.Hour)) {
			t.Fatalf("unexpected exit time %v", ticket.ExitTime)
		}
	})

	t.Run("exit equal to entry is allowed", func(t *testing.T) {
		if err := newTicket().Close(entry, decimal.Zero); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("exit before entry leaves ticket open", func(t *testing.T) {
		ticket := newTicket()
		if err := ticket.Close(entry.Add(-time.Minute), decimal.Zero); !errors.Is(err, ErrInvalidTimeRange) {
			t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
		}
		if !ticket.IsOpen() {
			t.Fatalf("expected ticket to stay open")
		}
	})

	t.Run("negative price", func(t *testing.T) {
		if err := newTicket().Close(entry.Add(time.Hour), decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("expected ErrInvalidPrice, got %v", err)
		}
	})
}

func TestCategoryParsing(t *testing.T) {
	t.Parallel()

	if c, err := ParseCategory(" bike "); err != nil || c != CategoryBike {
		t.Fatalf("expected BIKE, got %q (%v)", c, err)
	}
	if _, err := ParseCategory("truck"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if c, err := CategoryFromSelection(1); err != nil || c != CategoryCar {
		t.Fatalf("expected CAR for selection 1, got %q (%v)", c, err)
	}
	if _, err := CategoryFromSelection(3); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory for selection 3, got %v", err)
	}
}
