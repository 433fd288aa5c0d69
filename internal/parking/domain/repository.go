package domain

import "context"

// SpotRepository persists spot availability. Spots themselves are seed data.
type SpotRepository interface {
	// NextAvailable returns the lowest-numbered free spot id of the category, or a value
	// <= 0 when none is free.
	NextAvailable(ctx context.Context, category Category) (int, error)
	// UpdateAvailability frees a spot, or claims it when available is false. A claim only
	// succeeds on a free spot and fails with ErrSpotTaken otherwise.
	UpdateAvailability(ctx context.Context, spotID int, available bool) error
}

// TicketRepository persists tickets. Tickets are never deleted.
type TicketRepository interface {
	// Save inserts the ticket and sets its ID. A second open ticket for the same vehicle
	// fails with ErrVehicleAlreadyParked.
	Save(ctx context.Context, ticket *Ticket) error
	// FindOpenOrLatest returns the vehicle's open ticket, else its most recent one,
	// else ErrTicketNotFound.
	FindOpenOrLatest(ctx context.Context, vehicleID string) (*Ticket, error)
	// Update writes the price and exit time only.
	Update(ctx context.Context, ticket Ticket) error
	CountHistorical(ctx context.Context, vehicleID string) (int, error)
	HasOpenTicket(ctx context.Context, vehicleID string) (bool, error)
}

// Transactor is implemented by stores able to run several repository calls atomically.
// Repository calls made with the context passed to fn join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
