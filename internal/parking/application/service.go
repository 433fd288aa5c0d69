package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mateusmacedo/parkit/internal/clock"
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
)

// EntryResult describes a vehicle that was just parked.
type EntryResult struct {
	Ticket          domain.Ticket
	Spot            domain.Spot
	LoyaltyEligible bool
}

// ExitResult describes a vehicle that just left. Ticket carries the exit time and price.
type ExitResult struct {
	Ticket         domain.Ticket
	LoyaltyApplied bool
}

// ParkingService runs the entry and exit transactions.
//
// Validation and not-found errors are returned unchanged. Anything else, repository failures
// and panics included, is logged with its cause and returned wrapped in domain.ErrProcessing.
type ParkingService struct {
	allocator *SpotAllocator
	spots     domain.SpotRepository
	tickets   domain.TicketRepository
	fares     *domain.FarePolicy
	locker    Locker
	tx        domain.Transactor
	events    EventPublisher
	clock     clock.Clock
	newID     pkgDomain.IDGenerator[string]
	logger    pkgApp.AppLogger
}

type ServiceOption func(*ParkingService)

// WithTransactor runs each pair of writes (save and occupy, update and release) in one
// transaction.
func WithTransactor(tx domain.Transactor) ServiceOption {
	return func(s *ParkingService) { s.tx = tx }
}

func WithEventPublisher(events EventPublisher) ServiceOption {
	return func(s *ParkingService) { s.events = events }
}

func WithClock(c clock.Clock) ServiceOption {
	return func(s *ParkingService) { s.clock = c }
}

func WithFarePolicy(p *domain.FarePolicy) ServiceOption {
	return func(s *ParkingService) { s.fares = p }
}

func WithIDGenerator(gen pkgDomain.IDGenerator[string]) ServiceOption {
	return func(s *ParkingService) { s.newID = gen }
}

func NewParkingService(
	spots domain.SpotRepository,
	tickets domain.TicketRepository,
	locker Locker,
	logger pkgApp.AppLogger,
	opts ...ServiceOption,
) *ParkingService {
	s := &ParkingService{
		allocator: NewSpotAllocator(spots, logger),
		spots:     spots,
		tickets:   tickets,
		fares:     domain.NewFarePolicy(),
		locker:    locker,
		clock:     clock.NewSystem(),
		newID:     uuid.NewString,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessIncomingVehicle parks a vehicle: it finds a free spot for the category, opens a
// ticket and marks the spot as occupied, in that order.
func (s *ParkingService) ProcessIncomingVehicle(ctx context.Context, prompter Prompter) (result EntryResult, err error) {
	ctx = s.withTransactionID(ctx)
	defer s.recoverPanic(ctx, "vehicle entry", &err)

	result, err = s.park(ctx, prompter)
	if err != nil {
		return EntryResult{}, s.fail(ctx, "vehicle entry", err)
	}

	s.publish(ctx, NewVehicleParkedEvent(result.Ticket, result.LoyaltyEligible, result.Ticket.EntryTime))
	pkgApp.LogInfo(ctx, s.logger, "vehicle parked", map[string]interface{}{
		"vehicle_id":       result.Ticket.VehicleID,
		"ticket_id":        result.Ticket.ID,
		"spot_id":          result.Spot.ID,
		"category":         result.Spot.Category.String(),
		"loyalty_eligible": result.LoyaltyEligible,
	})
	return result, nil
}

// ProcessExitingVehicle closes the vehicle's open ticket with the fare due and frees its spot.
func (s *ParkingService) ProcessExitingVehicle(ctx context.Context, prompter Prompter) (result ExitResult, err error) {
	ctx = s.withTransactionID(ctx)
	defer s.recoverPanic(ctx, "vehicle exit", &err)

	result, err = s.leave(ctx, prompter)
	if err != nil {
		return ExitResult{}, s.fail(ctx, "vehicle exit", err)
	}

	s.publish(ctx, NewVehicleExitedEvent(result.Ticket, result.LoyaltyApplied, *result.Ticket.ExitTime))
	pkgApp.LogInfo(ctx, s.logger, "vehicle exited", map[string]interface{}{
		"vehicle_id":      result.Ticket.VehicleID,
		"ticket_id":       result.Ticket.ID,
		"spot_id":         result.Ticket.Spot.ID,
		"price":           result.Ticket.Price.StringFixed(2),
		"loyalty_applied": result.LoyaltyApplied,
	})
	return result, nil
}

func (s *ParkingService) park(ctx context.Context, prompter Prompter) (EntryResult, error) {
	category, err := prompter.VehicleCategory(ctx)
	if err != nil {
		return EntryResult{}, err
	}
	if !category.Valid() {
		return EntryResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, string(category))
	}

	unlockCategory, err := s.lock(ctx, CategoryLockKey(category))
	if err != nil {
		return EntryResult{}, err
	}
	defer unlockCategory()

	spot, found, err := s.allocator.Allocate(ctx, category)
	if err != nil {
		return EntryResult{}, err
	}
	if !found {
		return EntryResult{}, fmt.Errorf("%w: category %s is full", domain.ErrNoSpotAvailable, category)
	}

	vehicleID, err := prompter.VehicleID(ctx)
	if err != nil {
		return EntryResult{}, err
	}
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return EntryResult{}, domain.ErrEmptyVehicleID
	}

	unlockVehicle, err := s.lock(ctx, VehicleLockKey(vehicleID))
	if err != nil {
		return EntryResult{}, err
	}
	defer unlockVehicle()

	parked, err := s.tickets.HasOpenTicket(ctx, vehicleID)
	if err != nil {
		return EntryResult{}, persistenceError("check open ticket", err)
	}
	if parked {
		return EntryResult{}, fmt.Errorf("%w: %s", domain.ErrVehicleAlreadyParked, vehicleID)
	}

	ticket, err := domain.NewTicket(spot, vehicleID, s.clock.Now())
	if err != nil {
		return EntryResult{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context) error {
		// Conflicts caught by the store keep their kind.
		if err := s.tickets.Save(ctx, ticket); err != nil {
			if errors.Is(err, domain.ErrVehicleAlreadyParked) {
				return err
			}
			return persistenceError("save ticket", err)
		}
		if err := s.spots.UpdateAvailability(ctx, spot.ID, false); err != nil {
			if errors.Is(err, domain.ErrSpotTaken) {
				return err
			}
			return persistenceError(fmt.Sprintf("occupy spot %d", spot.ID), err)
		}
		return nil
	})
	if err != nil {
		return EntryResult{}, err
	}

	// The ticket is already committed; a failed count only costs the welcome message.
	loyal := false
	if count, err := s.tickets.CountHistorical(ctx, vehicleID); err != nil {
		pkgApp.LogWarn(ctx, s.logger, "could not count previous visits", err, map[string]interface{}{
			"vehicle_id": vehicleID,
		})
	} else {
		loyal = count > 1
	}

	return EntryResult{Ticket: *ticket, Spot: spot, LoyaltyEligible: loyal}, nil
}

func (s *ParkingService) leave(ctx context.Context, prompter Prompter) (ExitResult, error) {
	vehicleID, err := prompter.VehicleID(ctx)
	if err != nil {
		return ExitResult{}, err
	}
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return ExitResult{}, domain.ErrEmptyVehicleID
	}

	unlock, err := s.lock(ctx, VehicleLockKey(vehicleID))
	if err != nil {
		return ExitResult{}, err
	}
	defer unlock()

	ticket, err := s.tickets.FindOpenOrLatest(ctx, vehicleID)
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		return ExitResult{}, fmt.Errorf("%w: %s", domain.ErrNoActiveTicket, vehicleID)
	case err != nil:
		return ExitResult{}, persistenceError("find ticket", err)
	case ticket == nil || !ticket.IsOpen():
		return ExitResult{}, fmt.Errorf("%w: %s", domain.ErrNoActiveTicket, vehicleID)
	}

	exit := s.clock.Now()

	count, err := s.tickets.CountHistorical(ctx, vehicleID)
	if err != nil {
		return ExitResult{}, persistenceError("count tickets", err)
	}
	loyal := count > 1

	price, err := s.fares.ComputeFare(ticket.Spot.Category, ticket.EntryTime, exit, loyal)
	if err != nil {
		return ExitResult{}, err
	}
	if err := ticket.Close(exit, price); err != nil {
		return ExitResult{}, err
	}

	err = s.withinTx(ctx, func(ctx context.Context) error {
		if err := s.tickets.Update(ctx, *ticket); err != nil {
			return persistenceError("update ticket", err)
		}
		if err := s.spots.UpdateAvailability(ctx, ticket.Spot.ID, true); err != nil {
			return persistenceError(fmt.Sprintf("release spot %d", ticket.Spot.ID), err)
		}
		return nil
	})
	if err != nil {
		return ExitResult{}, err
	}

	return ExitResult{Ticket: *ticket, LoyaltyApplied: loyal}, nil
}

func (s *ParkingService) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return unlock, nil
}

func (s *ParkingService) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}

func (s *ParkingService) publish(ctx context.Context, event pkgDomain.Event[TicketEventData]) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		pkgApp.LogWarn(ctx, s.logger, "event not published", err, map[string]interface{}{
			"event_name": event.EventName(),
		})
	}
}

// fail classifies err. Persistence is checked first: a repository error wrapping
// domain.ErrSpotNotFound is still a storage fault, not a user mistake.
func (s *ParkingService) fail(ctx context.Context, operation string, err error) error {
	fields := map[string]interface{}{"operation": operation}

	if !errors.Is(err, domain.ErrPersistence) &&
		(errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound)) {
		fields["reason"] = err.Error()
		pkgApp.LogInfo(ctx, s.logger, operation+" rejected", fields)
		return err
	}

	pkgApp.LogError(ctx, s.logger, operation+" failed", err, fields)
	return fmt.Errorf("%w: %w", domain.ErrProcessing, err)
}

func (s *ParkingService) recoverPanic(ctx context.Context, operation string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("%w: %s: panic: %v", domain.ErrProcessing, operation, r)
	pkgApp.LogError(ctx, s.logger, operation+" failed", err, map[string]interface{}{"operation": operation})
	*errp = err
}

func (s *ParkingService) withTransactionID(ctx context.Context) context.Context {
	if _, ok := pkgApp.TransactionID(ctx); ok {
		return ctx
	}
	return pkgApp.WithTransactionID(ctx, s.newID())
}

func persistenceError(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, step, err)
}
