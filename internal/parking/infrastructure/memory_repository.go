package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

// MemoryStore keeps spots and tickets in process memory. State is lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	spots   []domain.Spot
	tickets []domain.Ticket
	lastID  int64
	logger  pkgApp.AppLogger
}

type memoryTxKey struct{}

// memoryTx records how to revert each write made inside WithinTx. Undo steps run with
// the store lock held.
type memoryTx struct {
	undo []func()
}

func NewMemoryStore(carSpots, bikeSpots int, logger pkgApp.AppLogger) *MemoryStore {
	return &MemoryStore{
		spots:  seedSpots(carSpots, bikeSpots),
		logger: logger,
	}
}

// WithinTx runs fn and reverts every write fn made through the store when it fails. Writes
// are reverted individually, so concurrent transactions on other spots and vehicles are kept.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		return fn(ctx)
	}

	tx := &memoryTx{}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		pkgApp.LogDebug(ctx, s.logger, "memory transaction rolled back", map[string]interface{}{
			"writes": len(tx.undo),
		})
		return err
	}
	return nil
}

// recordUndo must be called with s.mu held.
func recordUndo(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *MemoryStore) NextAvailable(_ context.Context, category domain.Category) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, spot := range s.spots {
		if spot.Category == category && spot.Available {
			return spot.ID, nil
		}
	}
	return 0, nil
}

func (s *MemoryStore) UpdateAvailability(ctx context.Context, spotID int, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.spots {
		if s.spots[i].ID == spotID {
			if !available && !s.spots[i].Available {
				return fmt.Errorf("%w: %d", domain.ErrSpotTaken, spotID)
			}
			previous := s.spots[i].Available
			s.spots[i].Available = available
			recordUndo(ctx, func() { s.spots[i].Available = previous })
			pkgApp.LogDebug(ctx, s.logger, "spot updated", map[string]interface{}{
				"spot_id":   spotID,
				"available": available,
			})
			return nil
		}
	}
	return domain.ErrSpotNotFound
}

func (s *MemoryStore) Save(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket.IsOpen() {
		for _, t := range s.tickets {
			if t.VehicleID == ticket.VehicleID && t.IsOpen() {
				return fmt.Errorf("%w: %s", domain.ErrVehicleAlreadyParked, ticket.VehicleID)
			}
		}
	}

	s.lastID++
	ticket.ID = s.lastID
	s.tickets = append(s.tickets, cloneTicket(*ticket))

	id := ticket.ID
	recordUndo(ctx, func() {
		for i := range s.tickets {
			if s.tickets[i].ID == id {
				s.tickets = append(s.tickets[:i], s.tickets[i+1:]...)
				return
			}
		}
	})

	pkgApp.LogDebug(ctx, s.logger, "ticket saved", map[string]interface{}{
		"ticket_id":  ticket.ID,
		"vehicle_id": ticket.VehicleID,
	})
	return nil
}

func (s *MemoryStore) FindOpenOrLatest(_ context.Context, vehicleID string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.Ticket
	for _, t := range s.tickets {
		if t.VehicleID == vehicleID {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrTicketNotFound
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	found := matches[0]
	for _, t := range matches {
		if t.IsOpen() {
			found = t
			break
		}
	}
	found = cloneTicket(found)
	return &found, nil
}

func (s *MemoryStore) Update(ctx context.Context, ticket domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tickets {
		if s.tickets[i].ID == ticket.ID {
			id, price, exit := ticket.ID, s.tickets[i].Price, s.tickets[i].ExitTime
			s.tickets[i].Price = ticket.Price
			s.tickets[i].ExitTime = copyTime(ticket.ExitTime)
			recordUndo(ctx, func() {
				for j := range s.tickets {
					if s.tickets[j].ID == id {
						s.tickets[j].Price = price
						s.tickets[j].ExitTime = exit
						return
					}
				}
			})
			pkgApp.LogDebug(ctx, s.logger, "ticket updated", map[string]interface{}{"ticket_id": ticket.ID})
			return nil
		}
	}
	return domain.ErrTicketNotFound
}

func (s *MemoryStore) CountHistorical(_ context.Context, vehicleID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tickets {
		if t.VehicleID == vehicleID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) HasOpenTicket(_ context.Context, vehicleID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tickets {
		if t.VehicleID == vehicleID && t.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

// Spots returns a snapshot of every spot, in id order.
func (s *MemoryStore) Spots() []domain.Spot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Spot(nil), s.spots...)
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.ExitTime = copyTime(t.ExitTime)
	return t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
