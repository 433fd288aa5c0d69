package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
	zapAdapter "github.com/mateusmacedo/parkit/pkg/infrastructure/zaplogger/adapter"
)

var now = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

func newObservedLogger() (pkgApp.AppLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zapAdapter.New(zap.New(core)), logs
}

// fakeStore implements both repositories over slices and records every call.
type fakeStore struct {
	mu      sync.Mutex
	spots   []domain.Spot
	tickets []domain.Ticket
	calls   []string

	nextAvailableErr error
	hasOpenErr       error
	saveErr          error
	findErr          error
	updateErr        error
	availabilityErr  error
	countErr         error
	panicOnSave      bool
}

func newFakeStore(carSpots, bikeSpots int) *fakeStore {
	s := &fakeStore{}
	id := 1
	for i := 0; i < carSpots; i++ {
		s.spots = append(s.spots, domain.Spot{ID: id, Category: domain.CategoryCar, Available: true})
		id++
	}
	for i := 0; i < bikeSpots; i++ {
		s.spots = append(s.spots, domain.Spot{ID: id, Category: domain.CategoryBike, Available: true})
		id++
	}
	return s
}

func (s *fakeStore) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *fakeStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeStore) Spot(id int) domain.Spot {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spot := range s.spots {
		if spot.ID == id {
			return spot
		}
	}
	return domain.Spot{}
}

func (s *fakeStore) Tickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Ticket(nil), s.tickets...)
}

// park seeds an open ticket and occupies its spot.
func (s *fakeStore) park(spotID int, vehicleID string, entry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.spots {
		if s.spots[i].ID == spotID {
			s.spots[i].Available = false
			s.tickets = append(s.tickets, domain.Ticket{
				ID:        int64(len(s.tickets) + 1),
				Spot:      s.spots[i],
				VehicleID: vehicleID,
				EntryTime: entry,
			})
		}
	}
}

// visit seeds a closed ticket.
func (s *fakeStore) visit(spotID int, vehicleID string, entry, exit time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, spot := range s.spots {
		if spot.ID == spotID {
			exit := exit
			s.tickets = append(s.tickets, domain.Ticket{
				ID:        int64(len(s.tickets) + 1),
				Spot:      spot,
				VehicleID: vehicleID,
				EntryTime: entry,
				ExitTime:  &exit,
			})
		}
	}
}

func (s *fakeStore) NextAvailable(_ context.Context, category domain.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("NextAvailable(%s)", category)
	if s.nextAvailableErr != nil {
		return 0, s.nextAvailableErr
	}
	for _, spot := range s.spots {
		if spot.Category == category && spot.Available {
			return spot.ID, nil
		}
	}
	return 0, nil
}

func (s *fakeStore) UpdateAvailability(_ context.Context, spotID int, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("UpdateAvailability(%d,%t)", spotID, available)
	if s.availabilityErr != nil {
		return s.availabilityErr
	}
	for i := range s.spots {
		if s.spots[i].ID == spotID {
			if !available && !s.spots[i].Available {
				return fmt.Errorf("%w: %d", domain.ErrSpotTaken, spotID)
			}
			s.spots[i].Available = available
			return nil
		}
	}
	return domain.ErrSpotNotFound
}

func (s *fakeStore) Save(_ context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Save(%s)", ticket.VehicleID)
	if s.panicOnSave {
		panic("disk on fire")
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	ticket.ID = int64(len(s.tickets) + 1)
	s.tickets = append(s.tickets, *ticket)
	return nil
}

func (s *fakeStore) FindOpenOrLatest(_ context.Context, vehicleID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("FindOpenOrLatest(%s)", vehicleID)
	if s.findErr != nil {
		return nil, s.findErr
	}
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
	for _, t := range matches {
		if t.IsOpen() {
			t := t
			return &t, nil
		}
	}
	latest := matches[0]
	return &latest, nil
}

func (s *fakeStore) Update(_ context.Context, ticket domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("Update(%d)", ticket.ID)
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.tickets {
		if s.tickets[i].ID == ticket.ID {
			s.tickets[i].Price = ticket.Price
			s.tickets[i].ExitTime = ticket.ExitTime
			return nil
		}
	}
	return domain.ErrTicketNotFound
}

func (s *fakeStore) CountHistorical(_ context.Context, vehicleID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("CountHistorical(%s)", vehicleID)
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, t := range s.tickets {
		if t.VehicleID == vehicleID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) HasOpenTicket(_ context.Context, vehicleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("HasOpenTicket(%s)", vehicleID)
	if s.hasOpenErr != nil {
		return false, s.hasOpenErr
	}
	for _, t := range s.tickets {
		if t.VehicleID == vehicleID && t.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

// fakeTransactor brackets fn with begin/commit or begin/rollback records in the store's call log.
type fakeTransactor struct {
	store *fakeStore
}

func (f fakeTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.store.mu.Lock()
	f.store.record("begin")
	f.store.mu.Unlock()

	err := fn(ctx)

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if err != nil {
		f.store.record("rollback")
		return err
	}
	f.store.record("commit")
	return nil
}

type recordingLocker struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.events = append(l.events, "lock "+key)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, "unlock "+key)
		})
	}, nil
}

func (l *recordingLocker) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type scriptedPrompter struct {
	category    domain.Category
	categoryErr error
	vehicleID   string
	asked       []string
}

func (p *scriptedPrompter) VehicleCategory(context.Context) (domain.Category, error) {
	p.asked = append(p.asked, "category")
	return p.category, p.categoryErr
}

func (p *scriptedPrompter) VehicleID(context.Context) (string, error) {
	p.asked = append(p.asked, "vehicle")
	return p.vehicleID, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []pkgDomain.Event[TicketEventData]
	txIDs  []string
	err    error
}

func (p *capturingPublisher) Publish(ctx context.Context, event pkgDomain.Event[TicketEventData]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	txID, _ := pkgApp.TransactionID(ctx)
	p.txIDs = append(p.txIDs, txID)
	return p.err
}
