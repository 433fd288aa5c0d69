package infrastructure

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	zapAdapter "github.com/mateusmacedo/parkit/pkg/infrastructure/zaplogger/adapter"
)

// runStoreContract checks the repository behaviour every backend must share. The store
// must be seeded with 2 CAR and 1 BIKE spots and hold no tickets.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	entry := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("next available returns lowest free id per category", func(t *testing.T) {
		id, err := store.NextAvailable(ctx, domain.CategoryCar)
		if err != nil || id != 1 {
			t.Fatalf("expected car spot 1, got %d (%v)", id, err)
		}
		id, err = store.NextAvailable(ctx, domain.CategoryBike)
		if err != nil || id != 3 {
			t.Fatalf("expected bike spot 3, got %d (%v)", id, err)
		}
	})

	t.Run("occupied spots are skipped and full category yields zero", func(t *testing.T) {
		if err := store.UpdateAvailability(ctx, 3, false); err != nil {
			t.Fatalf("update availability: %v", err)
		}
		id, err := store.NextAvailable(ctx, domain.CategoryBike)
		if err != nil || id > 0 {
			t.Fatalf("expected no bike spot, got %d (%v)", id, err)
		}
		if err := store.UpdateAvailability(ctx, 3, true); err != nil {
			t.Fatalf("update availability: %v", err)
		}
	})

	t.Run("claiming an occupied spot conflicts", func(t *testing.T) {
		if err := store.UpdateAvailability(ctx, 3, false); err != nil {
			t.Fatalf("first claim: %v", err)
		}
		err := store.UpdateAvailability(ctx, 3, false)
		if !errors.Is(err, domain.ErrSpotTaken) || !errors.Is(err, domain.ErrNoSpotAvailable) {
			t.Fatalf("expected ErrSpotTaken, got %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := store.UpdateAvailability(ctx, 3, true); err != nil {
				t.Fatalf("release %d: %v", i, err)
			}
		}
	})

	t.Run("rolled back transaction leaves no trace", func(t *testing.T) {
		tx, ok := store.(domain.Transactor)
		if !ok {
			t.Fatalf("%T does not run transactions", store)
		}
		boom := errors.New("boom")
		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			ticket, _ := domain.NewTicket(domain.Spot{ID: 3, Category: domain.CategoryBike}, "BK-9", entry)
			if err := store.Save(ctx, ticket); err != nil {
				return err
			}
			if err := store.UpdateAvailability(ctx, 3, false); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if n, _ := store.CountHistorical(ctx, "BK-9"); n != 0 {
			t.Fatalf("ticket survived rollback")
		}
		if id, _ := store.NextAvailable(ctx, domain.CategoryBike); id != 3 {
			t.Fatalf("spot claim survived rollback")
		}
	})

	t.Run("unknown spot", func(t *testing.T) {
		if err := store.UpdateAvailability(ctx, 99, false); !errors.Is(err, domain.ErrSpotNotFound) {
			t.Fatalf("expected ErrSpotNotFound, got %v", err)
		}
	})

	t.Run("ticket lifecycle", func(t *testing.T) {
		if _, err := store.FindOpenOrLatest(ctx, "AB-123"); !errors.Is(err, domain.ErrTicketNotFound) {
			t.Fatalf("expected ErrTicketNotFound, got %v", err)
		}

		first, err := domain.NewTicket(domain.Spot{ID: 2, Category: domain.CategoryCar}, "AB-123", entry)
		if err != nil {
			t.Fatalf("new ticket: %v", err)
		}
		if err := store.Save(ctx, first); err != nil {
			t.Fatalf("save: %v", err)
		}
		if first.ID <= 0 {
			t.Fatalf("expected an assigned id, got %d", first.ID)
		}

		open, err := store.HasOpenTicket(ctx, "AB-123")
		if err != nil || !open {
			t.Fatalf("expected open ticket, got %t (%v)", open, err)
		}

		duplicate, _ := domain.NewTicket(domain.Spot{ID: 1, Category: domain.CategoryCar}, "AB-123", entry)
		if err := store.Save(ctx, duplicate); !errors.Is(err, domain.ErrVehicleAlreadyParked) {
			t.Fatalf("expected ErrVehicleAlreadyParked for a second open ticket, got %v", err)
		}

		found, err := store.FindOpenOrLatest(ctx, "AB-123")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if found.ID != first.ID || found.Spot.ID != 2 || found.Spot.Category != domain.CategoryCar {
			t.Fatalf("unexpected ticket %+v", found)
		}
		if !found.EntryTime.Equal(entry) || found.ExitTime != nil || !found.Price.IsZero() {
			t.Fatalf("unexpected ticket state %+v", found)
		}

		if err := found.Close(entry.Add(90*time.Minute), decimal.RequireFromString("2.14")); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := store.Update(ctx, *found); err != nil {
			t.Fatalf("update: %v", err)
		}

		open, err = store.HasOpenTicket(ctx, "AB-123")
		if err != nil || open {
			t.Fatalf("expected no open ticket, got %t (%v)", open, err)
		}
		latest, err := store.FindOpenOrLatest(ctx, "AB-123")
		if err != nil {
			t.Fatalf("find latest: %v", err)
		}
		if latest.IsOpen() || !latest.Price.Equal(decimal.RequireFromString("2.14")) {
			t.Fatalf("expected closed ticket priced 2.14, got %+v", latest)
		}
		if !latest.ExitTime.Equal(entry.Add(90 * time.Minute)) {
			t.Fatalf("unexpected exit time %v", latest.ExitTime)
		}

		second, _ := domain.NewTicket(domain.Spot{ID: 1, Category: domain.CategoryCar}, "AB-123", entry.Add(24*time.Hour))
		if err := store.Save(ctx, second); err != nil {
			t.Fatalf("save second: %v", err)
		}
		current, err := store.FindOpenOrLatest(ctx, "AB-123")
		if err != nil || current.ID != second.ID {
			t.Fatalf("expected the open ticket %d, got %+v (%v)", second.ID, current, err)
		}

		n, err := store.CountHistorical(ctx, "AB-123")
		if err != nil || n != 2 {
			t.Fatalf("expected 2 tickets, got %d (%v)", n, err)
		}
		n, err = store.CountHistorical(ctx, "ZZ-000")
		if err != nil || n != 0 {
			t.Fatalf("expected 0 tickets, got %d (%v)", n, err)
		}
	})

	t.Run("update of unknown ticket", func(t *testing.T) {
		exit := entry
		err := store.Update(ctx, domain.Ticket{ID: 9999, ExitTime: &exit, Price: decimal.Zero})
		if !errors.Is(err, domain.ErrTicketNotFound) {
			t.Fatalf("expected ErrTicketNotFound, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(2, 1, zapAdapter.NewNop())
	runStoreContract(t, store)

	spots := store.Spots()
	if len(spots) != 3 || spots[0].Category != domain.CategoryCar || spots[2].Category != domain.CategoryBike {
		t.Fatalf("unexpected seed %+v", spots)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, ":memory:", 2, 1, zapAdapter.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runStoreContract(t, store)
}

func TestSQLiteStore_SeedsOnce(t *testing.T) {
	path := t.TempDir() + "/parkit.db"
	ctx := context.Background()

	store, err := OpenSQLiteStore(ctx, path, 1, 0, zapAdapter.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.UpdateAvailability(ctx, 1, false); err != nil {
		t.Fatalf("update: %v", err)
	}
	store.Close()

	reopened, err := OpenSQLiteStore(ctx, path, 5, 5, zapAdapter.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if id, err := reopened.NextAvailable(ctx, domain.CategoryCar); err != nil || id != 0 {
		t.Fatalf("expected persisted occupancy and no reseed, got %d (%v)", id, err)
	}
}

func TestPgxStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := OpenPgxStore(ctx, dsn, 2, 1, zapAdapter.NewNop())
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.pool.Exec(ctx, `TRUNCATE tickets, parking_spots RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := store.Migrate(ctx, 2, 1); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runStoreContract(t, store)
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := OpenGormStore(ctx, dsn, 2, 1, zapAdapter.NewNop())
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.db.Exec(`TRUNCATE tickets, parking_spots RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := store.Migrate(ctx, 2, 1); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runStoreContract(t, store)
}
