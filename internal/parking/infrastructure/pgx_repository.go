package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

var pgxSchema = []string{
	`CREATE TABLE IF NOT EXISTS parking_spots (
		id INTEGER PRIMARY KEY,
		category TEXT NOT NULL CHECK (category IN ('CAR', 'BIKE')),
		available BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGSERIAL PRIMARY KEY,
		spot_id INTEGER NOT NULL REFERENCES parking_spots(id),
		vehicle_id TEXT NOT NULL,
		price NUMERIC(12, 2) NOT NULL DEFAULT 0 CHECK (price >= 0),
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time TIMESTAMPTZ,
		CHECK (exit_time IS NULL OR exit_time >= entry_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_vehicle_id ON tickets (vehicle_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_one_open_per_vehicle ON tickets (vehicle_id) WHERE exit_time IS NULL`,
}

type pgxTxKey struct{}

// PgxStore persists spots and tickets in PostgreSQL through a pgx connection pool.
type PgxStore struct {
	pool   *pgxpool.Pool
	logger pkgApp.AppLogger
}

func OpenPgxStore(ctx context.Context, dsn string, carSpots, bikeSpots int, logger pkgApp.AppLogger) (*PgxStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPgxStore(pool, logger)
	if err := store.Migrate(ctx, carSpots, bikeSpots); err != nil {
		pool.Close()
		return nil, err
	}

	pkgApp.LogInfo(ctx, logger, "postgres store ready", map[string]interface{}{"host": cfg.ConnConfig.Host})
	return store, nil
}

func NewPgxStore(pool *pgxpool.Pool, logger pkgApp.AppLogger) *PgxStore {
	return &PgxStore{pool: pool, logger: logger}
}

// Migrate applies the schema and seeds the spots when none exist.
func (s *PgxStore) Migrate(ctx context.Context, carSpots, bikeSpots int) error {
	for _, stmt := range pgxSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return s.WithinTx(ctx, func(ctx context.Context) error {
		var count int
		if err := s.queryRow(ctx, `SELECT COUNT(*) FROM parking_spots`).Scan(&count); err != nil {
			return fmt.Errorf("count spots: %w", err)
		}
		if count > 0 {
			return nil
		}
		for _, spot := range seedSpots(carSpots, bikeSpots) {
			if _, err := s.exec(ctx,
				`INSERT INTO parking_spots (id, category, available) VALUES ($1, $2, TRUE) ON CONFLICT (id) DO NOTHING`,
				spot.ID, spot.Category.String(),
			); err != nil {
				return fmt.Errorf("seed spot %d: %w", spot.ID, err)
			}
		}
		return nil
	})
}

func (s *PgxStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if pgxTxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, pgxTxKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgxStore) NextAvailable(ctx context.Context, category domain.Category) (int, error) {
	var id int
	err := s.queryRow(ctx,
		`SELECT id FROM parking_spots WHERE category = $1 AND available ORDER BY id LIMIT 1`,
		category.String(),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next available spot: %w", err)
	}
	return id, nil
}

func (s *PgxStore) UpdateAvailability(ctx context.Context, spotID int, available bool) error {
	tag, err := s.exec(ctx,
		`UPDATE parking_spots SET available = $1 WHERE id = $2 AND (available OR $1)`, available, spotID)
	if err != nil {
		return fmt.Errorf("update spot %d: %w", spotID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parking_spots WHERE id = $1)`, spotID).Scan(&exists); err != nil {
		return fmt.Errorf("check spot %d: %w", spotID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %d", domain.ErrSpotNotFound, spotID)
	}
	return fmt.Errorf("%w: %d", domain.ErrSpotTaken, spotID)
}

func (s *PgxStore) Save(ctx context.Context, ticket *domain.Ticket) error {
	err := s.queryRow(ctx, `
INSERT INTO tickets (spot_id, vehicle_id, price, entry_time, exit_time)
VALUES ($1, $2, $3::numeric, $4, $5)
RETURNING id`,
		ticket.Spot.ID, ticket.VehicleID, ticket.Price.StringFixed(2), ticket.EntryTime, ticket.ExitTime,
	).Scan(&ticket.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrVehicleAlreadyParked, ticket.VehicleID)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (s *PgxStore) FindOpenOrLatest(ctx context.Context, vehicleID string) (*domain.Ticket, error) {
	const query = `
SELECT t.id, t.spot_id, p.category, p.available, t.vehicle_id, t.price::text, t.entry_time, t.exit_time
FROM tickets t
JOIN parking_spots p ON p.id = t.spot_id
WHERE t.vehicle_id = $1
ORDER BY (t.exit_time IS NULL) DESC, t.id DESC
LIMIT 1`

	var (
		t        domain.Ticket
		category string
		price    string
	)
	err := s.queryRow(ctx, query, vehicleID).
		Scan(&t.ID, &t.Spot.ID, &category, &t.Spot.Available, &t.VehicleID, &price, &t.EntryTime, &t.ExitTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}

	t.Spot.Category = domain.Category(category)
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("ticket %d price %q: %w", t.ID, price, err)
	}
	t.EntryTime = t.EntryTime.UTC()
	if t.ExitTime != nil {
		exit := t.ExitTime.UTC()
		t.ExitTime = &exit
	}
	return &t, nil
}

func (s *PgxStore) Update(ctx context.Context, ticket domain.Ticket) error {
	tag, err := s.exec(ctx,
		`UPDATE tickets SET price = $1::numeric, exit_time = $2 WHERE id = $3`,
		ticket.Price.StringFixed(2), ticket.ExitTime, ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, ticket.ID)
	}
	return nil
}

func (s *PgxStore) CountHistorical(ctx context.Context, vehicleID string) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE vehicle_id = $1`, vehicleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (s *PgxStore) HasOpenTicket(ctx context.Context, vehicleID string) (bool, error) {
	var open bool
	if err := s.queryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE vehicle_id = $1 AND exit_time IS NULL)`, vehicleID,
	).Scan(&open); err != nil {
		return false, fmt.Errorf("check open ticket: %w", err)
	}
	return open, nil
}

func (s *PgxStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PgxStore) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := pgxTxFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return s.pool.Exec(ctx, sql, args...)
}

func (s *PgxStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := pgxTxFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

func pgxTxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(pgxTxKey{}).(pgx.Tx)
	return tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
