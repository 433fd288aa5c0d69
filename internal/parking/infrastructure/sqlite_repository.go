package infrastructure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS parking_spots (
		id INTEGER PRIMARY KEY,
		category TEXT NOT NULL CHECK (category IN ('CAR', 'BIKE')),
		available INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		spot_id INTEGER NOT NULL REFERENCES parking_spots(id),
		vehicle_id TEXT NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		entry_time TEXT NOT NULL,
		exit_time TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_vehicle_id ON tickets(vehicle_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_one_open_per_vehicle ON tickets(vehicle_id) WHERE exit_time IS NULL`,
}

// sqliteTimeLayout sorts lexically in time order, so ORDER BY on the column is chronological.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteTxKey struct{}

type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore persists spots and tickets in a SQLite file through database/sql.
type SQLiteStore struct {
	db     *sql.DB
	logger pkgApp.AppLogger
}

// OpenSQLiteStore opens (or creates) the database at path, applies the schema and seeds the
// spots when the spot table is empty. ":memory:" gives a private in-memory database.
func OpenSQLiteStore(ctx context.Context, path string, carSpots, bikeSpots int, logger pkgApp.AppLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// Every connection to ":memory:" is a separate database, and SQLite allows one writer.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrate(ctx, carSpots, bikeSpots); err != nil {
		db.Close()
		return nil, err
	}

	pkgApp.LogInfo(ctx, logger, "sqlite store ready", map[string]interface{}{"path": path})
	return store, nil
}

func (s *SQLiteStore) migrate(ctx context.Context, carSpots, bikeSpots int) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parking_spots`).Scan(&count); err != nil {
		return fmt.Errorf("count spots: %w", err)
	}
	if count > 0 {
		return nil
	}

	return s.WithinTx(ctx, func(ctx context.Context) error {
		for _, spot := range seedSpots(carSpots, bikeSpots) {
			if _, err := s.conn(ctx).ExecContext(ctx,
				`INSERT INTO parking_spots (id, category, available) VALUES (?, ?, 1)`,
				spot.ID, spot.Category.String(),
			); err != nil {
				return fmt.Errorf("seed spot %d: %w", spot.ID, err)
			}
		}
		return nil
	})
}

// WithinTx runs fn in a transaction. Calls made with the context handed to fn join it; a
// nested call reuses the outer transaction.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(sqliteTxKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(context.WithValue(ctx, sqliteTxKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) conn(ctx context.Context) sqlExecutor {
	if tx, ok := ctx.Value(sqliteTxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func (s *SQLiteStore) NextAvailable(ctx context.Context, category domain.Category) (int, error) {
	var id int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id FROM parking_spots WHERE category = ? AND available = 1 ORDER BY id LIMIT 1`,
		category.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("next available spot: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateAvailability(ctx context.Context, spotID int, available bool) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE parking_spots SET available = ? WHERE id = ? AND (available = 1 OR ? = 1)`,
		boolToInt(available), spotID, boolToInt(available))
	if err != nil {
		return fmt.Errorf("update spot %d: %w", spotID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update spot %d: %w", spotID, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM parking_spots WHERE id = ?)`, spotID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check spot %d: %w", spotID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %d", domain.ErrSpotNotFound, spotID)
	}
	return fmt.Errorf("%w: %d", domain.ErrSpotTaken, spotID)
}

func (s *SQLiteStore) Save(ctx context.Context, ticket *domain.Ticket) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO tickets (spot_id, vehicle_id, price, entry_time, exit_time) VALUES (?, ?, ?, ?, ?)`,
		ticket.Spot.ID, ticket.VehicleID, ticket.Price.StringFixed(2),
		formatSQLiteTime(ticket.EntryTime), formatSQLiteNullTime(ticket.ExitTime),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrVehicleAlreadyParked, ticket.VehicleID)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert ticket id: %w", err)
	}
	ticket.ID = id
	return nil
}

func (s *SQLiteStore) FindOpenOrLatest(ctx context.Context, vehicleID string) (*domain.Ticket, error) {
	const query = `
SELECT t.id, t.spot_id, p.category, p.available, t.vehicle_id, t.price, t.entry_time, t.exit_time
FROM tickets t
JOIN parking_spots p ON p.id = t.spot_id
WHERE t.vehicle_id = ?
ORDER BY (t.exit_time IS NULL) DESC, t.id DESC
LIMIT 1`

	var (
		t         domain.Ticket
		category  string
		available int
		price     string
		entry     string
		exit      sql.NullString
	)
	err := s.conn(ctx).QueryRowContext(ctx, query, vehicleID).
		Scan(&t.ID, &t.Spot.ID, &category, &available, &t.VehicleID, &price, &entry, &exit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}

	t.Spot.Category = domain.Category(category)
	t.Spot.Available = available == 1
	if t.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("ticket %d price %q: %w", t.ID, price, err)
	}
	if t.EntryTime, err = time.Parse(sqliteTimeLayout, entry); err != nil {
		return nil, fmt.Errorf("ticket %d entry time: %w", t.ID, err)
	}
	if exit.Valid {
		exitTime, err := time.Parse(sqliteTimeLayout, exit.String)
		if err != nil {
			return nil, fmt.Errorf("ticket %d exit time: %w", t.ID, err)
		}
		t.ExitTime = &exitTime
	}
	return &t, nil
}

func (s *SQLiteStore) Update(ctx context.Context, ticket domain.Ticket) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE tickets SET price = ?, exit_time = ? WHERE id = ?`,
		ticket.Price.StringFixed(2), formatSQLiteNullTime(ticket.ExitTime), ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, ticket.ID)
	}
	return nil
}

func (s *SQLiteStore) CountHistorical(ctx context.Context, vehicleID string) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE vehicle_id = ?`, vehicleID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) HasOpenTicket(ctx context.Context, vehicleID string) (bool, error) {
	var open bool
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE vehicle_id = ? AND exit_time IS NULL)`, vehicleID,
	).Scan(&open); err != nil {
		return false, fmt.Errorf("check open ticket: %w", err)
	}
	return open, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatSQLiteNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatSQLiteTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
