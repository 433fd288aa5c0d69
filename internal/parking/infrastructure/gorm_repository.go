package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

type spotModel struct {
	ID        int    `gorm:"primaryKey;autoIncrement:false"`
	Category  string `gorm:"type:text;not null;index"`
	Available bool   `gorm:"not null;default:true"`
}

func (spotModel) TableName() string { return "parking_spots" }

type ticketModel struct {
	ID        int64           `gorm:"primaryKey"`
	SpotID    int             `gorm:"not null"`
	Spot      spotModel       `gorm:"foreignKey:SpotID"`
	VehicleID string          `gorm:"type:text;not null;index"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	EntryTime time.Time       `gorm:"not null"`
	ExitTime  *time.Time
}

func (ticketModel) TableName() string { return "tickets" }

type gormTxKey struct{}

// GormStore persists spots and tickets in PostgreSQL through GORM.
type GormStore struct {
	db     *gorm.DB
	logger pkgApp.AppLogger
}

func OpenGormStore(ctx context.Context, dsn string, carSpots, bikeSpots int, appLogger pkgApp.AppLogger) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	store := NewGormStore(db, appLogger)
	if err := store.Migrate(ctx, carSpots, bikeSpots); err != nil {
		return nil, err
	}

	pkgApp.LogInfo(ctx, appLogger, "gorm store ready", nil)
	return store, nil
}

func NewGormStore(db *gorm.DB, appLogger pkgApp.AppLogger) *GormStore {
	return &GormStore{db: db, logger: appLogger}
}

// Migrate creates the tables and seeds the spots when none exist.
func (s *GormStore) Migrate(ctx context.Context, carSpots, bikeSpots int) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&spotModel{}, &ticketModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := s.db.WithContext(ctx).Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_one_open_per_vehicle ON tickets (vehicle_id) WHERE exit_time IS NULL`,
	).Error; err != nil {
		return fmt.Errorf("create open ticket index: %w", err)
	}

	return s.WithinTx(ctx, func(ctx context.Context) error {
		var count int64
		if err := s.conn(ctx).Model(&spotModel{}).Count(&count).Error; err != nil {
			return fmt.Errorf("count spots: %w", err)
		}
		if count > 0 {
			return nil
		}

		spots := seedSpots(carSpots, bikeSpots)
		if len(spots) == 0 {
			return nil
		}
		models := make([]spotModel, 0, len(spots))
		for _, spot := range spots {
			models = append(models, spotModel{ID: spot.ID, Category: spot.Category.String(), Available: true})
		}
		if err := s.conn(ctx).Create(&models).Error; err != nil {
			return fmt.Errorf("seed spots: %w", err)
		}
		return nil
	})
}

func (s *GormStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

func (s *GormStore) NextAvailable(ctx context.Context, category domain.Category) (int, error) {
	var spots []spotModel
	err := s.conn(ctx).
		Where("category = ? AND available = ?", category.String(), true).
		Order("id").
		Limit(1).
		Find(&spots).Error
	if err != nil {
		return 0, fmt.Errorf("next available spot: %w", err)
	}
	if len(spots) == 0 {
		return 0, nil
	}
	return spots[0].ID, nil
}

func (s *GormStore) UpdateAvailability(ctx context.Context, spotID int, available bool) error {
	res := s.conn(ctx).Model(&spotModel{}).
		Where("id = ? AND (available OR ?)", spotID, available).
		Update("available", available)
	if res.Error != nil {
		return fmt.Errorf("update spot %d: %w", spotID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.conn(ctx).Model(&spotModel{}).Where("id = ?", spotID).Count(&count).Error; err != nil {
		return fmt.Errorf("check spot %d: %w", spotID, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %d", domain.ErrSpotNotFound, spotID)
	}
	return fmt.Errorf("%w: %d", domain.ErrSpotTaken, spotID)
}

func (s *GormStore) Save(ctx context.Context, ticket *domain.Ticket) error {
	model := ticketModel{
		SpotID:    ticket.Spot.ID,
		VehicleID: ticket.VehicleID,
		Price:     ticket.Price,
		EntryTime: ticket.EntryTime,
		ExitTime:  ticket.ExitTime,
	}
	if err := s.conn(ctx).Omit("Spot").Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrVehicleAlreadyParked, ticket.VehicleID)
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	ticket.ID = model.ID
	return nil
}

func (s *GormStore) FindOpenOrLatest(ctx context.Context, vehicleID string) (*domain.Ticket, error) {
	var model ticketModel
	err := s.conn(ctx).
		Preload("Spot").
		Where("vehicle_id = ?", vehicleID).
		Order("exit_time IS NULL DESC").
		Order("id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket: %w", err)
	}

	ticket := domain.Ticket{
		ID: model.ID,
		Spot: domain.Spot{
			ID:        model.Spot.ID,
			Category:  domain.Category(model.Spot.Category),
			Available: model.Spot.Available,
		},
		VehicleID: model.VehicleID,
		Price:     model.Price,
		EntryTime: model.EntryTime.UTC(),
	}
	if model.ExitTime != nil {
		exit := model.ExitTime.UTC()
		ticket.ExitTime = &exit
	}
	return &ticket, nil
}

func (s *GormStore) Update(ctx context.Context, ticket domain.Ticket) error {
	res := s.conn(ctx).Model(&ticketModel{}).Where("id = ?", ticket.ID).Updates(map[string]interface{}{
		"price":     ticket.Price,
		"exit_time": ticket.ExitTime,
	})
	if res.Error != nil {
		return fmt.Errorf("update ticket %d: %w", ticket.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", domain.ErrTicketNotFound, ticket.ID)
	}
	return nil
}

func (s *GormStore) CountHistorical(ctx context.Context, vehicleID string) (int, error) {
	var n int64
	if err := s.conn(ctx).Model(&ticketModel{}).Where("vehicle_id = ?", vehicleID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return int(n), nil
}

func (s *GormStore) HasOpenTicket(ctx context.Context, vehicleID string) (bool, error) {
	var n int64
	err := s.conn(ctx).Model(&ticketModel{}).
		Where("vehicle_id = ? AND exit_time IS NULL", vehicleID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check open ticket: %w", err)
	}
	return n > 0, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
