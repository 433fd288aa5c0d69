package infrastructure

import (
	"context"
	"fmt"

	"github.com/mateusmacedo/parkit/internal/config"
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

// Store is a backend serving both repositories.
type Store interface {
	domain.SpotRepository
	domain.TicketRepository
	Close() error
}

// OpenStore opens the backend selected by cfg.Store and seeds its spots.
func OpenStore(ctx context.Context, cfg *config.Config, logger pkgApp.AppLogger) (Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryStore(cfg.CarSpots, cfg.BikeSpots, logger), nil
	case config.StoreSQLite:
		return OpenSQLiteStore(ctx, cfg.SQLitePath, cfg.CarSpots, cfg.BikeSpots, logger)
	case config.StorePostgres:
		return OpenPgxStore(ctx, cfg.PostgresDSN(), cfg.CarSpots, cfg.BikeSpots, logger)
	case config.StoreGorm:
		return OpenGormStore(ctx, cfg.PostgresDSN(), cfg.CarSpots, cfg.BikeSpots, logger)
	}
	return nil, fmt.Errorf("unsupported store %q", cfg.Store)
}

// seedSpots numbers CAR spots first, then BIKE spots, starting at 1.
func seedSpots(carSpots, bikeSpots int) []domain.Spot {
	spots := make([]domain.Spot, 0, carSpots+bikeSpots)
	for i := 0; i < carSpots; i++ {
		spots = append(spots, domain.Spot{ID: len(spots) + 1, Category: domain.CategoryCar, Available: true})
	}
	for i := 0; i < bikeSpots; i++ {
		spots = append(spots, domain.Spot{ID: len(spots) + 1, Category: domain.CategoryBike, Available: true})
	}
	return spots
}
