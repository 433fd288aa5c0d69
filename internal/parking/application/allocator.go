package application

import (
	"context"
	"fmt"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

// SpotAllocator finds a free spot for a category. It does not reserve the spot; the caller
// marks it unavailable once the ticket is saved.
type SpotAllocator struct {
	spots  domain.SpotRepository
	logger pkgApp.AppLogger
}

func NewSpotAllocator(spots domain.SpotRepository, logger pkgApp.AppLogger) *SpotAllocator {
	return &SpotAllocator{spots: spots, logger: logger}
}

// Allocate returns the lowest-numbered free spot of the category. found is false when the
// category is full, which is not an error.
func (a *SpotAllocator) Allocate(ctx context.Context, category domain.Category) (spot domain.Spot, found bool, err error) {
	if !category.Valid() {
		return domain.Spot{}, false, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, string(category))
	}

	id, err := a.spots.NextAvailable(ctx, category)
	if err != nil {
		return domain.Spot{}, false, fmt.Errorf("%w: next available %s spot: %w", domain.ErrPersistence, category, err)
	}
	if id <= 0 {
		pkgApp.LogDebug(ctx, a.logger, "no spot available", map[string]interface{}{"category": category.String()})
		return domain.Spot{}, false, nil
	}

	return domain.Spot{ID: id, Category: category, Available: false}, true, nil
}
