package application

import (
	"context"
	"strings"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
)

// Locker serializes work on a key. Lock blocks until the key is free or ctx is done; the
// returned func releases it and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func CategoryLockKey(category domain.Category) string {
	return "category:" + category.String()
}

func VehicleLockKey(vehicleID string) string {
	return "vehicle:" + strings.ToUpper(strings.TrimSpace(vehicleID))
}
