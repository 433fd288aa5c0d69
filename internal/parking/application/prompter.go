package application

import (
	"context"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
)

// Prompter supplies the input of one transaction. The service asks for the category first
// and for the vehicle id only after a spot was found.
type Prompter interface {
	VehicleCategory(ctx context.Context) (domain.Category, error)
	VehicleID(ctx context.Context) (string, error)
}

type fixedPrompter struct {
	category  string
	vehicleID string
}

// NewFixedPrompter answers with values known up front, as HTTP and bus commands carry them.
func NewFixedPrompter(category, vehicleID string) Prompter {
	return fixedPrompter{category: category, vehicleID: vehicleID}
}

func (p fixedPrompter) VehicleCategory(context.Context) (domain.Category, error) {
	return domain.ParseCategory(p.category)
}

func (p fixedPrompter) VehicleID(context.Context) (string, error) {
	return p.vehicleID, nil
}
