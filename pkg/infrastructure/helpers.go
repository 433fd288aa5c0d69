package infrastructure

import (
	"github.com/google/uuid"

	"github.com/mateusmacedo/parkit/pkg/domain"
)

func GenerateUUID() string {
	return uuid.New().String()
}

// NewUUIDGenerator returns an IDGenerator backed by random (v4) UUIDs.
func NewUUIDGenerator() domain.IDGenerator[string] {
	return GenerateUUID
}
