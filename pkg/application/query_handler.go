package application

import (
	"context"

	"github.com/mateusmacedo/parkit/pkg/domain"
)

// QueryHandler answers one kind of query.
type QueryHandler[Q domain.Query[T], T any, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// QueryBus routes a query to the handler registered under its name and returns its result.
type QueryBus[Q domain.Query[D], D any, R any] interface {
	RegisterHandler(queryName string, handler QueryHandler[Q, D, R])
	Dispatch(ctx context.Context, query Q) (R, error)
}
