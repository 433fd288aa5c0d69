package application

import (
	"context"

	"github.com/mateusmacedo/parkit/pkg/domain"
)

// CommandHandler executes one kind of command.
type CommandHandler[C domain.Command[T], T any] interface {
	Handle(ctx context.Context, command C) error
}

// CommandBus routes a command to the handler registered under its name.
type CommandBus[C domain.Command[T], T any] interface {
	RegisterHandler(commandName string, handler CommandHandler[C, T])
	Dispatch(ctx context.Context, command C) error
}
