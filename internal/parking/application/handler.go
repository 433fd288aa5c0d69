package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
)

type parkVehicleHandler struct {
	service *ParkingService
	logger  pkgApp.AppLogger
}

func (h *parkVehicleHandler) Handle(ctx context.Context, command pkgDomain.Command[ParkingCommandData]) error {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return ctx.Err()
	}

	data := command.Payload()
	_, err := h.service.ProcessIncomingVehicle(ctx, NewFixedPrompter(data.Category, data.VehicleID))
	return err
}

func NewParkVehicleHandler(service *ParkingService, logger pkgApp.AppLogger) CommandHandler {
	return &parkVehicleHandler{service: service, logger: logger}
}

type exitVehicleHandler struct {
	service *ParkingService
	logger  pkgApp.AppLogger
}

func (h *exitVehicleHandler) Handle(ctx context.Context, command pkgDomain.Command[ParkingCommandData]) error {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return ctx.Err()
	}

	data := command.Payload()
	_, err := h.service.ProcessExitingVehicle(ctx, NewFixedPrompter(data.Category, data.VehicleID))
	return err
}

func NewExitVehicleHandler(service *ParkingService, logger pkgApp.AppLogger) CommandHandler {
	return &exitVehicleHandler{service: service, logger: logger}
}

type findTicketHandler struct {
	tickets domain.TicketRepository
	logger  pkgApp.AppLogger
}

// Handle returns the vehicle's open ticket, or its latest one once it has left.
func (h *findTicketHandler) Handle(ctx context.Context, query pkgDomain.Query[FindTicketData]) (domain.Ticket, error) {
	if ctx.Err() != nil {
		pkgApp.LogError(ctx, h.logger, "context cancelled", ctx.Err(), nil)
		return domain.Ticket{}, ctx.Err()
	}

	vehicleID := strings.TrimSpace(query.Payload().VehicleID)
	if vehicleID == "" {
		return domain.Ticket{}, domain.ErrEmptyVehicleID
	}

	ticket, err := h.tickets.FindOpenOrLatest(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Ticket{}, err
		}
		pkgApp.LogError(ctx, h.logger, "find ticket failed", err, map[string]interface{}{"vehicle_id": vehicleID})
		return domain.Ticket{}, fmt.Errorf("%w: find ticket: %w", domain.ErrPersistence, err)
	}
	if ticket == nil {
		return domain.Ticket{}, domain.ErrTicketNotFound
	}

	pkgApp.LogDebug(ctx, h.logger, "ticket found", map[string]interface{}{
		"vehicle_id": vehicleID,
		"ticket_id":  ticket.ID,
	})
	return *ticket, nil
}

func NewFindTicketHandler(tickets domain.TicketRepository, logger pkgApp.AppLogger) QueryHandler {
	return &findTicketHandler{tickets: tickets, logger: logger}
}

type ticketEventHandler struct {
	logger pkgApp.AppLogger
}

func (h *ticketEventHandler) Handle(ctx context.Context, event pkgDomain.Event[TicketEventData]) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	data := event.Payload()
	pkgApp.LogInfo(ctx, h.logger, "event received", map[string]interface{}{
		"event_name": event.EventName(),
		"ticket_id":  data.TicketID,
		"vehicle_id": data.VehicleID,
		"spot_id":    data.SpotID,
		"price":      data.Price,
	})
	return nil
}

// NewTicketEventHandler returns a handler that records parking events in the log.
func NewTicketEventHandler(logger pkgApp.AppLogger) EventHandler {
	return &ticketEventHandler{logger: logger}
}
