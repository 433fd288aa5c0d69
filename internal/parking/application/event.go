package application

import (
	"time"

	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
)

const (
	VehicleParkedEvent = "VehicleParked"
	VehicleExitedEvent = "VehicleExited"
)

// TicketEventData is the payload of both parking events. Price is the decimal string so
// consumers never see a float.
type TicketEventData struct {
	TicketID  int64      `json:"ticket_id"`
	VehicleID string     `json:"vehicle_id"`
	SpotID    int        `json:"spot_id"`
	Category  string     `json:"category"`
	EntryTime time.Time  `json:"entry_time"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
	Price     string     `json:"price"`
	Loyalty   bool       `json:"loyalty"`
}

type (
	EventBus       = pkgApp.EventBus[pkgDomain.Event[TicketEventData], TicketEventData]
	EventPublisher = pkgApp.EventPublisher[pkgDomain.Event[TicketEventData], TicketEventData]
	EventHandler   = pkgApp.EventHandler[pkgDomain.Event[TicketEventData], TicketEventData]
)

type ticketEvent struct {
	name       string
	data       TicketEventData
	occurredAt time.Time
}

func (e ticketEvent) EventName() string {
	return e.name
}

func (e ticketEvent) Payload() TicketEventData {
	return e.data
}

func (e ticketEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func NewVehicleParkedEvent(ticket domain.Ticket, loyal bool, at time.Time) pkgDomain.Event[TicketEventData] {
	return ticketEvent{name: VehicleParkedEvent, data: newTicketEventData(ticket, loyal), occurredAt: at}
}

func NewVehicleExitedEvent(ticket domain.Ticket, loyal bool, at time.Time) pkgDomain.Event[TicketEventData] {
	return ticketEvent{name: VehicleExitedEvent, data: newTicketEventData(ticket, loyal), occurredAt: at}
}

func newTicketEventData(ticket domain.Ticket, loyal bool) TicketEventData {
	return TicketEventData{
		TicketID:  ticket.ID,
		VehicleID: ticket.VehicleID,
		SpotID:    ticket.Spot.ID,
		Category:  ticket.Spot.Category.String(),
		EntryTime: ticket.EntryTime,
		ExitTime:  ticket.ExitTime,
		Price:     ticket.Price.StringFixed(2),
		Loyalty:   loyal,
	}
}
