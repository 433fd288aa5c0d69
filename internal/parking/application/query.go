package application

import (
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
)

const FindTicketQuery = "FindTicket"

type FindTicketData struct {
	VehicleID string
}

type (
	QueryBus     = pkgApp.QueryBus[pkgDomain.Query[FindTicketData], FindTicketData, domain.Ticket]
	QueryHandler = pkgApp.QueryHandler[pkgDomain.Query[FindTicketData], FindTicketData, domain.Ticket]
)

type findTicketQuery struct {
	data FindTicketData
}

func (q findTicketQuery) QueryName() string {
	return FindTicketQuery
}

func (q findTicketQuery) Payload() FindTicketData {
	return q.data
}

func NewFindTicketQuery(vehicleID string) pkgDomain.Query[FindTicketData] {
	return findTicketQuery{data: FindTicketData{VehicleID: vehicleID}}
}
