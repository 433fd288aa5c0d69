package parking

import (
	"io"

	"github.com/go-chi/chi/v5"

	"github.com/mateusmacedo/parkit/internal/parking/application"
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	"github.com/mateusmacedo/parkit/internal/parking/infrastructure"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

type ParkingSlice struct {
	service     *application.ParkingService
	httpHandler *infrastructure.ParkingHTTPHandler
	logger      pkgApp.AppLogger
}

// NewParkingSlice builds the parking service on top of store and registers its command,
// query and event handlers on the given buses. Stores able to run transactions get both
// writes of a transition in one transaction.
func NewParkingSlice(
	commandBus application.CommandBus,
	queryBus application.QueryBus,
	eventBus application.EventBus,
	store infrastructure.Store,
	locker application.Locker,
	logger pkgApp.AppLogger,
	opts ...application.ServiceOption,
) *ParkingSlice {
	serviceOpts := []application.ServiceOption{application.WithEventPublisher(eventBus)}
	if tx, ok := store.(domain.Transactor); ok {
		serviceOpts = append(serviceOpts, application.WithTransactor(tx))
	}
	serviceOpts = append(serviceOpts, opts...)

	service := application.NewParkingService(store, store, locker, logger, serviceOpts...)

	commandBus.RegisterHandler(application.ParkVehicleCommand, application.NewParkVehicleHandler(service, logger))
	commandBus.RegisterHandler(application.ExitVehicleCommand, application.NewExitVehicleHandler(service, logger))
	queryBus.RegisterHandler(application.FindTicketQuery, application.NewFindTicketHandler(store, logger))

	eventHandler := application.NewTicketEventHandler(logger)
	eventBus.RegisterHandler(application.VehicleParkedEvent, eventHandler)
	eventBus.RegisterHandler(application.VehicleExitedEvent, eventHandler)

	return &ParkingSlice{
		service:     service,
		httpHandler: infrastructure.NewParkingHTTPHandler(commandBus, queryBus, logger),
		logger:      logger,
	}
}

func (s *ParkingSlice) Service() *application.ParkingService {
	return s.service
}

func (s *ParkingSlice) RegisterRoutes(router chi.Router) {
	s.httpHandler.RegisterRoutes(router)
}

// NewShell returns the interactive menu bound to this slice's service.
func (s *ParkingSlice) NewShell(in io.Reader, out io.Writer) *infrastructure.Shell {
	return infrastructure.NewShell(s.service, in, out, s.logger)
}
