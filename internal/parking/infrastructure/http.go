package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mateusmacedo/parkit/internal/parking/application"
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

const requestTimeout = 10 * time.Second

type entryRequest struct {
	Category  string `json:"category"`
	VehicleID string `json:"vehicle_id"`
}

type exitRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type spotResponse struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
}

type ticketResponse struct {
	ID        int64        `json:"id"`
	VehicleID string       `json:"vehicle_id"`
	Spot      spotResponse `json:"spot"`
	Price     string       `json:"price"`
	EntryTime time.Time    `json:"entry_time"`
	ExitTime  *time.Time   `json:"exit_time,omitempty"`
	Parked    bool         `json:"parked"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		VehicleID: t.VehicleID,
		Spot:      spotResponse{ID: t.Spot.ID, Category: t.Spot.Category.String()},
		Price:     t.Price.StringFixed(2),
		EntryTime: t.EntryTime,
		ExitTime:  t.ExitTime,
		Parked:    t.IsOpen(),
	}
}

type ParkingHTTPHandler struct {
	commandBus application.CommandBus
	queryBus   application.QueryBus
	logger     pkgApp.AppLogger
}

func NewParkingHTTPHandler(commandBus application.CommandBus, queryBus application.QueryBus, logger pkgApp.AppLogger) *ParkingHTTPHandler {
	return &ParkingHTTPHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
	}
}

func (h *ParkingHTTPHandler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.commandBus.Dispatch(ctx, application.NewParkVehicleCommand(req.Category, req.VehicleID)); err != nil {
		h.handleError(ctx, w, err)
		return
	}
	h.respondWithTicket(ctx, w, req.VehicleID, http.StatusCreated)
}

func (h *ParkingHTTPHandler) HandleExit(w http.ResponseWriter, r *http.Request) {
	var req exitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	if err := h.commandBus.Dispatch(ctx, application.NewExitVehicleCommand(req.VehicleID)); err != nil {
		h.handleError(ctx, w, err)
		return
	}
	h.respondWithTicket(ctx, w, req.VehicleID, http.StatusOK)
}

func (h *ParkingHTTPHandler) HandleFindTicket(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	h.respondWithTicket(ctx, w, chi.URLParam(r, "vehicleID"), http.StatusOK)
}

func (h *ParkingHTTPHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ParkingHTTPHandler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.HandleHealth)
	router.Post("/entries", h.HandleEntry)
	router.Post("/exits", h.HandleExit)
	router.Get("/tickets/{vehicleID}", h.HandleFindTicket)
}

func (h *ParkingHTTPHandler) respondWithTicket(ctx context.Context, w http.ResponseWriter, vehicleID string, status int) {
	ticket, err := h.queryBus.Dispatch(ctx, application.NewFindTicketQuery(vehicleID))
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	writeJSON(w, status, newTicketResponse(ticket))
}

func (h *ParkingHTTPHandler) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		pkgApp.LogError(ctx, h.logger, "request failed", err, nil)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

// statusFor maps error kinds to HTTP statuses. Processing is checked first because it may
// wrap a repository error that also matches a not-found kind.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProcessing), errors.Is(err, domain.ErrPersistence):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrVehicleAlreadyParked):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// requestContext bounds the request and reuses chi's request id as the transaction id.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := r.Context()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		ctx = pkgApp.WithTransactionID(ctx, reqID)
	}
	return context.WithTimeout(ctx, requestTimeout)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
