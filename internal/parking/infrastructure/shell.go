package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mateusmacedo/parkit/internal/parking/application"
	"github.com/mateusmacedo/parkit/internal/parking/domain"
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
)

const (
	menuEntry = 1
	menuExit  = 2
	menuQuit  = 3
)

// Shell is the text menu in front of the parking service. It is also the service's
// Prompter, so input is asked for in the order the service needs it.
type Shell struct {
	service *application.ParkingService
	in      *bufio.Scanner
	out     io.Writer
	logger  pkgApp.AppLogger
}

func NewShell(service *application.ParkingService, in io.Reader, out io.Writer, logger pkgApp.AppLogger) *Shell {
	return &Shell{
		service: service,
		in:      bufio.NewScanner(in),
		out:     out,
		logger:  logger,
	}
}

// Run loops over the main menu until the user quits, input ends or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	s.println("Welcome to Parking System!")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.printMenu()
		selection, err := s.readInt()
		if errors.Is(err, io.EOF) {
			pkgApp.LogDebug(ctx, s.logger, "shell input closed", nil)
			return nil
		}
		if err != nil {
			s.println("Incorrect input provided. Please enter a number.")
			continue
		}

		switch selection {
		case menuEntry:
			s.enter(ctx)
		case menuExit:
			s.exit(ctx)
		case menuQuit:
			s.println("Exiting from the system!")
			return nil
		default:
			s.println("Unsupported option. Please enter a number corresponding to the provided menu")
		}
	}
}

func (s *Shell) VehicleCategory(context.Context) (domain.Category, error) {
	s.println("Please select vehicle type from menu")
	s.println("1 CAR")
	s.println("2 BIKE")

	selection, err := s.readInt()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("%w: %v", domain.ErrUnknownCategory, err)
	}
	return domain.CategoryFromSelection(selection)
}

func (s *Shell) VehicleID(context.Context) (string, error) {
	s.println("Please type the vehicle registration number and press enter key")
	line, err := s.readLine()
	if errors.Is(err, io.EOF) {
		return "", io.ErrUnexpectedEOF
	}
	return line, err
}

func (s *Shell) enter(ctx context.Context) {
	result, err := s.service.ProcessIncomingVehicle(ctx, s)
	if err != nil {
		s.printFailure(err)
		return
	}

	if result.LoyaltyEligible {
		s.println("Happy to see you again! As a regular user of our parking lot, you will get a 5% discount")
	}
	s.printf("Please park your vehicle in spot number:%d\n", result.Spot.ID)
	s.printf("Recorded in-time for vehicle number:%s is:%s\n",
		result.Ticket.VehicleID, result.Ticket.EntryTime.Format(time.RFC1123))
}

func (s *Shell) exit(ctx context.Context) {
	result, err := s.service.ProcessExitingVehicle(ctx, s)
	if err != nil {
		s.printFailure(err)
		return
	}

	s.printf("Please pay the parking fare:%s\n", result.Ticket.Price.StringFixed(2))
	s.printf("Recorded out-time for vehicle number:%s is:%s\n",
		result.Ticket.VehicleID, result.Ticket.ExitTime.Format(time.RFC1123))
}

func (s *Shell) printFailure(err error) {
	switch {
	case errors.Is(err, domain.ErrProcessing):
		s.println("A technical error occurred. Please try again.")
	case errors.Is(err, domain.ErrNoSpotAvailable):
		s.println("No parking spot available for this vehicle type")
	case errors.Is(err, domain.ErrVehicleAlreadyParked):
		s.println("A vehicle with this registration number is already parked!")
	case errors.Is(err, domain.ErrNoActiveTicket):
		s.println("No active ticket found for this vehicle")
	case errors.Is(err, domain.ErrUnknownCategory):
		s.println("Incorrect input provided")
	case errors.Is(err, domain.ErrValidation):
		s.printf("Invalid input: %v\n", err)
	default:
		s.println("A technical error occurred. Please try again.")
	}
}

func (s *Shell) printMenu() {
	s.println("Please select an option. Simply enter the number to choose an action")
	s.println("1 New Vehicle Entering - Allocate Parking Space")
	s.println("2 Vehicle Exiting - Generate Ticket Price")
	s.println("3 Shutdown System")
}

func (s *Shell) readLine() (string, error) {
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

func (s *Shell) readInt() (int, error) {
	line, err := s.readLine()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(line)
}

func (s *Shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}
