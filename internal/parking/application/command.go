package application

import (
	pkgApp "github.com/mateusmacedo/parkit/pkg/application"
	pkgDomain "github.com/mateusmacedo/parkit/pkg/domain"
)

const (
	ParkVehicleCommand = "ParkVehicle"
	ExitVehicleCommand = "ExitVehicle"
)

// ParkingCommandData carries the input of both parking commands. Category is ignored on exit.
type ParkingCommandData struct {
	Category  string `json:"category,omitempty"`
	VehicleID string `json:"vehicle_id"`
}

type (
	CommandBus     = pkgApp.CommandBus[pkgDomain.Command[ParkingCommandData], ParkingCommandData]
	CommandHandler = pkgApp.CommandHandler[pkgDomain.Command[ParkingCommandData], ParkingCommandData]
)

type parkingCommand struct {
	name string
	data ParkingCommandData
}

func (c parkingCommand) CommandName() string {
	return c.name
}

func (c parkingCommand) Payload() ParkingCommandData {
	return c.data
}

func NewParkVehicleCommand(category, vehicleID string) pkgDomain.Command[ParkingCommandData] {
	return parkingCommand{name: ParkVehicleCommand, data: ParkingCommandData{Category: category, VehicleID: vehicleID}}
}

func NewExitVehicleCommand(vehicleID string) pkgDomain.Command[ParkingCommandData] {
	return parkingCommand{name: ExitVehicleCommand, data: ParkingCommandData{VehicleID: vehicleID}}
}
