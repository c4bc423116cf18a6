package domain

import "time"

// ChargingState is the normalized vehicle charging state. Unknown is an
// explicit value, never a zero battery or a false "not charging".
type ChargingState string

const (
	ChargingStateCharging    ChargingState = "charging"
	ChargingStateNotCharging ChargingState = "not_charging"
	ChargingStateUnknown     ChargingState = "unknown"
)

// VehicleSnapshot is the normalized per-cycle state of one vehicle.
// Nil pointer fields mean "unknown": the upstream payload omitted the
// value or it was malformed.
type VehicleSnapshot struct {
	VehicleGID     int64
	Name           string
	BatteryPercent *float64
	ChargingState  ChargingState
	RangeKM        *float64
	LastUpdate     time.Time
}

// ChargerSnapshot is the normalized per-cycle state of one charger.
// PowerKW carries the live usage sample when one was available within
// tolerance, else the amperage-derived estimate; PowerIsEstimated tells
// them apart. Both nil PowerKW and false PowerIsEstimated means power
// is unknown this cycle.
type ChargerSnapshot struct {
	DeviceGID           int64
	Name                string
	On                  *bool
	Status              string
	Message             string
	FaultText           string
	ChargingRateAmps    *float64
	MaxChargingRateAmps *float64
	PowerKW             *float64
	PowerIsEstimated    bool
	LastUpdate          time.Time
}
