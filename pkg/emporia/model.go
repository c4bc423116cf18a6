package emporia

import (
	"time"
)

// Vehicle is an EV linked to the Emporia account, as returned by the
// customer vehicles endpoint.
type Vehicle struct {
	VehicleGID  int64  `json:"vehicleGid"`
	DisplayName string `json:"displayName"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
}

// VehicleStatus is the per-vehicle telemetry payload. Optional fields
// are pointers: the cloud omits them when the vehicle is asleep or the
// OEM account link is degraded.
type VehicleStatus struct {
	VehicleGID          int64      `json:"vehicleGid"`
	VehicleState        string     `json:"vehicleState"`
	BatteryLevel        *float64   `json:"batteryLevel"`
	BatteryRange        *float64   `json:"batteryRange"`
	ChargingState       string     `json:"chargingState"`
	ChargingRateKW      *float64   `json:"chargingRateKw"`
	MinutesToFullCharge *int       `json:"minutesToFullCharge"`
	UpdatedAt           *time.Time `json:"updatedAt"`
}

// Device is an entry of the account device tree. Only entries with a
// non-nil EVCharger block are of interest here.
type Device struct {
	DeviceGID            int64            `json:"deviceGid"`
	ManufacturerDeviceID string           `json:"manufacturerDeviceId"`
	Model                string           `json:"model"`
	Firmware             string           `json:"firmware"`
	DeviceName           string           `json:"deviceName"`
	DisplayName          string           `json:"displayName"`
	EVCharger            *ChargerSettings `json:"evCharger"`
}

// ChargerSettings is the static charger block nested in a Device.
type ChargerSettings struct {
	DeviceGID           int64    `json:"deviceGid"`
	LoadGID             int64    `json:"loadGid"`
	MaxChargingRateAmps *float64 `json:"maxChargingRate"`
}

// ChargerStatus is the live charger state payload.
type ChargerStatus struct {
	DeviceGID           int64      `json:"deviceGid"`
	LoadGID             int64      `json:"loadGid"`
	On                  *bool      `json:"chargerOn"`
	Status              string     `json:"status"`
	Message             string     `json:"message"`
	IconLabel           string     `json:"iconLabel"`
	IconDetailText      string     `json:"iconDetailText"`
	FaultText           string     `json:"faultText"`
	ChargingRateAmps    *float64   `json:"chargingRate"`
	MaxChargingRateAmps *float64   `json:"maxChargingRate"`
	ProControlCode      string     `json:"proControlCode"`
	DebugCode           string     `json:"debugCode"`
	UpdatedAt           *time.Time `json:"updatedAt"`
}

// UsageSample is an instantaneous power reading derived from the
// 1-second usage scale. KW is already converted from the raw kWh
// bucket value.
type UsageSample struct {
	DeviceGID int64
	KW        float64
	Timestamp time.Time
}
