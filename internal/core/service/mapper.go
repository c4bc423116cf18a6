package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"
)

// MapperOptions tunes the raw payload -> snapshot translation.
type MapperOptions struct {
	// AssumedVoltage feeds the power estimate fallback.
	AssumedVoltage float64
	// UsageTolerance is the max age difference between the usage sample
	// and the charger status for the sample to be trusted as live power.
	UsageTolerance time.Duration
}

// MappingAnomaly records a malformed or unexpected upstream field. The
// affected field maps to unknown and the anomaly is logged by the
// caller; it never fails the whole snapshot.
type MappingAnomaly struct {
	Field  string
	Detail string
}

func (a MappingAnomaly) String() string {
	return fmt.Sprintf("%s: %s", a.Field, a.Detail)
}

// MapVehicle translates a raw vehicle status into a normalized
// snapshot. Missing or malformed optional fields become unknown, never
// zero. An explicit charging flag always wins over the power>0
// heuristic.
func MapVehicle(vehicle emporia.Vehicle, status *emporia.VehicleStatus, now time.Time) (domain.VehicleSnapshot, []MappingAnomaly) {
	var anomalies []MappingAnomaly

	snapshot := domain.VehicleSnapshot{
		VehicleGID:    vehicle.VehicleGID,
		Name:          vehicleName(vehicle),
		ChargingState: domain.ChargingStateUnknown,
		LastUpdate:    now,
	}
	if status == nil {
		return snapshot, anomalies
	}

	if status.BatteryLevel != nil {
		level := *status.BatteryLevel
		if level < 0 || level > 100 || math.IsNaN(level) {
			anomalies = append(anomalies, MappingAnomaly{
				Field:  "batteryLevel",
				Detail: fmt.Sprintf("out of range: %v", level),
			})
		} else {
			snapshot.BatteryPercent = &level
		}
	}

	if status.BatteryRange != nil && *status.BatteryRange >= 0 {
		rangeKM := *status.BatteryRange
		snapshot.RangeKM = &rangeKM
	}

	state, anomaly := chargingState(status)
	snapshot.ChargingState = state
	if anomaly != nil {
		anomalies = append(anomalies, *anomaly)
	}

	return snapshot, anomalies
}

func chargingState(status *emporia.VehicleStatus) (domain.ChargingState, *MappingAnomaly) {
	switch strings.ToLower(status.ChargingState) {
	case "charging", "starting":
		return domain.ChargingStateCharging, nil
	case "not_charging", "stopped", "complete", "disconnected", "nopower":
		return domain.ChargingStateNotCharging, nil
	case "":
		// no explicit flag, fall back to the charging power heuristic
		return chargingStateFromPower(status), nil
	default:
		return chargingStateFromPower(status), &MappingAnomaly{
			Field:  "chargingState",
			Detail: fmt.Sprintf("unrecognized value %q", status.ChargingState),
		}
	}
}

func chargingStateFromPower(status *emporia.VehicleStatus) domain.ChargingState {
	if status.ChargingRateKW == nil || *status.ChargingRateKW < 0 {
		return domain.ChargingStateUnknown
	}
	if *status.ChargingRateKW > 0 {
		return domain.ChargingStateCharging
	}
	return domain.ChargingStateNotCharging
}

// MapCharger translates raw charger state plus the optional usage
// sample into a normalized snapshot. The live sample is used when its
// timestamp is within tolerance of the charger status; otherwise power
// is estimated from the same cycle's amperage and flagged as such.
func MapCharger(device emporia.Device, status *emporia.ChargerStatus, usage *emporia.UsageSample,
	opts MapperOptions, now time.Time) (domain.ChargerSnapshot, []MappingAnomaly) {

	var anomalies []MappingAnomaly

	snapshot := domain.ChargerSnapshot{
		DeviceGID:  device.DeviceGID,
		Name:       chargerName(device),
		LastUpdate: now,
	}
	if status == nil {
		return snapshot, anomalies
	}

	snapshot.On = status.On
	snapshot.Status = status.Status
	snapshot.Message = status.Message
	snapshot.FaultText = status.FaultText

	if status.ChargingRateAmps != nil {
		amps := *status.ChargingRateAmps
		if amps < 0 || math.IsNaN(amps) {
			anomalies = append(anomalies, MappingAnomaly{
				Field:  "chargingRate",
				Detail: fmt.Sprintf("out of range: %v", amps),
			})
		} else {
			snapshot.ChargingRateAmps = &amps
		}
	}

	if status.MaxChargingRateAmps != nil && *status.MaxChargingRateAmps > 0 {
		maxAmps := *status.MaxChargingRateAmps
		snapshot.MaxChargingRateAmps = &maxAmps
	} else if device.EVCharger != nil && device.EVCharger.MaxChargingRateAmps != nil {
		maxAmps := *device.EVCharger.MaxChargingRateAmps
		snapshot.MaxChargingRateAmps = &maxAmps
	}

	volts := opts.AssumedVoltage
	if volts <= 0 {
		volts = DefaultAssumedVoltage
	}

	switch {
	case usage != nil && usageWithinTolerance(usage.Timestamp, status.UpdatedAt, now, opts.UsageTolerance):
		kw := math.Round(usage.KW*1000) / 1000
		snapshot.PowerKW = &kw
		snapshot.PowerIsEstimated = false
	case snapshot.ChargingRateAmps != nil:
		kw := EstimatePowerKW(*snapshot.ChargingRateAmps, volts)
		snapshot.PowerKW = &kw
		snapshot.PowerIsEstimated = true
	}

	return snapshot, anomalies
}

// usageWithinTolerance compares the usage sample timestamp against the
// charger status timestamp, or against now when the status carries
// none. Zero tolerance accepts everything.
func usageWithinTolerance(sample time.Time, status *time.Time, now time.Time, tolerance time.Duration) bool {
	if tolerance <= 0 {
		return true
	}
	ref := now
	if status != nil && !status.IsZero() {
		ref = *status
	}
	diff := ref.Sub(sample)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func vehicleName(vehicle emporia.Vehicle) string {
	if vehicle.DisplayName != "" {
		return vehicle.DisplayName
	}
	if vehicle.Make != "" || vehicle.Model != "" {
		return strings.TrimSpace(vehicle.Make + " " + vehicle.Model)
	}
	return fmt.Sprintf("Vehicle %d", vehicle.VehicleGID)
}

func chargerName(device emporia.Device) string {
	if device.DisplayName != "" {
		return device.DisplayName
	}
	if device.DeviceName != "" {
		return device.DeviceName
	}
	return fmt.Sprintf("Charger %d", device.DeviceGID)
}
