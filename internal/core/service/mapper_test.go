package service

import (
	"testing"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }

func b(v bool) *bool { return &v }

var testOpts = MapperOptions{
	AssumedVoltage: 240,
	UsageTolerance: 5 * time.Minute,
}

var testVehicle = emporia.Vehicle{
	VehicleGID:  42,
	DisplayName: "My EV",
	Make:        "Tesla",
	Model:       "Model 3",
}

var testChargerDevice = emporia.Device{
	DeviceGID:   7,
	DisplayName: "Garage charger",
	Model:       "EVC01",
	EVCharger: &emporia.ChargerSettings{
		DeviceGID:           7,
		MaxChargingRateAmps: f64(40),
	},
}

func TestMapVehicleBasic(t *testing.T) {
	now := time.Now()
	snap, anomalies := MapVehicle(testVehicle, &emporia.VehicleStatus{
		VehicleGID:    42,
		BatteryLevel:  f64(81),
		ChargingState: "CHARGING",
	}, now)

	assert.Empty(t, anomalies)
	assert.Equal(t, int64(42), snap.VehicleGID)
	assert.Equal(t, "My EV", snap.Name)
	assert.Equal(t, 81.0, *snap.BatteryPercent)
	assert.Equal(t, domain.ChargingStateCharging, snap.ChargingState)
	assert.Equal(t, now, snap.LastUpdate)
}

func TestMapVehicleMissingBatteryIsUnknownNotZero(t *testing.T) {
	snap, anomalies := MapVehicle(testVehicle, &emporia.VehicleStatus{
		VehicleGID:    42,
		ChargingState: "stopped",
	}, time.Now())

	assert.Empty(t, anomalies)
	assert.Nil(t, snap.BatteryPercent)
	assert.Equal(t, domain.ChargingStateNotCharging, snap.ChargingState)
}

func TestMapVehicleBatteryOutOfRange(t *testing.T) {
	for _, level := range []float64{-1, 101, 250} {
		snap, anomalies := MapVehicle(testVehicle, &emporia.VehicleStatus{
			BatteryLevel: f64(level),
		}, time.Now())

		assert.Nil(t, snap.BatteryPercent)
		assert.Len(t, anomalies, 1)
		assert.Equal(t, "batteryLevel", anomalies[0].Field)
	}
}

func TestMapVehicleExplicitFlagWinsOverPowerHeuristic(t *testing.T) {
	// explicit not-charging beats positive charging power
	snap, _ := MapVehicle(testVehicle, &emporia.VehicleStatus{
		ChargingState:  "disconnected",
		ChargingRateKW: f64(3.2),
	}, time.Now())
	assert.Equal(t, domain.ChargingStateNotCharging, snap.ChargingState)

	// explicit charging beats zero power
	snap, _ = MapVehicle(testVehicle, &emporia.VehicleStatus{
		ChargingState:  "charging",
		ChargingRateKW: f64(0),
	}, time.Now())
	assert.Equal(t, domain.ChargingStateCharging, snap.ChargingState)
}

func TestMapVehiclePowerHeuristicWithoutFlag(t *testing.T) {
	snap, _ := MapVehicle(testVehicle, &emporia.VehicleStatus{
		ChargingRateKW: f64(7.2),
	}, time.Now())
	assert.Equal(t, domain.ChargingStateCharging, snap.ChargingState)

	snap, _ = MapVehicle(testVehicle, &emporia.VehicleStatus{
		ChargingRateKW: f64(0),
	}, time.Now())
	assert.Equal(t, domain.ChargingStateNotCharging, snap.ChargingState)

	snap, _ = MapVehicle(testVehicle, &emporia.VehicleStatus{}, time.Now())
	assert.Equal(t, domain.ChargingStateUnknown, snap.ChargingState)
}

func TestMapVehicleUnrecognizedFlagIsAnomaly(t *testing.T) {
	snap, anomalies := MapVehicle(testVehicle, &emporia.VehicleStatus{
		ChargingState:  "warp_speed",
		ChargingRateKW: f64(1.5),
	}, time.Now())

	assert.Len(t, anomalies, 1)
	assert.Equal(t, "chargingState", anomalies[0].Field)
	// heuristic still applies
	assert.Equal(t, domain.ChargingStateCharging, snap.ChargingState)
}

func TestMapChargerLivePowerPreferred(t *testing.T) {
	now := time.Now()
	statusTime := now.Add(-10 * time.Second)
	snap, anomalies := MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID:        7,
		On:               b(true),
		Status:           "Charging",
		ChargingRateAmps: f64(24),
		UpdatedAt:        &statusTime,
	}, &emporia.UsageSample{
		DeviceGID: 7,
		KW:        5.52,
		Timestamp: now.Add(-15 * time.Second),
	}, testOpts, now)

	assert.Empty(t, anomalies)
	assert.Equal(t, 5.52, *snap.PowerKW)
	assert.False(t, snap.PowerIsEstimated)
	assert.True(t, *snap.On)
	assert.Equal(t, 40.0, *snap.MaxChargingRateAmps)
}

func TestMapChargerEstimateWhenNoUsageSample(t *testing.T) {
	now := time.Now()
	snap, _ := MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID:        7,
		On:               b(true),
		ChargingRateAmps: f64(24),
	}, nil, testOpts, now)

	assert.Equal(t, 5.76, *snap.PowerKW)
	assert.True(t, snap.PowerIsEstimated)
}

func TestMapChargerStaleUsageSampleFallsBackToEstimate(t *testing.T) {
	now := time.Now()
	statusTime := now
	snap, _ := MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID:        7,
		ChargingRateAmps: f64(16),
		UpdatedAt:        &statusTime,
	}, &emporia.UsageSample{
		DeviceGID: 7,
		KW:        3.1,
		Timestamp: now.Add(-20 * time.Minute),
	}, testOpts, now)

	assert.Equal(t, 3.84, *snap.PowerKW)
	assert.True(t, snap.PowerIsEstimated)
}

func TestMapChargerPowerUnknownWithoutSampleOrAmps(t *testing.T) {
	snap, _ := MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID: 7,
		On:        b(false),
	}, nil, testOpts, time.Now())

	assert.Nil(t, snap.PowerKW)
	assert.False(t, snap.PowerIsEstimated)
}

func TestMapChargerNegativeAmpsIsAnomaly(t *testing.T) {
	snap, anomalies := MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID:        7,
		ChargingRateAmps: f64(-3),
	}, nil, testOpts, time.Now())

	assert.Len(t, anomalies, 1)
	assert.Equal(t, "chargingRate", anomalies[0].Field)
	assert.Nil(t, snap.ChargingRateAmps)
	assert.Nil(t, snap.PowerKW)
}

func TestMapChargerMaxRateFallsBackToDeviceSettings(t *testing.T) {
	snap, _ := MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID: 7,
	}, nil, testOpts, time.Now())
	assert.Equal(t, 40.0, *snap.MaxChargingRateAmps)

	snap, _ = MapCharger(testChargerDevice, &emporia.ChargerStatus{
		DeviceGID:           7,
		MaxChargingRateAmps: f64(32),
	}, nil, testOpts, time.Now())
	assert.Equal(t, 32.0, *snap.MaxChargingRateAmps)
}
