package events

import (
	. "github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
)

// VehicleSnapshotToUpdateEvents converts a normalized vehicle snapshot
// into sensor update events. Unknown values are published as the
// explicit unknown sentinel, never as zero.
func VehicleSnapshotToUpdateEvents(snapshot VehicleSnapshot) []any {
	var events []any

	// Battery level
	if snapshot.BatteryPercent != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: VehicleSensorId(snapshot.VehicleGID, SENSOR_VEHICLE_BATTERY),
			},
			Value:    *snapshot.BatteryPercent,
			Decimals: 1,
		})
	} else {
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: VehicleSensorId(snapshot.VehicleGID, SENSOR_VEHICLE_BATTERY),
			},
			Value: UNKNOWN_VALUE,
		})
	}

	// Charging state
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: VehicleSensorId(snapshot.VehicleGID, SENSOR_VEHICLE_CHARGING_STATE),
		},
		Value: string(snapshot.ChargingState),
	})

	// Battery range
	if snapshot.RangeKM != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: VehicleSensorId(snapshot.VehicleGID, SENSOR_VEHICLE_RANGE),
			},
			Value:    *snapshot.RangeKM,
			Decimals: 0,
		})
	}

	return events
}

// ChargerSnapshotToUpdateEvents converts a normalized charger snapshot
// into sensor update events.
func ChargerSnapshotToUpdateEvents(snapshot ChargerSnapshot) []any {
	var events []any

	// Charger status
	status := snapshot.Status
	if status == "" {
		status = UNKNOWN_VALUE
	}
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_STATUS),
		},
		Value: status,
	})

	// Charger on
	if snapshot.On != nil {
		events = append(events, BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_ON),
			},
			Value: *snapshot.On,
		})
	}

	// Charging power
	if snapshot.PowerKW != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_POWER),
			},
			Value:    *snapshot.PowerKW,
			Decimals: 3,
		})
	} else {
		events = append(events, TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_POWER),
			},
			Value: UNKNOWN_VALUE,
		})
	}

	// Power is estimated
	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_POWER_ESTIMATED),
		},
		Value: snapshot.PowerIsEstimated,
	})

	// Charging rate
	if snapshot.ChargingRateAmps != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_CHARGING_RATE),
			},
			Value:    *snapshot.ChargingRateAmps,
			Decimals: 1,
		})
	}

	// Max charging rate
	if snapshot.MaxChargingRateAmps != nil {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: ChargerSensorId(snapshot.DeviceGID, SENSOR_CHARGER_MAX_RATE),
			},
			Value:    *snapshot.MaxChargingRateAmps,
			Decimals: 0,
		})
	}

	return events
}

// DeviceReachableUpdateEvent reports whether the last fetch for a
// device succeeded. idPrefix is VehicleSensorId/ChargerSensorId with an
// empty suffix.
func DeviceReachableUpdateEvent(idPrefix string, reachable bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: idPrefix + SENSOR_DEVICE_REACHABLE,
		},
		Value: reachable,
	}
}

func DeviceLastErrorUpdateEvent(idPrefix string, message string) any {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: idPrefix + SENSOR_DEVICE_LAST_ERROR,
		},
		Value: message,
	}
}

func BridgeUpdateEvent(online bool) any {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}
