package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	// per-device sensor suffixes, the full id is built by
	// VehicleSensorId / ChargerSensorId
	SENSOR_VEHICLE_BATTERY         = "battery"
	SENSOR_VEHICLE_CHARGING_STATE  = "charging_state"
	SENSOR_VEHICLE_RANGE           = "range"
	SENSOR_CHARGER_STATUS          = "status"
	SENSOR_CHARGER_ON              = "charger_on"
	SENSOR_CHARGER_POWER           = "power"
	SENSOR_CHARGER_POWER_ESTIMATED = "power_estimated"
	SENSOR_CHARGER_CHARGING_RATE   = "charging_rate"
	SENSOR_CHARGER_MAX_RATE        = "max_charging_rate"
	SENSOR_DEVICE_REACHABLE        = "reachable"
	SENSOR_DEVICE_LAST_ERROR       = "last_error"

	UNKNOWN_VALUE = "unknown"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_BATTERY      = "battery"
	DEVICE_CLASS_CURRENT      = "current"
	DEVICE_CLASS_POWER        = "power"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"
	SENSOR_TYPE_SENSOR        = "sensor"
	SENSOR_TYPE_BINARY        = "binary_sensor"
)

func VehicleSensorId(vehicleGID int64, suffix string) string {
	return fmt.Sprintf("vehicle_%d_%s", vehicleGID, suffix)
}

func ChargerSensorId(deviceGID int64, suffix string) string {
	return fmt.Sprintf("charger_%d_%s", deviceGID, suffix)
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("vvue_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "VehicleVue",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("VehicleVue %s", md5HashShort(baseTopic)),
	}
}

func VehicleDevice(vehicle emporia.Vehicle, bridgeDevice Device) Device {
	name := vehicle.DisplayName
	if name == "" {
		name = fmt.Sprintf("Vehicle %d", vehicle.VehicleGID)
	}
	return Device{
		Id:           fmt.Sprintf("vvue_vehicle_%d", vehicle.VehicleGID),
		Manufacturer: vehicle.Make,
		Model:        vehicle.Model,
		Name:         name,
		ViaDevice:    bridgeDevice.Id,
	}
}

func ChargerDevice(device emporia.Device, bridgeDevice Device) Device {
	name := device.DisplayName
	if name == "" {
		name = fmt.Sprintf("Charger %d", device.DeviceGID)
	}
	return Device{
		Id:           fmt.Sprintf("vvue_charger_%d", device.DeviceGID),
		Manufacturer: "Emporia",
		Model:        device.Model,
		Version:      device.Firmware,
		Name:         name,
		ViaDevice:    bridgeDevice.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func VehicleSensors(vehicleDevice Device, vehicleGID int64) []GenericSensor {

	var sensors []GenericSensor

	// Battery level
	sensors = append(sensors, GenericSensor{
		Device:            vehicleDevice,
		Id:                VehicleSensorId(vehicleGID, SENSOR_VEHICLE_BATTERY),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(vehicleDevice.Id, SENSOR_VEHICLE_BATTERY),
	})

	// Charging state
	sensors = append(sensors, GenericSensor{
		Device:     vehicleDevice,
		Id:         VehicleSensorId(vehicleGID, SENSOR_VEHICLE_CHARGING_STATE),
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charging state",
		Icon:       "mdi:ev-station",
		UniqueId:   uniqueId(vehicleDevice.Id, SENSOR_VEHICLE_CHARGING_STATE),
	})

	// Battery range
	sensors = append(sensors, GenericSensor{
		Device:            vehicleDevice,
		Id:                VehicleSensorId(vehicleGID, SENSOR_VEHICLE_RANGE),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Range",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "km",
		Icon:              "mdi:map-marker-distance",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(vehicleDevice.Id, SENSOR_VEHICLE_RANGE),
	})

	sensors = append(sensors, deviceDiagnosticSensors(vehicleDevice, VehicleSensorId(vehicleGID, ""))...)

	return sensors
}

func ChargerSensors(chargerDevice Device, deviceGID int64) []GenericSensor {

	var sensors []GenericSensor

	// Charger status
	sensors = append(sensors, GenericSensor{
		Device:     chargerDevice,
		Id:         ChargerSensorId(deviceGID, SENSOR_CHARGER_STATUS),
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Status",
		Icon:       "mdi:ev-station",
		UniqueId:   uniqueId(chargerDevice.Id, SENSOR_CHARGER_STATUS),
	})

	// Charger on
	sensors = append(sensors, GenericSensor{
		Device:     chargerDevice,
		Id:         ChargerSensorId(deviceGID, SENSOR_CHARGER_ON),
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Charger on",
		Icon:       "mdi:power-plug",
		UniqueId:   uniqueId(chargerDevice.Id, SENSOR_CHARGER_ON),
	})

	// Charging power (live or estimated)
	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                ChargerSensorId(deviceGID, SENSOR_CHARGER_POWER),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charging power",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_POWER,
		UnitOfMeasurement: "kW",
		Icon:              "mdi:flash",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_CHARGER_POWER),
	})

	// Power is estimated
	sensors = append(sensors, GenericSensor{
		Device:         chargerDevice,
		Id:             ChargerSensorId(deviceGID, SENSOR_CHARGER_POWER_ESTIMATED),
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Power is estimated",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(chargerDevice.Id, SENSOR_CHARGER_POWER_ESTIMATED),
	})

	// Charging rate
	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                ChargerSensorId(deviceGID, SENSOR_CHARGER_CHARGING_RATE),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charging rate",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		EnabledByDefault:  optionalBool(false),
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_CHARGER_CHARGING_RATE),
	})

	// Max charging rate
	sensors = append(sensors, GenericSensor{
		Device:            chargerDevice,
		Id:                ChargerSensorId(deviceGID, SENSOR_CHARGER_MAX_RATE),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Max charging rate",
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		EntityCategory:    ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_CHARGER_MAX_RATE),
	})

	sensors = append(sensors, deviceDiagnosticSensors(chargerDevice, ChargerSensorId(deviceGID, ""))...)

	return sensors
}

// deviceDiagnosticSensors builds the reachable/last_error pair every
// tracked device gets. idPrefix already ends with the separator.
func deviceDiagnosticSensors(device Device, idPrefix string) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             idPrefix + SENSOR_DEVICE_REACHABLE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Reachable",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_DEVICE_REACHABLE),
	})

	sensors = append(sensors, GenericSensor{
		Device:           device,
		Id:               idPrefix + SENSOR_DEVICE_LAST_ERROR,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "Last error",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(device.Id, SENSOR_DEVICE_LAST_ERROR),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connection state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
