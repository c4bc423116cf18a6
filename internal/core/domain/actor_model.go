package domain

import "github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_EMPORIA      = "emporia"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type ListDevicesRequest struct {
	ActorRequestMixIn
}

type ListDevicesResponse struct {
	ActorResponseMixIn
	Vehicles []emporia.Vehicle
	Chargers []emporia.Device
}

type GetVehicleStatusRequest struct {
	ActorRequestMixIn
	VehicleGID int64
}

type GetVehicleStatusResponse struct {
	ActorResponseMixIn
	VehicleGID int64
	Status     *emporia.VehicleStatus
}

type GetChargerStatusRequest struct {
	ActorRequestMixIn
	DeviceGID int64
}

// GetChargerStatusResponse carries the charger state plus the matching
// instantaneous usage sample. Usage is nil when the cloud had no sample;
// the mapper falls back to the amperage estimate in that case.
type GetChargerStatusResponse struct {
	ActorResponseMixIn
	DeviceGID int64
	Charger   *emporia.ChargerStatus
	Usage     *emporia.UsageSample
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
