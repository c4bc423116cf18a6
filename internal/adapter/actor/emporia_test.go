package actor

import (
	"testing"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/internal/util/actorutil"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testCloudClient() *emporia.TestCloudClient {
	battery := 64.5
	rate := 24.0
	maxRate := 32.0
	on := true
	now := time.Now()
	return &emporia.TestCloudClient{
		Vehicles: []emporia.Vehicle{
			{VehicleGID: 42, DisplayName: "Kodiaq", Make: "Skoda", Model: "Kodiaq iV", Year: 2024},
		},
		Chargers: []emporia.Device{
			{DeviceGID: 7, Model: "EVC01", DisplayName: "Garage charger",
				EVCharger: &emporia.ChargerSettings{DeviceGID: 7, MaxChargingRateAmps: &maxRate}},
		},
		VehicleStatuses: map[int64]*emporia.VehicleStatus{
			42: {VehicleGID: 42, BatteryLevel: &battery, ChargingState: "charging", UpdatedAt: &now},
		},
		ChargerStatuses: map[int64]*emporia.ChargerStatus{
			7: {DeviceGID: 7, On: &on, Status: "Charging", ChargingRateAmps: &rate,
				UpdatedAt: &now},
		},
		Usages: map[int64]*emporia.UsageSample{
			7: {DeviceGID: 7, KW: 5.71, Timestamp: now},
		},
	}
}

func TestListDevicesEmporiaActor(t *testing.T) {

	assert := assert.New(t)

	client := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewEmporiaActor(client, 5*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.ListDevicesRequest{}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.ListDevicesResponse)

	assert.False(resp.HasResponseError())
	assert.Len(resp.Vehicles, 1)
	assert.Len(resp.Chargers, 1)
	assert.Equal(int64(42), resp.Vehicles[0].VehicleGID, "vehicle gid")
	assert.Equal("Garage charger", resp.Chargers[0].DisplayName, "charger name")
	assert.Contains(client.Calls(), "login")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetVehicleStatusEmporiaActor(t *testing.T) {

	assert := assert.New(t)

	client := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewEmporiaActor(client, 5*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetVehicleStatusRequest{VehicleGID: 42}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetVehicleStatusResponse)

	assert.False(resp.HasResponseError())
	assert.Equal(int64(42), resp.VehicleGID, "vehicle gid echoed")
	assert.NotNil(resp.Status)
	assert.Equal(64.5, *resp.Status.BatteryLevel, "battery level")
	assert.Equal("charging", resp.Status.ChargingState, "charging state")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetChargerStatusEmporiaActor(t *testing.T) {

	assert := assert.New(t)

	client := testCloudClient()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewEmporiaActor(client, 5*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetChargerStatusRequest{DeviceGID: 7}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetChargerStatusResponse)

	assert.False(resp.HasResponseError())
	assert.Equal(int64(7), resp.DeviceGID, "device gid echoed")
	assert.NotNil(resp.Charger)
	assert.Equal("Charging", resp.Charger.Status, "charger status")
	assert.NotNil(resp.Usage)
	assert.Equal(5.71, resp.Usage.KW, "usage sample")

	context.Stop(pid)

	as.Shutdown()
}

// A missing usage sample is not an error: the response carries a nil
// sample and the charger state is still returned.
func TestGetChargerStatusNoUsageEmporiaActor(t *testing.T) {

	assert := assert.New(t)

	client := testCloudClient()
	client.Usages = nil

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewEmporiaActor(client, 5*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetChargerStatusRequest{DeviceGID: 7}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetChargerStatusResponse)

	assert.False(resp.HasResponseError())
	assert.NotNil(resp.Charger)
	assert.Nil(resp.Usage)

	context.Stop(pid)

	as.Shutdown()
}

func TestFetchErrorPropagationEmporiaActor(t *testing.T) {

	assert := assert.New(t)

	client := testCloudClient()
	client.FetchHook = func(op string, gid int64) error {
		if op == "vehicle_status" {
			return &emporia.RateLimitedError{}
		}
		return nil
	}

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewEmporiaActor(client, 5*time.Second, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.GetVehicleStatusRequest{VehicleGID: 42}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetVehicleStatusResponse)

	assert.True(resp.HasResponseError())
	assert.True(emporia.IsRateLimited(resp.GetResponseError()), "rate limit error kept")
	assert.Equal(int64(42), resp.VehicleGID, "vehicle gid echoed on error")

	context.Stop(pid)

	as.Shutdown()
}
