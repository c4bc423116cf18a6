package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/config"
	"github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/internal/core/events"
	"github.com/berfenger/vehiclevue2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	HADISCOVERY_ACTOR_ID = "hadiscovery"
)

// HADiscoveryActor runs once at startup: it waits for the emporia and
// mqtt actors to be healthy, fetches the device listing and publishes
// the Home Assistant discovery configs for every tracked entity.
type HADiscoveryActor struct {
	config              *config.Config
	behavior            actor.Behavior
	stash               *actorutil.Stash
	emporiaActor        *actor.PID
	mqttActor           *actor.PID
	emporiaActorHealthy bool
	mqttActorHealthy    bool
	healthyRecv         int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, emporiaActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:       config,
		emporiaActor: emporiaActor,
		mqttActor:    mqttActor,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Emporia and MQTT actor healthy
		state.healthyRecv = 0
		state.emporiaActorHealthy = false
		state.mqttActorHealthy = false
		// Emporia Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.emporiaActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_EMPORIA,
				Healthy: false,
			}
		})
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_EMPORIA:
				state.emporiaActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {

			if state.emporiaActorHealthy && state.mqttActorHealthy {
				// Ask Emporia for the device listing
				actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.emporiaActor, domain.ListDevicesRequest{},
					time.Duration(state.config.PollConfig.FetchTimeoutSeconds)*time.Second+2*time.Second), func(err error) any {
					return domain.ListDevicesResponse{
						ActorResponseMixIn: domain.ActorResponseMixIn{
							ResponseError: err,
						},
					}
				})
				state.behavior.Become(state.WaitingListingReceive)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Emporia Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

func (state *HADiscoveryActor) WaitingListingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ListDevicesResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@listing: ListDevicesResponse",
			zap.Int("vehicles", len(msg.Vehicles)), zap.Int("chargers", len(msg.Chargers)))

		var sensors []domain.GenericSensor

		bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
		sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)

		for _, vehicle := range msg.Vehicles {
			vehicleDevice := events.VehicleDevice(vehicle, bridgeDevice)
			vehicleSensors := events.VehicleSensors(vehicleDevice, vehicle.VehicleGID)
			for i := range vehicleSensors {
				if i > 0 {
					vehicleSensors[i].Device = events.IdDevice(vehicleDevice)
				}
				sensors = append(sensors, vehicleSensors[i])
			}
		}

		for _, charger := range msg.Chargers {
			chargerDevice := events.ChargerDevice(charger, bridgeDevice)
			chargerSensors := events.ChargerSensors(chargerDevice, charger.DeviceGID)
			for i := range chargerSensors {
				if i > 0 {
					chargerSensors[i].Device = events.IdDevice(chargerDevice)
				}
				sensors = append(sensors, chargerSensors[i])
			}
		}

		ctx.Send(state.mqttActor, domain.PublishDiscoveryRequest{
			Sensors: sensors,
		})
		state.behavior.Become(state.Done)

	default:
		state.logger.Debug("hadiscovery@listing: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
