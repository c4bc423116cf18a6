package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/internal/util/actorutil"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	EMPORIA_ACTOR_ID = "emporia"
)

// EmporiaActor owns the authenticated cloud session. All cloud calls go
// through it, so token refreshes stay serial. Requests are served one
// at a time with a per-request timeout; others are stashed meanwhile.
type EmporiaActor struct {
	behavior     actor.Behavior
	stash        *actorutil.Stash
	client       emporia.CloudClient
	fetchTimeout time.Duration
	logger       *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewEmporiaActor(client emporia.CloudClient, fetchTimeout time.Duration, logger *zap.Logger) *EmporiaActor {
	act := &EmporiaActor{
		client:       client,
		fetchTimeout: fetchTimeout,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger("emporia", logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *EmporiaActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *EmporiaActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("emporia@starting started")
		err := state.login()
		if err != nil {
			if emporia.IsAuthError(err) {
				// bad credentials cannot heal on restart. Stay up and
				// let requests fail with the auth error so the poller
				// can halt.
				state.logger.Error("emporia@starting login failed with auth error", zap.Error(err))
			} else {
				panic(err)
			}
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("emporia@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *EmporiaActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("emporia@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      EMPORIA_ACTOR_ID,
			Healthy: true,
			State:   "idle",
		})
	case domain.ListDevicesRequest:
		state.logger.Debug("emporia@default: ListDevicesRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.listDevices),
			mapTaskResult[domain.ListDevicesResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.ListDevicesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(state.fetchTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.GetVehicleStatusRequest:
		state.logger.Debug("emporia@default: GetVehicleStatusRequest", zap.Int64("vehicleGid", msg.VehicleGID))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		vehicleGID := msg.VehicleGID

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.GetVehicleStatusResponse, error) {
			return state.getVehicleStatus(vehicleGID)
		}),
			mapTaskResult[domain.GetVehicleStatusResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetVehicleStatusResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					VehicleGID: vehicleGID,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.fetchTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	case domain.GetChargerStatusRequest:
		state.logger.Debug("emporia@default: GetChargerStatusRequest", zap.Int64("deviceGid", msg.DeviceGID))
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		deviceGID := msg.DeviceGID

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, func() (*domain.GetChargerStatusResponse, error) {
			return state.getChargerStatus(deviceGID)
		}),
			mapTaskResult[domain.GetChargerStatusResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetChargerStatusResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					DeviceGID: deviceGID,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.fetchTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingCloud)
	default:
		state.logger.Debug("emporia@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *EmporiaActor) WaitingCloud(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("emporia@WaitingCloud backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("emporia@WaitingCloud stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *EmporiaActor) login() error {
	ctx, cancel := a.callContext()
	defer cancel()
	return a.client.Login(ctx)
}

func (a *EmporiaActor) listDevices() (*domain.ListDevicesResponse, error) {
	ctx, cancel := a.callContext()
	defer cancel()

	vehicles, err := a.client.GetVehicles(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	chargers, err := a.client.GetChargerDevices(ctx)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.ListDevicesResponse{
		Vehicles: vehicles,
		Chargers: chargers,
	}, nil
}

func (a *EmporiaActor) getVehicleStatus(vehicleGID int64) (*domain.GetVehicleStatusResponse, error) {
	ctx, cancel := a.callContext()
	defer cancel()

	status, err := a.client.GetVehicleStatus(ctx, vehicleGID)
	if err != nil {
		logger.Error(err)
		return nil, err
	}
	return &domain.GetVehicleStatusResponse{
		VehicleGID: vehicleGID,
		Status:     status,
	}, nil
}

// getChargerStatus fetches charger state plus the instantaneous usage
// sample. A missing sample is not an error; auth and rate-limit
// failures on the usage call still propagate because they affect the
// whole cycle.
func (a *EmporiaActor) getChargerStatus(deviceGID int64) (*domain.GetChargerStatusResponse, error) {
	ctx, cancel := a.callContext()
	defer cancel()

	status, err := a.client.GetChargerStatus(ctx, deviceGID)
	if err != nil {
		logger.Error(err)
		return nil, err
	}

	usage, err := a.client.GetUsageKW(ctx, deviceGID, time.Now())
	if err != nil {
		if emporia.IsAuthError(err) || emporia.IsRateLimited(err) {
			logger.Error(err)
			return nil, err
		}
		a.logger.Debug("emporia: usage sample unavailable", zap.Int64("deviceGid", deviceGID), zap.Error(err))
		usage = nil
	}

	return &domain.GetChargerStatusResponse{
		DeviceGID: deviceGID,
		Charger:   status,
		Usage:     usage,
	}, nil
}

func (a *EmporiaActor) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.fetchTimeout)
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
