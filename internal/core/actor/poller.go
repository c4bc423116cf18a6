package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/config"
	"github.com/berfenger/vehiclevue2mqtt/internal/core/domain"
	"github.com/berfenger/vehiclevue2mqtt/internal/core/events"
	"github.com/berfenger/vehiclevue2mqtt/internal/core/service"
	. "github.com/berfenger/vehiclevue2mqtt/internal/util/actorutil"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// PollerActor drives the poll cycle: refresh the device listing,
// fetch every tracked device through the emporia actor with a bounded
// in-flight window, normalize the payloads and publish update events.
//
// Failure handling per cycle:
//   - auth error: polling halts until restart, bridge marked offline
//   - rate limited: remaining fetch queue is dropped, next cycles back
//     off exponentially until one fully clean cycle
//   - transient / not found: only the affected device is touched, its
//     last published state stays as-is (stale beats blank)
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	emporiaActor *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream
	logger       *zap.Logger

	devices       map[string]*trackedDevice
	backoffCycles uint32
	halted        bool

	// per-cycle bookkeeping, reset on every tick
	queue       []string
	inFlight    uint32
	rateLimited bool
	cycleFailed bool
}

type pollTick struct {
}

type deviceKind int

const (
	kindVehicle deviceKind = iota
	kindCharger
)

type trackedDevice struct {
	kind    deviceKind
	vehicle emporia.Vehicle
	charger emporia.Device

	// consecutive cycles missing from the account listing
	absentCycles uint32
	// consecutive not-found fetch results
	notFoundCount uint32
}

func (d *trackedDevice) key() string {
	if d.kind == kindVehicle {
		return vehicleKey(d.vehicle.VehicleGID)
	}
	return chargerKey(d.charger.DeviceGID)
}

func (d *trackedDevice) sensorIdPrefix() string {
	if d.kind == kindVehicle {
		return events.VehicleSensorId(d.vehicle.VehicleGID, "")
	}
	return events.ChargerSensorId(d.charger.DeviceGID, "")
}

func vehicleKey(gid int64) string {
	return fmt.Sprintf("vehicle:%d", gid)
}

func chargerKey(gid int64) string {
	return fmt.Sprintf("charger:%d", gid)
}

func NewPollerActor(config *config.Config, emporiaActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:       config,
		emporiaActor: emporiaActor,
		behavior:     actor.NewBehavior(),
		stash:        &Stash{},
		logger:       ActorLogger("poller", logger),
		eventStream:  eventStream,
		devices:      make(map[string]*trackedDevice),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		// first cycle right away
		ctx.Send(ctx.Self(), pollTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case pollTick:
		state.logger.Debug("poller@default tick")
		state.beginCycle(ctx)
	default:
		state.logger.Debug("poller@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *PollerActor) beginCycle(ctx actor.Context) {
	state.queue = nil
	state.inFlight = 0
	state.rateLimited = false
	state.cycleFailed = false

	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.emporiaActor, domain.ListDevicesRequest{}, state.requestTimeout()), func(err error) any {
		return domain.ListDevicesResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.behavior.Become(state.ListingReceive)
}

func (state *PollerActor) ListingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ListDevicesResponse:
		if msg.HasResponseError() {
			err := msg.GetResponseError()
			switch {
			case emporia.IsAuthError(err):
				state.halt(ctx, err)
			case emporia.IsRateLimited(err):
				state.logger.Warn("poller@listing rate limited", zap.Error(err))
				state.rateLimited = true
				state.finishCycle(ctx)
			default:
				// listing failed, keep the table and retry next cycle
				state.logger.Error("poller@listing error", zap.Error(err))
				state.cycleFailed = true
				state.finishCycle(ctx)
			}
			return
		}
		state.logger.Debug("poller@listing devices",
			zap.Int("vehicles", len(msg.Vehicles)), zap.Int("chargers", len(msg.Chargers)))
		state.reconcileListing(msg.Vehicles, msg.Chargers)

		state.queue = state.fetchQueue()
		if len(state.queue) == 0 {
			state.finishCycle(ctx)
			return
		}
		state.behavior.Become(state.FetchingReceive)
		state.fillFetchWindow(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "polling",
		})
	default:
		state.logger.Debug("poller@listing: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) FetchingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetVehicleStatusResponse:
		state.inFlight--
		state.handleVehicleResponse(ctx, msg)
		state.continueCycle(ctx)
	case domain.GetChargerStatusResponse:
		state.inFlight--
		state.handleChargerResponse(ctx, msg)
		state.continueCycle(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "polling",
		})
	default:
		state.logger.Debug("poller@fetching: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// HaltedReceive is terminal: a rejected credential cannot heal without
// operator action, so polling stops and the health check goes red.
func (state *PollerActor) HaltedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: false,
			State:   "auth_failed",
		})
	case pollTick:
		state.logger.Debug("poller@halted: tick ignored")
	case domain.GetVehicleStatusResponse, domain.GetChargerStatusResponse:
		// drain late responses from the cycle that hit the auth error
	default:
		state.logger.Debug("poller@halted recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// reconcileListing syncs the device table with the account listing:
// new devices are tracked, missing ones are counted absent and evicted
// after the configured number of consecutive misses.
func (state *PollerActor) reconcileListing(vehicles []emporia.Vehicle, chargers []emporia.Device) {
	seen := make(map[string]bool)

	for _, v := range vehicles {
		key := vehicleKey(v.VehicleGID)
		seen[key] = true
		if dev, ok := state.devices[key]; ok {
			dev.vehicle = v
			dev.absentCycles = 0
		} else {
			state.logger.Info("poller: tracking new vehicle",
				zap.Int64("vehicleGid", v.VehicleGID), zap.String("name", v.DisplayName))
			state.devices[key] = &trackedDevice{kind: kindVehicle, vehicle: v}
		}
	}
	for _, c := range chargers {
		key := chargerKey(c.DeviceGID)
		seen[key] = true
		if dev, ok := state.devices[key]; ok {
			dev.charger = c
			dev.absentCycles = 0
		} else {
			state.logger.Info("poller: tracking new charger",
				zap.Int64("deviceGid", c.DeviceGID), zap.String("name", c.DisplayName))
			state.devices[key] = &trackedDevice{kind: kindCharger, charger: c}
		}
	}

	for key, dev := range state.devices {
		if seen[key] {
			continue
		}
		dev.absentCycles++
		if dev.absentCycles >= state.evictCount() {
			state.logger.Warn("poller: evicting device missing from listing", zap.String("device", key))
			state.eventStream.Publish(events.DeviceReachableUpdateEvent(dev.sensorIdPrefix(), false))
			delete(state.devices, key)
		}
	}
}

func (state *PollerActor) fetchQueue() []string {
	queue := make([]string, 0, len(state.devices))
	// vehicles first, then chargers, stable within a cycle
	for key, dev := range state.devices {
		if dev.kind == kindVehicle {
			queue = append(queue, key)
		}
	}
	for key, dev := range state.devices {
		if dev.kind == kindCharger {
			queue = append(queue, key)
		}
	}
	return queue
}

// fillFetchWindow keeps up to max_in_flight fetches outstanding. A
// rate-limited cycle stops issuing: whatever already came back is
// published, the rest of the queue waits for the next cycle.
func (state *PollerActor) fillFetchWindow(ctx actor.Context) {
	if state.rateLimited {
		state.queue = nil
		return
	}
	for state.inFlight < state.maxInFlight() && len(state.queue) > 0 {
		key := state.queue[0]
		state.queue = state.queue[1:]
		dev, ok := state.devices[key]
		if !ok {
			continue
		}
		state.issueFetch(ctx, dev)
	}
}

func (state *PollerActor) issueFetch(ctx actor.Context, dev *trackedDevice) {
	state.inFlight++
	if dev.kind == kindVehicle {
		gid := dev.vehicle.VehicleGID
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.emporiaActor,
			domain.GetVehicleStatusRequest{VehicleGID: gid}, state.requestTimeout()), func(err error) any {
			return domain.GetVehicleStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: &emporia.TransientError{Err: err},
				},
				VehicleGID: gid,
			}
		})
	} else {
		gid := dev.charger.DeviceGID
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.emporiaActor,
			domain.GetChargerStatusRequest{DeviceGID: gid}, state.requestTimeout()), func(err error) any {
			return domain.GetChargerStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: &emporia.TransientError{Err: err},
				},
				DeviceGID: gid,
			}
		})
	}
}

func (state *PollerActor) continueCycle(ctx actor.Context) {
	// a response handler may have halted polling; the cycle must not be
	// rescheduled then
	if state.halted {
		return
	}
	state.fillFetchWindow(ctx)
	if state.inFlight == 0 && len(state.queue) == 0 {
		state.finishCycle(ctx)
	}
}

func (state *PollerActor) handleVehicleResponse(ctx actor.Context, msg domain.GetVehicleStatusResponse) {
	key := vehicleKey(msg.VehicleGID)
	dev, ok := state.devices[key]
	if !ok {
		return
	}
	if msg.HasResponseError() {
		state.handleFetchError(ctx, dev, msg.GetResponseError())
		return
	}

	snapshot, anomalies := service.MapVehicle(dev.vehicle, msg.Status, time.Now())
	state.logAnomalies(key, anomalies)
	dev.notFoundCount = 0

	for _, ev := range events.VehicleSnapshotToUpdateEvents(snapshot) {
		state.eventStream.Publish(ev)
	}
	state.eventStream.Publish(events.DeviceReachableUpdateEvent(dev.sensorIdPrefix(), true))
}

func (state *PollerActor) handleChargerResponse(ctx actor.Context, msg domain.GetChargerStatusResponse) {
	key := chargerKey(msg.DeviceGID)
	dev, ok := state.devices[key]
	if !ok {
		return
	}
	if msg.HasResponseError() {
		state.handleFetchError(ctx, dev, msg.GetResponseError())
		return
	}

	snapshot, anomalies := service.MapCharger(dev.charger, msg.Charger, msg.Usage, service.MapperOptions{
		AssumedVoltage: state.config.PowerConfig.AssumedVoltage,
		UsageTolerance: time.Duration(state.config.PollConfig.UsageToleranceSeconds) * time.Second,
	}, time.Now())
	state.logAnomalies(key, anomalies)
	dev.notFoundCount = 0

	for _, ev := range events.ChargerSnapshotToUpdateEvents(snapshot) {
		state.eventStream.Publish(ev)
	}
	state.eventStream.Publish(events.DeviceReachableUpdateEvent(dev.sensorIdPrefix(), true))
}

// handleFetchError applies the per-device failure policy. The device's
// previously published state is never blanked here.
func (state *PollerActor) handleFetchError(ctx actor.Context, dev *trackedDevice, err error) {
	key := dev.key()
	switch {
	case emporia.IsAuthError(err):
		state.halt(ctx, err)
	case emporia.IsRateLimited(err):
		if !state.rateLimited {
			state.logger.Warn("poller: rate limited, dropping remaining fetches this cycle",
				zap.String("device", key), zap.Error(err))
			state.rateLimited = true
			state.queue = nil
		}
	case emporia.IsNotFound(err):
		dev.notFoundCount++
		state.logger.Warn("poller: device not found",
			zap.String("device", key), zap.Uint32("count", dev.notFoundCount))
		state.eventStream.Publish(events.DeviceReachableUpdateEvent(dev.sensorIdPrefix(), false))
		state.eventStream.Publish(events.DeviceLastErrorUpdateEvent(dev.sensorIdPrefix(), err.Error()))
		if dev.notFoundCount >= state.evictCount() {
			state.logger.Warn("poller: evicting device after repeated not found", zap.String("device", key))
			delete(state.devices, key)
		}
	default:
		state.cycleFailed = true
		state.logger.Error("poller: device fetch failed, keeping last state",
			zap.String("device", key), zap.Error(err))
		state.eventStream.Publish(events.DeviceReachableUpdateEvent(dev.sensorIdPrefix(), false))
		state.eventStream.Publish(events.DeviceLastErrorUpdateEvent(dev.sensorIdPrefix(), err.Error()))
	}
}

func (state *PollerActor) halt(ctx actor.Context, err error) {
	state.logger.Error("poller: authentication rejected, polling halted until restart", zap.Error(err))
	state.halted = true
	state.queue = nil
	state.eventStream.Publish(events.BridgeUpdateEvent(false))
	state.behavior.Become(state.HaltedReceive)
	state.stash.UnstashAll(ctx)
}

func (state *PollerActor) finishCycle(ctx actor.Context) {
	if state.rateLimited {
		state.backoffCycles++
	} else if !state.cycleFailed {
		state.backoffCycles = 0
	}
	interval := state.nextInterval()
	state.logger.Debug("poller: cycle done", zap.Duration("nextCycle", interval),
		zap.Uint32("backoffCycles", state.backoffCycles))
	state.scheduler.RequestOnce(interval, ctx.Self(), pollTick{})
	state.behavior.Become(state.DefaultReceive)
	state.stash.UnstashAll(ctx)
}

// nextInterval doubles the poll interval per consecutive rate-limited
// cycle, capped at backoff_max_interval_seconds.
func (state *PollerActor) nextInterval() time.Duration {
	base := time.Duration(state.config.PollConfig.IntervalSeconds) * time.Second
	if state.backoffCycles == 0 {
		return base
	}
	maxInterval := time.Duration(state.config.PollConfig.BackoffMaxIntervalSeconds) * time.Second
	if maxInterval < base {
		maxInterval = base
	}
	interval := base
	for i := uint32(0); i < state.backoffCycles; i++ {
		interval *= 2
		if interval >= maxInterval {
			return maxInterval
		}
	}
	return interval
}

func (state *PollerActor) logAnomalies(device string, anomalies []service.MappingAnomaly) {
	for _, a := range anomalies {
		state.logger.Warn("poller: mapping anomaly", zap.String("device", device),
			zap.String("field", a.Field), zap.String("detail", a.Detail))
	}
}

func (state *PollerActor) maxInFlight() uint32 {
	if state.config.PollConfig.MaxInFlight == 0 {
		return 1
	}
	return state.config.PollConfig.MaxInFlight
}

func (state *PollerActor) evictCount() uint32 {
	if state.config.PollConfig.NotFoundEvictCount == 0 {
		return 3
	}
	return state.config.PollConfig.NotFoundEvictCount
}

func (state *PollerActor) requestTimeout() time.Duration {
	fetchTimeout := time.Duration(state.config.PollConfig.FetchTimeoutSeconds) * time.Second
	// the adapter serves requests one at a time, so a queued request can
	// wait for the whole window before its own task timeout starts
	return fetchTimeout*time.Duration(state.maxInFlight()) + 2*time.Second
}
