package emporia

import (
	"context"
	"sync"
	"time"
)

// TestCloudClient is an in-memory CloudClient for tests. Fixtures are
// plain fields; per-call failures are injected through the optional
// hooks. Safe for concurrent use.
type TestCloudClient struct {
	mu sync.Mutex

	Vehicles        []Vehicle
	Chargers        []Device
	VehicleStatuses map[int64]*VehicleStatus
	ChargerStatuses map[int64]*ChargerStatus
	Usages          map[int64]*UsageSample

	// LoginErr is returned by Login when set.
	LoginErr error
	// ListErr is returned by both listing calls when set.
	ListErr error
	// FetchHook, when set, runs before every per-device fetch with the
	// operation name ("vehicle_status", "charger_status", "usage") and
	// the device GID. A non-nil return fails the call with that error.
	FetchHook func(op string, gid int64) error

	calls []string
}

var _ CloudClient = (*TestCloudClient)(nil)

func (c *TestCloudClient) record(call string) {
	c.calls = append(c.calls, call)
}

// Calls returns the ordered list of operations performed so far.
func (c *TestCloudClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *TestCloudClient) Login(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("login")
	return c.LoginErr
}

func (c *TestCloudClient) GetVehicles(_ context.Context) ([]Vehicle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("vehicles")
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	return c.Vehicles, nil
}

func (c *TestCloudClient) GetChargerDevices(_ context.Context) ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("devices")
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	return c.Chargers, nil
}

func (c *TestCloudClient) GetVehicleStatus(_ context.Context, vehicleGID int64) (*VehicleStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("vehicle_status")
	if c.FetchHook != nil {
		if err := c.FetchHook("vehicle_status", vehicleGID); err != nil {
			return nil, err
		}
	}
	st, ok := c.VehicleStatuses[vehicleGID]
	if !ok {
		return nil, &NotFoundError{Resource: "vehicle"}
	}
	return st, nil
}

func (c *TestCloudClient) GetChargerStatus(_ context.Context, deviceGID int64) (*ChargerStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("charger_status")
	if c.FetchHook != nil {
		if err := c.FetchHook("charger_status", deviceGID); err != nil {
			return nil, err
		}
	}
	st, ok := c.ChargerStatuses[deviceGID]
	if !ok {
		return nil, &NotFoundError{Resource: "charger"}
	}
	return st, nil
}

func (c *TestCloudClient) GetUsageKW(_ context.Context, deviceGID int64, _ time.Time) (*UsageSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("usage")
	if c.FetchHook != nil {
		if err := c.FetchHook("usage", deviceGID); err != nil {
			return nil, err
		}
	}
	return c.Usages[deviceGID], nil
}
