package emporia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultAPIBaseURL  = "https://api.emporiaenergy.com"
	DefaultAuthBaseURL = "https://api.emporiaenergy.com"

	// usageScaleSecond selects the 1-second usage bucket. The raw value
	// is kWh over that second, so kW = value * 3600.
	usageScaleSecond = "1S"

	tokenExpiryMargin = 2 * time.Minute
)

// CloudClient is the read-only surface of the Emporia cloud this bridge
// needs. All calls take a context and return errors from the taxonomy
// in errors.go.
type CloudClient interface {
	// Login authenticates with the configured credentials. Other calls
	// log in lazily, so calling it is only required to fail fast.
	Login(ctx context.Context) error
	// GetVehicles lists the EVs linked to the account.
	GetVehicles(ctx context.Context) ([]Vehicle, error)
	// GetChargerDevices lists account devices that carry an EVCharger
	// block. Devices without one are filtered out.
	GetChargerDevices(ctx context.Context) ([]Device, error)
	// GetVehicleStatus fetches live telemetry for one vehicle.
	GetVehicleStatus(ctx context.Context, vehicleGID int64) (*VehicleStatus, error)
	// GetChargerStatus fetches live state for one charger.
	GetChargerStatus(ctx context.Context, deviceGID int64) (*ChargerStatus, error)
	// GetUsageKW fetches the instantaneous power of a device from the
	// 1-second usage scale. Returns (nil, nil) when the cloud has no
	// sample for the requested instant; that is not an error.
	GetUsageKW(ctx context.Context, deviceGID int64, instant time.Time) (*UsageSample, error)
}

type ClientConfig struct {
	Username    string
	Password    string
	APIBaseURL  string
	AuthBaseURL string
	// Timeout bounds every HTTP exchange. Contexts passed to calls can
	// shorten it further.
	Timeout time.Duration
}

type httpCloudClient struct {
	cfg        ClientConfig
	httpClient *http.Client

	mu          sync.Mutex
	authToken   string
	tokenExpiry time.Time
}

// NewCloudClient creates the HTTP implementation of CloudClient.
func NewCloudClient(cfg ClientConfig) CloudClient {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = DefaultAuthBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &httpCloudClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	IDToken   string `json:"idToken"`
	ExpiresIn int    `json:"expiresIn"`
}

func (c *httpCloudClient) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

// loginLocked performs the credential exchange. Callers hold c.mu, so
// concurrent 401s collapse into a single refresh.
func (c *httpCloudClient) loginLocked(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{
		Username: c.cfg.Username,
		Password: c.cfg.Password,
	})
	if err != nil {
		return &TransientError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.AuthBaseURL+"/customers/auth", bytes.NewReader(body))
	if err != nil {
		return &TransientError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Err: fmt.Errorf("login rejected (status %d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfter(resp)}
	default:
		return &TransientError{Err: fmt.Errorf("login failed (status %d)", resp.StatusCode)}
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return &TransientError{Err: fmt.Errorf("decode login response: %w", err)}
	}
	if lr.IDToken == "" {
		return &AuthError{Err: fmt.Errorf("login response without token")}
	}
	c.authToken = lr.IDToken
	if lr.ExpiresIn > 0 {
		c.tokenExpiry = time.Now().Add(time.Duration(lr.ExpiresIn) * time.Second)
	} else {
		c.tokenExpiry = time.Now().Add(30 * time.Minute)
	}
	return nil
}

func (c *httpCloudClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authToken == "" || time.Now().After(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		if err := c.loginLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.authToken, nil
}

func (c *httpCloudClient) invalidateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// only drop the token that failed, a concurrent refresh may already
	// have replaced it
	if c.authToken == token {
		c.authToken = ""
	}
}

// getJSON performs an authenticated GET and decodes the body into out.
// A single 401 triggers one serial re-login and retry; a second 401 is
// reported as AuthError.
func (c *httpCloudClient) getJSON(ctx context.Context, path string, resource string, out any) error {
	for attempt := 0; ; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path, nil)
		if err != nil {
			return &TransientError{Err: err}
		}
		req.Header.Set("AuthToken", token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &TransientError{Err: err}
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			c.invalidateToken(token)
			continue
		}

		err = func() error {
			defer resp.Body.Close()
			if err := statusToError(resp, resource); err != nil {
				return err
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return &TransientError{Err: fmt.Errorf("decode %s response: %w", resource, err)}
			}
			return nil
		}()
		return err
	}
}

func statusToError(resp *http.Response, resource string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Err: fmt.Errorf("request rejected (status %d)", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: resource}
	default:
		return &TransientError{Err: fmt.Errorf("%s request failed (status %d)", resource, resp.StatusCode)}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

type vehiclesResponse struct {
	Vehicles []Vehicle `json:"vehicles"`
}

func (c *httpCloudClient) GetVehicles(ctx context.Context) ([]Vehicle, error) {
	var vr vehiclesResponse
	if err := c.getJSON(ctx, "/customers/vehicles", "vehicles", &vr); err != nil {
		return nil, err
	}
	return vr.Vehicles, nil
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

func (c *httpCloudClient) GetChargerDevices(ctx context.Context) ([]Device, error) {
	var dr devicesResponse
	if err := c.getJSON(ctx, "/customers/devices", "devices", &dr); err != nil {
		return nil, err
	}
	var chargers []Device
	for _, d := range dr.Devices {
		if d.EVCharger != nil {
			chargers = append(chargers, d)
		}
	}
	return chargers, nil
}

func (c *httpCloudClient) GetVehicleStatus(ctx context.Context, vehicleGID int64) (*VehicleStatus, error) {
	var vs VehicleStatus
	path := fmt.Sprintf("/vehicles/v2/settings?vehicleGid=%d", vehicleGID)
	resource := fmt.Sprintf("vehicle %d", vehicleGID)
	if err := c.getJSON(ctx, path, resource, &vs); err != nil {
		return nil, err
	}
	if vs.VehicleGID == 0 {
		vs.VehicleGID = vehicleGID
	}
	return &vs, nil
}

func (c *httpCloudClient) GetChargerStatus(ctx context.Context, deviceGID int64) (*ChargerStatus, error) {
	var cs ChargerStatus
	path := fmt.Sprintf("/devices/evcharger?deviceGid=%d", deviceGID)
	resource := fmt.Sprintf("charger %d", deviceGID)
	if err := c.getJSON(ctx, path, resource, &cs); err != nil {
		return nil, err
	}
	if cs.DeviceGID == 0 {
		cs.DeviceGID = deviceGID
	}
	return &cs, nil
}

type usageResponse struct {
	DeviceListUsages struct {
		Instant time.Time `json:"instant"`
		Devices []struct {
			DeviceGID     int64 `json:"deviceGid"`
			ChannelUsages []struct {
				Name  string   `json:"name"`
				Usage *float64 `json:"usage"`
			} `json:"channelUsages"`
		} `json:"devices"`
	} `json:"deviceListUsages"`
}

func (c *httpCloudClient) GetUsageKW(ctx context.Context, deviceGID int64, instant time.Time) (*UsageSample, error) {
	path := fmt.Sprintf(
		"/AppAPI?apiMethod=getDeviceListUsages&deviceGids=%d&instant=%s&scale=%s&energyUnit=KilowattHours",
		deviceGID, instant.UTC().Format(time.RFC3339), usageScaleSecond)
	resource := fmt.Sprintf("usage %d", deviceGID)

	var ur usageResponse
	if err := c.getJSON(ctx, path, resource, &ur); err != nil {
		return nil, err
	}

	for _, d := range ur.DeviceListUsages.Devices {
		if d.DeviceGID != deviceGID {
			continue
		}
		var kwh float64
		found := false
		for _, ch := range d.ChannelUsages {
			if ch.Usage != nil {
				kwh += *ch.Usage
				found = true
			}
		}
		if !found {
			return nil, nil
		}
		ts := ur.DeviceListUsages.Instant
		if ts.IsZero() {
			ts = instant
		}
		// 1-second bucket: kWh over one second -> kW
		return &UsageSample{
			DeviceGID: deviceGID,
			KW:        kwh * 3600,
			Timestamp: ts,
		}, nil
	}
	return nil, nil
}
