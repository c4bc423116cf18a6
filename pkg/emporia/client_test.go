package emporia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) CloudClient {
	return NewCloudClient(ClientConfig{
		Username:    "user@example.com",
		Password:    "secret",
		APIBaseURL:  srv.URL,
		AuthBaseURL: srv.URL,
		Timeout:     5 * time.Second,
	})
}

func TestLoginAndGetVehicles(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/auth":
			w.Write([]byte(`{"idToken":"tok123","expiresIn":3600}`))
		case "/customers/vehicles":
			assert.Equal(t, "tok123", r.Header.Get("AuthToken"))
			w.Write([]byte(`{"vehicles":[{"vehicleGid":42,"displayName":"My EV","make":"Tesla","model":"Model 3","year":2022}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := testClient(srv)

	vehicles, err := client.GetVehicles(context.Background())
	assert.NoError(t, err)
	assert.Len(t, vehicles, 1)
	assert.Equal(t, int64(42), vehicles[0].VehicleGID)
	assert.Equal(t, "My EV", vehicles[0].DisplayName)
}

func TestLoginRejectedIsAuthError(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := testClient(srv)

	err := client.Login(context.Background())
	assert.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsTransient(err))
}

func TestExpiredTokenRetriesOnce(t *testing.T) {
	var logins, fetches atomic.Int32
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/auth":
			n := logins.Add(1)
			if n == 1 {
				w.Write([]byte(`{"idToken":"stale","expiresIn":3600}`))
			} else {
				w.Write([]byte(`{"idToken":"fresh","expiresIn":3600}`))
			}
		case "/customers/vehicles":
			fetches.Add(1)
			if r.Header.Get("AuthToken") == "stale" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"vehicles":[]}`))
		}
	})

	client := testClient(srv)

	_, err := client.GetVehicles(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), logins.Load())
	assert.Equal(t, int32(2), fetches.Load())
}

func TestRateLimitedWithRetryAfter(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/auth" {
			w.Write([]byte(`{"idToken":"tok","expiresIn":3600}`))
			return
		}
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := testClient(srv)

	_, err := client.GetVehicles(context.Background())
	assert.True(t, IsRateLimited(err))
	var rl *RateLimitedError
	assert.ErrorAs(t, err, &rl)
	assert.Equal(t, 2*time.Minute, rl.RetryAfter)
}

func TestVehicleNotFound(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/auth" {
			w.Write([]byte(`{"idToken":"tok","expiresIn":3600}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client := testClient(srv)

	_, err := client.GetVehicleStatus(context.Background(), 99)
	assert.True(t, IsNotFound(err))
}

func TestServerErrorIsTransient(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/auth" {
			w.Write([]byte(`{"idToken":"tok","expiresIn":3600}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	client := testClient(srv)

	_, err := client.GetChargerStatus(context.Background(), 1)
	assert.True(t, IsTransient(err))
	assert.False(t, IsAuthError(err))
}

func TestGetChargerDevicesFiltersNonChargers(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/auth":
			w.Write([]byte(`{"idToken":"tok","expiresIn":3600}`))
		case "/customers/devices":
			w.Write([]byte(`{"devices":[
				{"deviceGid":1,"model":"Vue2","displayName":"Panel"},
				{"deviceGid":2,"model":"EVC01","displayName":"Garage charger","evCharger":{"deviceGid":2,"loadGid":7,"maxChargingRate":40}}
			]}`))
		}
	})

	client := testClient(srv)

	chargers, err := client.GetChargerDevices(context.Background())
	assert.NoError(t, err)
	assert.Len(t, chargers, 1)
	assert.Equal(t, int64(2), chargers[0].DeviceGID)
	assert.NotNil(t, chargers[0].EVCharger)
	assert.Equal(t, float64(40), *chargers[0].EVCharger.MaxChargingRateAmps)
}

func TestGetUsageKWSumsChannelsTimes3600(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/auth":
			w.Write([]byte(`{"idToken":"tok","expiresIn":3600}`))
		case "/AppAPI":
			assert.Equal(t, "1S", r.URL.Query().Get("scale"))
			// two channels of 0.0008 kWh over one second = 5.76 kW total
			w.Write([]byte(`{"deviceListUsages":{"instant":"2026-08-25T10:00:00Z","devices":[
				{"deviceGid":2,"channelUsages":[{"name":"A","usage":0.0008},{"name":"B","usage":0.0008}]}
			]}}`))
		}
	})

	client := testClient(srv)

	sample, err := client.GetUsageKW(context.Background(), 2, time.Now())
	assert.NoError(t, err)
	assert.NotNil(t, sample)
	assert.InDelta(t, 5.76, sample.KW, 1e-9)
	assert.Equal(t, int64(2), sample.DeviceGID)
}

func TestGetUsageKWNoSample(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/auth":
			w.Write([]byte(`{"idToken":"tok","expiresIn":3600}`))
		case "/AppAPI":
			w.Write([]byte(`{"deviceListUsages":{"devices":[{"deviceGid":2,"channelUsages":[{"name":"A","usage":null}]}]}}`))
		}
	})

	client := testClient(srv)

	sample, err := client.GetUsageKW(context.Background(), 2, time.Now())
	assert.NoError(t, err)
	assert.Nil(t, sample)
}
