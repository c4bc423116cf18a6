package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/berfenger/vehiclevue2mqtt/internal/core/service"
	"github.com/berfenger/vehiclevue2mqtt/internal/util"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/term"
)

// devcheck logs into the cloud with the configured credentials, runs a
// single fetch pass over every vehicle and charger on the account and
// prints the normalized snapshots. Useful to verify an account before
// wiring the bridge to a broker.
func main() {

	// env vars first, prompt for whatever is missing
	username, password, err := util.PromptCredentials(
		os.Getenv("VEHICLEVUE_EMPORIA_USERNAME"), os.Getenv("VEHICLEVUE_EMPORIA_PASSWORD"),
		os.Stdin, os.Stdout, readPassword)
	if err != nil {
		fmt.Printf("credentials: %s\n", err)
		os.Exit(1)
	}

	client := emporia.NewCloudClient(emporia.ClientConfig{
		Username: username,
		Password: password,
		Timeout:  30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := client.Login(ctx); err != nil {
		fmt.Printf("login failed: %s\n", err)
		os.Exit(1)
	}

	opts := service.MapperOptions{
		AssumedVoltage: service.DefaultAssumedVoltage,
		UsageTolerance: 5 * time.Minute,
	}

	vehicles, err := client.GetVehicles(ctx)
	if err != nil {
		fmt.Printf("vehicle listing failed: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("account has %d vehicle(s)\n", len(vehicles))

	for _, vehicle := range vehicles {
		status, err := client.GetVehicleStatus(ctx, vehicle.VehicleGID)
		if err != nil {
			fmt.Printf("  vehicle %d (%s): fetch failed: %s\n", vehicle.VehicleGID, vehicle.DisplayName, err)
			continue
		}
		snapshot, anomalies := service.MapVehicle(vehicle, status, time.Now())
		fmt.Printf("  vehicle %d (%s): battery=%s charging=%s range=%s\n",
			snapshot.VehicleGID, snapshot.Name,
			fmtFloat(snapshot.BatteryPercent, "%"), snapshot.ChargingState,
			fmtFloat(snapshot.RangeKM, "km"))
		for _, a := range anomalies {
			fmt.Printf("    anomaly: %s: %s\n", a.Field, a.Detail)
		}
	}

	chargers, err := client.GetChargerDevices(ctx)
	if err != nil {
		fmt.Printf("charger listing failed: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("account has %d charger(s)\n", len(chargers))

	for _, charger := range chargers {
		status, err := client.GetChargerStatus(ctx, charger.DeviceGID)
		if err != nil {
			fmt.Printf("  charger %d (%s): fetch failed: %s\n", charger.DeviceGID, charger.DisplayName, err)
			continue
		}
		usage, err := client.GetUsageKW(ctx, charger.DeviceGID, time.Now())
		if err != nil {
			fmt.Printf("  charger %d (%s): usage unavailable: %s\n", charger.DeviceGID, charger.DisplayName, err)
			usage = nil
		}
		snapshot, anomalies := service.MapCharger(charger, status, usage, opts, time.Now())
		fmt.Printf("  charger %d (%s): status=%s on=%s power=%s estimated=%t rate=%s max=%s\n",
			snapshot.DeviceGID, snapshot.Name, snapshot.Status,
			fmtBool(snapshot.On), fmtFloat(snapshot.PowerKW, "kW"), snapshot.PowerIsEstimated,
			fmtFloat(snapshot.ChargingRateAmps, "A"), fmtFloat(snapshot.MaxChargingRateAmps, "A"))
		for _, a := range anomalies {
			fmt.Printf("    anomaly: %s: %s\n", a.Field, a.Detail)
		}
	}
}

func readPassword() (string, error) {
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(value), err
}

func fmtFloat(value *float64, unit string) string {
	if value == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f%s", *value, unit)
}

func fmtBool(value *bool) string {
	if value == nil {
		return "unknown"
	}
	return fmt.Sprintf("%t", *value)
}
