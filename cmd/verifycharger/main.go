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

// verifycharger fetches every charger on the account and prints the
// live usage power next to the amperage-derived estimate, so the
// assumed voltage can be sanity-checked against the real feed.
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

	chargers, err := client.GetChargerDevices(ctx)
	if err != nil {
		fmt.Printf("charger listing failed: %s\n", err)
		os.Exit(1)
	}
	if len(chargers) == 0 {
		fmt.Println("no EV chargers on this account")
		return
	}

	for _, charger := range chargers {
		fmt.Printf("charger %d (%s, model %s, firmware %s)\n",
			charger.DeviceGID, charger.DisplayName, charger.Model, charger.Firmware)

		status, err := client.GetChargerStatus(ctx, charger.DeviceGID)
		if err != nil {
			fmt.Printf("  status fetch failed: %s\n", err)
			continue
		}
		fmt.Printf("  status=%s message=%q fault=%q\n", status.Status, status.Message, status.FaultText)

		if status.ChargingRateAmps != nil {
			estimate := service.EstimatePowerKW(*status.ChargingRateAmps, service.DefaultAssumedVoltage)
			fmt.Printf("  estimate: %.1fA @ %.0fV => %.3fkW\n",
				*status.ChargingRateAmps, service.DefaultAssumedVoltage, estimate)
		} else {
			fmt.Println("  estimate: no charging rate reported")
		}

		usage, err := client.GetUsageKW(ctx, charger.DeviceGID, time.Now())
		if err != nil {
			fmt.Printf("  live usage unavailable: %s\n", err)
			continue
		}
		if usage == nil {
			fmt.Println("  live usage: no sample for this instant")
			continue
		}
		fmt.Printf("  live usage: %.3fkW at %s\n", usage.KW, usage.Timestamp.Format(time.RFC3339))
	}
}

func readPassword() (string, error) {
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	return string(value), err
}
