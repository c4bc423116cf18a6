package util

import (
	"github.com/berfenger/vehiclevue2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Emporia: config.EmporiaConfig{
			Username: "test@example.com",
			Password: "secret",
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "vehiclevue",
		},
		PollConfig: config.PollConfig{
			IntervalSeconds:           1,
			FetchTimeoutSeconds:       2,
			MaxInFlight:               2,
			BackoffMaxIntervalSeconds: 8,
			NotFoundEvictCount:        3,
			UsageToleranceSeconds:     300,
		},
		PowerConfig: config.PowerConfig{
			AssumedVoltage: 240,
		},
		Port: 8080,
	}
}
