package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/vehiclevue2mqtt/internal/adapter/actor"
	"github.com/berfenger/vehiclevue2mqtt/internal/config"
	"github.com/berfenger/vehiclevue2mqtt/internal/core/actor"
	"github.com/berfenger/vehiclevue2mqtt/internal/server"
	"github.com/berfenger/vehiclevue2mqtt/internal/util/actorutil"
	"github.com/berfenger/vehiclevue2mqtt/pkg/emporia"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, emporiaActorProvider(cfg, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => VEHICLEVUE_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("VEHICLEVUE_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("vehiclevue")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check credentials
	if cfg.Emporia.Username == "" || cfg.Emporia.Password == "" {
		return nil, errors.New("config params emporia.username and emporia.password are required")
	}

	// check bounds
	if cfg.PollConfig.IntervalSeconds < 60 {
		return nil, errors.New("config param poll.interval_seconds should be >= 60")
	}
	if cfg.PollConfig.FetchTimeoutSeconds < 5 {
		return nil, errors.New("config param poll.fetch_timeout_seconds should be >= 5")
	}
	if cfg.PollConfig.BackoffMaxIntervalSeconds < cfg.PollConfig.IntervalSeconds {
		return nil, errors.New("config param poll.backoff_max_interval_seconds must be >= poll.interval_seconds")
	}
	if cfg.PowerConfig.AssumedVoltage <= 0 {
		return nil, errors.New("config param power.assumed_voltage should be > 0")
	}

	return &cfg, nil
}

func emporiaActorProvider(cfg *config.Config, logger *zap.Logger) actor.EmporiaActorProvider {
	client := emporia.NewCloudClient(emporia.ClientConfig{
		Username:    cfg.Emporia.Username,
		Password:    cfg.Emporia.Password,
		APIBaseURL:  cfg.Emporia.ApiBaseUrl,
		AuthBaseURL: cfg.Emporia.AuthBaseUrl,
		Timeout:     time.Duration(cfg.PollConfig.FetchTimeoutSeconds) * time.Second,
	})
	return func() *adactor.EmporiaActor {
		return adactor.NewEmporiaActor(client, time.Duration(cfg.PollConfig.FetchTimeoutSeconds)*time.Second, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "vehiclevue")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("poll.interval_seconds", 1800)
	viper.SetDefault("poll.fetch_timeout_seconds", 30)
	viper.SetDefault("poll.max_in_flight", 2)
	viper.SetDefault("poll.backoff_max_interval_seconds", 14400)
	viper.SetDefault("poll.not_found_evict_count", 3)
	viper.SetDefault("poll.usage_tolerance_seconds", 300)
	viper.SetDefault("power.assumed_voltage", 240)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Emporia.Username = "*redacted*"
	cfg.Emporia.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
