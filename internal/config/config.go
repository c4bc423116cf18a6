package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Emporia  EmporiaConfig `mapstructure:"emporia"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`

	PollConfig  PollConfig  `mapstructure:"poll"`
	PowerConfig PowerConfig `mapstructure:"power"`
	Port        uint        `mapstructure:"port"`
	HttpLog     bool        `mapstructure:"http_log"`
}

type EmporiaConfig struct {
	Username    string
	Password    string
	ApiBaseUrl  string `mapstructure:"api_base_url"`
	AuthBaseUrl string `mapstructure:"auth_base_url"`
}

type PollConfig struct {
	IntervalSeconds           uint32 `mapstructure:"interval_seconds"`
	FetchTimeoutSeconds       uint32 `mapstructure:"fetch_timeout_seconds"`
	MaxInFlight               uint32 `mapstructure:"max_in_flight"`
	BackoffMaxIntervalSeconds uint32 `mapstructure:"backoff_max_interval_seconds"`
	NotFoundEvictCount        uint32 `mapstructure:"not_found_evict_count"`
	UsageToleranceSeconds     uint32 `mapstructure:"usage_tolerance_seconds"`
}

type PowerConfig struct {
	AssumedVoltage float64 `mapstructure:"assumed_voltage"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
