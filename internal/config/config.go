package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "arrowdash.cfg.json"

// ErrConfigNotFound is returned by Load when no config file exists. Defaults
// are still in effect.
var ErrConfigNotFound = errors.New("config file not found")

// Load sets default values and reads the JSON config file from configDir.
// Every key can be overridden from the environment, e.g.
// ARROWDASH_TELEMETRY_TRANSPORT=stomp.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("map.panelWidthDp", 280)
	viper.SetDefault("map.density", 1.0)
	viper.SetDefault("map.zoom", 17.5)
	viper.SetDefault("map.tilt", 60.0)
	viper.SetDefault("map.animation", "600ms")
	viper.SetDefault("map.iconSize", 0.3)
	viper.SetDefault("map.roadLayers", []string{"road", "road-primary", "road_major", "highway-primary", "trunk"})
	viper.SetDefault("map.roadColor", "#FFD27A")
	viper.SetDefault("map.roadWidth", 2.5)
	viper.SetDefault("map.followCamera", true)

	viper.SetDefault("simulation.step", "1200ms")

	viper.SetDefault("telemetry.transport", "redis")
	viper.SetDefault("telemetry.vehicleTopic", "vehicles/*")
	viper.SetDefault("telemetry.alertTopic", "alerts/*")
	viper.SetDefault("telemetry.carId", "")
	viper.SetDefault("telemetry.queueSize", 256)
	viper.SetDefault("telemetry.fleetSize", 64)

	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("stomp.address", "localhost:61613")
	viper.SetDefault("stomp.username", "")
	viper.SetDefault("stomp.password", "")
	viper.SetDefault("stomp.destinations", []string{"vehicles/stream", "alerts/stream"})

	viper.SetDefault("websocket.url", "ws://localhost:8080/telemetry")
	viper.SetDefault("websocket.maxReconnect", 10)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "arrowdash")
	viper.SetDefault("otel.exportInterval", "30s")

	viper.SetEnvPrefix("ARROWDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w in %s", ErrConfigNotFound, configDir)
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Set overrides a config value for the rest of the process.
func Set(key string, value any) {
	viper.Set(key, value)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// MapConfig covers the renderer, marker and camera.
type MapConfig struct {
	PanelWidthDP int
	Density      float64
	Zoom         float64
	Tilt         float64
	Animation    time.Duration
	IconSize     float64
	RoadLayers   []string
	RoadColor    string
	RoadWidth    float64
	FollowCamera bool
}

func GetMapConfig() MapConfig {
	return MapConfig{
		PanelWidthDP: viper.GetInt("map.panelWidthDp"),
		Density:      viper.GetFloat64("map.density"),
		Zoom:         viper.GetFloat64("map.zoom"),
		Tilt:         viper.GetFloat64("map.tilt"),
		Animation:    viper.GetDuration("map.animation"),
		IconSize:     viper.GetFloat64("map.iconSize"),
		RoadLayers:   viper.GetStringSlice("map.roadLayers"),
		RoadColor:    viper.GetString("map.roadColor"),
		RoadWidth:    viper.GetFloat64("map.roadWidth"),
		FollowCamera: viper.GetBool("map.followCamera"),
	}
}

// TelemetryConfig holds feed selection and intake settings.
type TelemetryConfig struct {
	Transport    string
	VehicleTopic string
	AlertTopic   string
	CarID        string
	QueueSize    int
	FleetSize    int
}

func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Transport:    viper.GetString("telemetry.transport"),
		VehicleTopic: viper.GetString("telemetry.vehicleTopic"),
		AlertTopic:   viper.GetString("telemetry.alertTopic"),
		CarID:        viper.GetString("telemetry.carId"),
		QueueSize:    viper.GetInt("telemetry.queueSize"),
		FleetSize:    viper.GetInt("telemetry.fleetSize"),
	}
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Address:  viper.GetString("redis.address"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}
}

type StompConfig struct {
	Address      string
	Username     string
	Password     string
	Destinations []string
}

func GetStompConfig() StompConfig {
	return StompConfig{
		Address:      viper.GetString("stomp.address"),
		Username:     viper.GetString("stomp.username"),
		Password:     viper.GetString("stomp.password"),
		Destinations: viper.GetStringSlice("stomp.destinations"),
	}
}

type WebsocketConfig struct {
	URL          string
	MaxReconnect int
}

func GetWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		URL:          viper.GetString("websocket.url"),
		MaxReconnect: viper.GetInt("websocket.maxReconnect"),
	}
}

// OTelConfig holds OpenTelemetry metrics settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	ExportInterval time.Duration
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
	}
}
