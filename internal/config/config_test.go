package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"telemetry": { "transport": "stomp", "carId": "car-9" },
		"map": { "zoom": 16 }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "stomp", viper.GetString("telemetry.transport"))
	assert.Equal(t, "car-9", viper.GetString("telemetry.carId"))
	assert.Equal(t, 16.0, viper.GetFloat64("map.zoom"))
	assert.Equal(t, 60.0, viper.GetFloat64("map.tilt"), "untouched keys keep defaults")
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, 1200*time.Millisecond, viper.GetDuration("simulation.step"))
	assert.Equal(t, "redis", viper.GetString("telemetry.transport"))
	assert.Equal(t, "vehicles/*", viper.GetString("telemetry.vehicleTopic"))
	assert.Equal(t, "alerts/*", viper.GetString("telemetry.alertTopic"))
	assert.Equal(t, "", viper.GetString("telemetry.carId"))
	assert.Equal(t, 256, viper.GetInt("telemetry.queueSize"))
	assert.Equal(t, 64, viper.GetInt("telemetry.fleetSize"))
	assert.Equal(t, "localhost:6379", viper.GetString("redis.address"))
	assert.Equal(t, 0, viper.GetInt("redis.db"))
	assert.Equal(t, "localhost:61613", viper.GetString("stomp.address"))
	assert.Equal(t, []string{"vehicles/stream", "alerts/stream"}, viper.GetStringSlice("stomp.destinations"))
	assert.Equal(t, "ws://localhost:8080/telemetry", viper.GetString("websocket.url"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "arrowdash", viper.GetString("otel.serviceName"))
	assert.Equal(t, "30s", viper.GetString("otel.exportInterval"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrConfigNotFound)

	assert.Equal(t, "info", viper.GetString("logLevel"), "defaults apply without a file")
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(writeConfig(t, `{"logLevel": `))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfigNotFound)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("ARROWDASH_TELEMETRY_TRANSPORT", "websocket")

	require.NoError(t, Load(writeConfig(t, `{}`)))
	assert.Equal(t, "websocket", GetTelemetryConfig().Transport)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetDuration(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testDuration", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetDuration("testDuration"))
}

func TestGetMapConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	mc := GetMapConfig()
	assert.Equal(t, 280, mc.PanelWidthDP)
	assert.Equal(t, 1.0, mc.Density)
	assert.Equal(t, 17.5, mc.Zoom)
	assert.Equal(t, 60.0, mc.Tilt)
	assert.Equal(t, 600*time.Millisecond, mc.Animation)
	assert.Equal(t, 0.3, mc.IconSize)
	assert.Equal(t, []string{"road", "road-primary", "road_major", "highway-primary", "trunk"}, mc.RoadLayers)
	assert.Equal(t, "#FFD27A", mc.RoadColor)
	assert.Equal(t, 2.5, mc.RoadWidth)
	assert.Equal(t, true, mc.FollowCamera)
}

func TestGetMapConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"map": { "density": 2.75, "animation": "1s", "roadLayers": ["motorway"], "followCamera": false }
	}`)))

	mc := GetMapConfig()
	assert.Equal(t, 2.75, mc.Density)
	assert.Equal(t, time.Second, mc.Animation)
	assert.Equal(t, []string{"motorway"}, mc.RoadLayers)
	assert.Equal(t, false, mc.FollowCamera)
}

func TestGetTransportConfigs(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"redis": { "address": "10.0.0.5:6380", "password": "s3cret", "db": 2 },
		"stomp": { "username": "dash", "destinations": ["/queue/cars"] },
		"websocket": { "url": "wss://fleet.example/ws" }
	}`)))

	assert.Equal(t, RedisConfig{Address: "10.0.0.5:6380", Password: "s3cret", DB: 2}, GetRedisConfig())

	sc := GetStompConfig()
	assert.Equal(t, "localhost:61613", sc.Address)
	assert.Equal(t, "dash", sc.Username)
	assert.Equal(t, []string{"/queue/cars"}, sc.Destinations)

	assert.Equal(t, WebsocketConfig{URL: "wss://fleet.example/ws", MaxReconnect: 10}, GetWebsocketConfig())
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": { "enabled": true, "serviceName": "dash-7", "exportInterval": "5s" }
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "dash-7", oc.ServiceName)
	assert.Equal(t, 5*time.Second, oc.ExportInterval)
}
