package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiswatch/ais"
	"aiswatch/transport"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aiswatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeTempConfig(t, "transport:\n  kind: tcp\n  addr: 'localhost:10110'\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, "tcp", cfg.Transport.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.AIS.MaxLineBytes)
	assert.False(t, cfg.AIS.VerifyChecksum)
	assert.Equal(t, ais.LayoutPacked, cfg.AIS.Layout)
	assert.True(t, cfg.Reconnect)
	assert.Equal(t, 10.0, cfg.Tracking.MinMoveMeters)
	assert.Equal(t, 24*time.Hour, cfg.Tracking.StaticCacheTTL)
	assert.Equal(t, 100, cfg.Tracking.EventCapacity)
	assert.Equal(t, time.Minute, cfg.Tracking.EventWindow)
	assert.Equal(t, ":8080", cfg.Portal.ListenAddr)
	assert.Equal(t, 30*time.Minute, cfg.Swabby.Expiry)
	assert.Nil(t, cfg.OwnShip.Lat)
}

func TestLoadConfigFull(t *testing.T) {
	cfg, err := loadConfig(writeTempConfig(t, `
log:
  level: debug
  file: /var/log/aiswatch.log
ais:
  verify_checksum: true
  layout: itu
transport:
  kind: websocket
  url: wss://relay.example/ais
  subscription:
    api_key: secret
    bounding_boxes: [[[50, 3], [53, 6]]]
reconnect: false
own_ship:
  lat: 51.9
  lon: 4.5
  gps:
    kind: serial
    device: /dev/ttyACM0
    baud: 4800
tracking:
  static_cache_ttl: 2h
swabby:
  enable: false
`))
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.AIS.VerifyChecksum)
	assert.Equal(t, ais.LayoutITU, cfg.AIS.Layout)
	require.NotNil(t, cfg.Transport.Subscription)
	assert.Equal(t, "secret", cfg.Transport.Subscription.APIKey)
	assert.Equal(t, [][][]float64{{{50, 3}, {53, 6}}}, cfg.Transport.Subscription.BoundingBoxes)
	assert.False(t, cfg.Reconnect)
	require.NotNil(t, cfg.OwnShip.Lat)
	assert.Equal(t, 51.9, *cfg.OwnShip.Lat)
	require.NotNil(t, cfg.OwnShip.GPS)
	assert.Equal(t, 4800, cfg.OwnShip.GPS.Baud)
	assert.Equal(t, 2*time.Hour, cfg.Tracking.StaticCacheTTL)
	assert.Equal(t, 4096, cfg.Tracking.StaticCacheSize)
	assert.False(t, cfg.Swabby.Enable)
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.EqualError(t, cfg.validate(), "transport.kind is required")
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := loadConfig(writeTempConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "could not read config")

	_, err = loadConfig(writeTempConfig(t, "transport: [\n"))
	assert.ErrorContains(t, err, "could not parse config")

	_, err = loadConfig(writeTempConfig(t, "transport:\n  kind: tcp\n  port: 10110\n"))
	assert.ErrorContains(t, err, "field port not found")

	_, err = loadConfig(writeTempConfig(t, "ais:\n  layout: nmea\n"))
	assert.ErrorContains(t, err, `unknown layout "nmea"`)
}

func TestValidate(t *testing.T) {
	lat, lon, badLat := 51.9, 4.5, 95.0
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown transport", func(c *Config) { c.Transport.Kind = "smoke" }, `transport: unknown transport kind "smoke"`},
		{"tcp without addr", func(c *Config) { c.Transport.Addr = "" }, "transport: tcp transport requires an addr"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, `log: invalid log level "loud"`},
		{"lat without lon", func(c *Config) { c.OwnShip.Lat = &lat }, "own_ship.lat and own_ship.lon must be set together"},
		{"off the globe", func(c *Config) { c.OwnShip.Lat, c.OwnShip.Lon = &badLat, &lon }, "own_ship position 95,4.5 is off the globe"},
		{"gps transport", func(c *Config) { c.OwnShip.GPS = &transport.Config{Kind: "serial"} }, "own_ship.gps: serial transport requires a device"},
		{"tiny lines", func(c *Config) { c.AIS.MaxLineBytes = 10 }, "ais.max_line_bytes must be at least 82"},
		{"negative move", func(c *Config) { c.Tracking.MinMoveMeters = -1 }, "tracking.min_move_meters must not be negative"},
		{"no listen addr", func(c *Config) { c.Portal.ListenAddr = "" }, "portal.listen_addr is required"},
		{"no cache interval", func(c *Config) { c.Cache.Interval = 0 }, "cache.interval must be positive"},
		{"swabby schedule", func(c *Config) { c.Swabby.Schedule = 0 }, "swabby.schedule and swabby.expiry must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Transport.Kind = "tcp"
			cfg.Transport.Addr = "localhost:10110"
			tt.modify(&cfg)
			assert.EqualError(t, cfg.validate(), tt.want)
		})
	}
}
