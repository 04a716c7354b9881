package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"aiswatch/ais"
	"aiswatch/log"
	"aiswatch/transport"
)

type Config struct {
	Log       log.Config       `yaml:"log"`
	AIS       AISConfig        `yaml:"ais"`
	Transport transport.Config `yaml:"transport"`
	Reconnect bool             `yaml:"reconnect"`
	OwnShip   OwnShipConfig    `yaml:"own_ship"`
	Tracking  TrackingConfig   `yaml:"tracking"`
	Portal    Portal           `yaml:"portal"`
	Cache     CacheConfig      `yaml:"cache"`
	Swabby    Swabby           `yaml:"swabby"`
}

type AISConfig struct {
	VerifyChecksum bool       `yaml:"verify_checksum"`
	MaxLineBytes   int        `yaml:"max_line_bytes"`
	Layout         ais.Layout `yaml:"layout"`
}

// OwnShipConfig sets own position from a fixed point, a GNSS receiver, or
// both; the receiver wins once it has a fix.
type OwnShipConfig struct {
	Lat *float64          `yaml:"lat"`
	Lon *float64          `yaml:"lon"`
	GPS *transport.Config `yaml:"gps"`
}

type TrackingConfig struct {
	MinMoveMeters   float64       `yaml:"min_move_meters"`
	StaticCacheSize int           `yaml:"static_cache_size"`
	StaticCacheTTL  time.Duration `yaml:"static_cache_ttl"`
	EventCapacity   int           `yaml:"event_capacity"`
	EventWindow     time.Duration `yaml:"event_window"`
}

type CacheConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func defaultConfig() Config {
	return Config{
		Log:       log.Config{Level: "info", MaxSizeMB: 32, MaxBackups: 3, MaxAgeDays: 14},
		AIS:       AISConfig{MaxLineBytes: 1024},
		Reconnect: true,
		Tracking: TrackingConfig{
			MinMoveMeters:   10,
			StaticCacheSize: 4096,
			StaticCacheTTL:  24 * time.Hour,
			EventCapacity:   100,
			EventWindow:     time.Minute,
		},
		Portal: Portal{ListenAddr: ":8080"},
		Cache:  CacheConfig{Interval: 5 * time.Second},
		Swabby: Swabby{Enable: true, Schedule: time.Minute, Expiry: 30 * time.Minute},
	}
}

// loadConfig reads a YAML file over the defaults. An empty path returns
// the defaults, which still need a transport.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Transport.Kind == "" {
		return fmt.Errorf("transport.kind is required")
	}
	if _, err := transport.New(c.Transport); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if (c.OwnShip.Lat == nil) != (c.OwnShip.Lon == nil) {
		return fmt.Errorf("own_ship.lat and own_ship.lon must be set together")
	}
	if c.OwnShip.Lat != nil && (math.Abs(*c.OwnShip.Lat) > 90 || math.Abs(*c.OwnShip.Lon) > 180) {
		return fmt.Errorf("own_ship position %v,%v is off the globe", *c.OwnShip.Lat, *c.OwnShip.Lon)
	}
	if c.OwnShip.GPS != nil {
		if _, err := transport.New(*c.OwnShip.GPS); err != nil {
			return fmt.Errorf("own_ship.gps: %w", err)
		}
	}
	if c.AIS.MaxLineBytes < 82 {
		return fmt.Errorf("ais.max_line_bytes must be at least 82")
	}
	if c.Tracking.MinMoveMeters < 0 {
		return fmt.Errorf("tracking.min_move_meters must not be negative")
	}
	if c.Portal.ListenAddr == "" {
		return fmt.Errorf("portal.listen_addr is required")
	}
	if c.Cache.Interval <= 0 {
		return fmt.Errorf("cache.interval must be positive")
	}
	if c.Swabby.Enable && (c.Swabby.Schedule <= 0 || c.Swabby.Expiry <= 0) {
		return fmt.Errorf("swabby.schedule and swabby.expiry must be positive")
	}
	return nil
}
