package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"aiswatch/ais"
	"aiswatch/gps"
	"aiswatch/log"
	"aiswatch/tracking"
	"aiswatch/transport"
	"aiswatch/vessel"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "config file")
	logLevel := pflag.StringP("log-level", "l", "", "log level: debug, info, warn or error")
	replay := pflag.String("replay", "", "replay a recorded NMEA file instead of the configured transport")
	pflag.Parse()

	config, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load config file: %s\n", err.Error())
		os.Exit(1)
	}
	if *logLevel != "" {
		config.Log.Level = *logLevel
	}
	if *replay != "" {
		config.Transport = transport.Config{Kind: "file", Path: *replay}
		config.Reconnect = false
	}
	if err := config.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %s\n", err.Error())
		os.Exit(1)
	}

	logger, err := log.New(config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start logging: %s\n", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("aiswatch stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, config Config, logger *log.Logger) error {
	opener, err := transport.New(config.Transport)
	if err != nil {
		return fmt.Errorf("could not create transport: %w", err)
	}

	svc := tracking.New(trackingConfig(config), opener, logger.With("component", "tracking"))
	defer svc.Close()

	if config.OwnShip.Lat != nil {
		svc.UpdateOwnPosition(*config.OwnShip.Lat, *config.OwnShip.Lon)
	}

	if err := svc.Connect(ctx); err != nil {
		if !config.Reconnect {
			return err
		}
		logger.Warn("initial connect failed, retrying in background", "err", err)
	}

	cache := NewCache(config.Cache.Interval)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return connectLoop(ctx, svc, config.Reconnect, logger)
	})
	g.Go(func() error {
		return cache.Run(ctx, svc)
	})
	g.Go(func() error {
		return config.Swabby.Cleanup(ctx, svc, logger.With("component", "swabby"))
	})
	g.Go(func() error {
		return ListenAndServe(ctx, config.Portal, NewPortal(config.Portal, svc, cache, logger), logger)
	})

	if config.OwnShip.GPS != nil {
		gpsOpener, err := transport.New(*config.OwnShip.GPS)
		if err != nil {
			return fmt.Errorf("could not create gps transport: %w", err)
		}
		reader := &gps.Reader{Opener: gpsOpener, Logger: logger.With("component", "gps")}
		g.Go(func() error {
			err := reader.Run(ctx, func(fix gps.Fix) {
				svc.UpdateOwnPosition(fix.Lat, fix.Lon)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// connectLoop keeps retrying a transport that failed to open at all. Read
// failures after a successful open are retried by the service itself.
func connectLoop(ctx context.Context, svc *tracking.Service, reconnect bool, logger *log.Logger) error {
	for attempt := 1; reconnect && !svc.IsConnected(); attempt++ {
		if !transport.Sleep(ctx, transport.Backoff(attempt)) {
			return nil
		}
		if err := svc.Connect(ctx); err != nil {
			logger.Warn("connect failed", "attempt", attempt, "err", err)
		}
	}
	<-ctx.Done()
	svc.Disconnect()
	return nil
}

func trackingConfig(config Config) tracking.Config {
	return tracking.Config{
		Framer: ais.FramerConfig{
			VerifyChecksum: config.AIS.VerifyChecksum,
			MaxLineBytes:   config.AIS.MaxLineBytes,
		},
		Layout: config.AIS.Layout,
		Table: vessel.TableConfig{
			StaticCacheSize: config.Tracking.StaticCacheSize,
			StaticCacheTTL:  config.Tracking.StaticCacheTTL,
		},
		Events: vessel.EventLogConfig{
			Capacity: config.Tracking.EventCapacity,
			Window:   config.Tracking.EventWindow,
		},
		Reconnect:     config.Reconnect,
		MinMoveMeters: config.Tracking.MinMoveMeters,
	}
}
