package main

import (
	"context"
	"time"

	"aiswatch/log"
)

// Swabby periodically drops vessels that have gone quiet. Watchlisted
// vessels are never dropped.
type Swabby struct {
	Enable   bool          `yaml:"enable"`
	Schedule time.Duration `yaml:"schedule"`
	Expiry   time.Duration `yaml:"expiry"`
}

type expirer interface {
	Expire(before time.Time) []string
}

func (s Swabby) Cleanup(ctx context.Context, e expirer, logger *log.Logger) error {
	if !s.Enable || s.Expiry <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.Schedule)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.derelictVessels(now, e, logger)
		}
	}
}

func (s Swabby) derelictVessels(now time.Time, e expirer, logger *log.Logger) []string {
	removed := e.Expire(now.Add(-s.Expiry))
	if len(removed) > 0 {
		logger.Info("expired derelict vessels", "count", len(removed), "mmsi", removed)
	}
	return removed
}
