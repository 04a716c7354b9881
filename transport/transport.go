// Package transport opens the byte streams that carry NMEA sentences.
package transport

import (
	"context"
	"fmt"
	"io"
	"time"
)

const (
	DIAL_TIMEOUT       = 5
	BACKOFF_MULTIPLIER = 5
	BACKOFF_MAX        = 30
)

// Opener opens a fresh stream each time it is called. Closing the
// returned reader ends any blocked Read.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

type OpenerFunc func(ctx context.Context) (io.ReadCloser, error)

func (f OpenerFunc) Open(ctx context.Context) (io.ReadCloser, error) {
	return f(ctx)
}

type Config struct {
	// Kind is one of serial, tcp, websocket or file.
	Kind string `yaml:"kind"`

	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`

	Addr string `yaml:"addr"`

	URL          string        `yaml:"url"`
	Subscription *Subscription `yaml:"subscription"`

	Path string `yaml:"path"`
	// LineInterval paces file replay. Zero replays as fast as possible.
	LineInterval time.Duration `yaml:"line_interval"`
}

func New(cfg Config) (Opener, error) {
	switch cfg.Kind {
	case "serial":
		if cfg.Device == "" {
			return nil, fmt.Errorf("serial transport requires a device")
		}
		return &Serial{Device: cfg.Device, Baud: cfg.Baud}, nil
	case "tcp":
		if cfg.Addr == "" {
			return nil, fmt.Errorf("tcp transport requires an addr")
		}
		return &TCP{Addr: cfg.Addr}, nil
	case "websocket":
		if cfg.URL == "" {
			return nil, fmt.Errorf("websocket transport requires a url")
		}
		return &WebSocket{URL: cfg.URL, Sub: cfg.Subscription}, nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file transport requires a path")
		}
		return &File{Path: cfg.Path, LineInterval: cfg.LineInterval}, nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// Backoff is the wait before reconnect attempt n, counting from zero.
func Backoff(n int) time.Duration {
	secs := BACKOFF_MULTIPLIER * n
	if secs > BACKOFF_MAX {
		secs = BACKOFF_MAX
	}
	return time.Duration(secs) * time.Second
}

// Sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
