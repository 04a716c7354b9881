package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// TCP reads from a raw NMEA feed such as a receiver's network port.
type TCP struct {
	Addr string
}

func (c *TCP) Open(ctx context.Context) (io.ReadCloser, error) {
	dialer := &net.Dialer{Timeout: time.Duration(DIAL_TIMEOUT) * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", c.Addr, err)
	}
	return conn, nil
}
