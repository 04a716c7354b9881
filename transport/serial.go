package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/term"
)

const DEFAULT_BAUD = 38400

// Serial reads from an AIS receiver on a serial port. Baud 0 uses the
// AIS default of 38400.
type Serial struct {
	Device string
	Baud   int
}

func (s *Serial) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := term.Open(s.Device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", s.Device, err)
	}

	baud := s.Baud
	if baud == 0 {
		baud = DEFAULT_BAUD
	}
	if err := t.SetSpeed(baud); err != nil {
		t.Close()
		return nil, fmt.Errorf("could not set speed %d on %s: %w", baud, s.Device, err)
	}
	return t, nil
}
