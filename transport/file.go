package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// File replays a recorded NMEA log. With a LineInterval each line is
// released on its own after that delay.
type File struct {
	Path         string
	LineInterval time.Duration
}

func (f *File) Open(ctx context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open replay file: %w", err)
	}
	if f.LineInterval <= 0 {
		return fh, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	return &pacedReader{
		ctx:      ctx,
		cancel:   cancel,
		file:     fh,
		lines:    bufio.NewReader(fh),
		interval: f.LineInterval,
	}, nil
}

type pacedReader struct {
	ctx      context.Context
	cancel   context.CancelFunc
	file     *os.File
	lines    *bufio.Reader
	interval time.Duration
	pending  []byte
}

func (p *pacedReader) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		if !Sleep(p.ctx, p.interval) {
			return 0, io.EOF
		}
		line, err := p.lines.ReadBytes('\n')
		if len(line) == 0 {
			return 0, err
		}
		p.pending = line
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *pacedReader) Close() error {
	p.cancel()
	return p.file.Close()
}
