package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"aiswatch/log"
	"aiswatch/transport"
)

// Reader turns a GNSS receiver's sentence stream into position fixes.
type Reader struct {
	Opener transport.Opener
	Logger *log.Logger
	Now    func() time.Time
}

// Run reads fixes until ctx is cancelled, reopening the receiver with
// backoff whenever the stream fails. onFix is called from Run's goroutine.
func (r *Reader) Run(ctx context.Context, onFix func(Fix)) error {
	if r.Opener == nil {
		return fmt.Errorf("could not start gps reader: no transport configured")
	}
	now := r.Now
	if now == nil {
		now = time.Now
	}

	for attempt := 0; ; {
		if !transport.Sleep(ctx, transport.Backoff(attempt)) {
			return ctx.Err()
		}

		rc, err := r.Opener.Open(ctx)
		if err != nil {
			r.Logger.Warn("gps open failed", "attempt", attempt+1, "err", err)
			attempt++
			continue
		}

		stop := context.AfterFunc(ctx, func() { rc.Close() })
		fixes, err := r.read(rc, now, onFix)
		stop()
		rc.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Logger.Warn("gps stream ended", "fixes", fixes, "err", err)
		if fixes > 0 {
			attempt = 0
		}
		attempt++
	}
}

func (r *Reader) read(rc io.Reader, now func() time.Time, onFix func(Fix)) (int, error) {
	fixes := 0
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		s, err := ParseSentence(sc.Text())
		if err != nil {
			if !errors.Is(err, ErrNotNMEA) {
				r.Logger.Debug("gps sentence discarded", "err", err)
			}
			continue
		}
		if fix, ok := FixFrom(s, now()); ok {
			fixes++
			onFix(fix)
		}
	}
	return fixes, sc.Err()
}
