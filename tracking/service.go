// Package tracking runs the ingestion pipeline: it reads NMEA from a
// transport, folds every decoded observation into the vessel table, rates
// collision risk against own ship and publishes immutable snapshots.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"aiswatch/ais"
	"aiswatch/geo"
	"aiswatch/log"
	"aiswatch/transport"
	"aiswatch/vessel"
)

const (
	MIN_MOVE_METERS   = 10.0
	READ_BUFFER_BYTES = 4096
)

var ErrClosed = errors.New("tracking service closed")

type Config struct {
	Framer ais.FramerConfig
	Layout ais.Layout
	Table  vessel.TableConfig
	Events vessel.EventLogConfig

	// Reconnect reopens the transport with backoff after a read failure.
	Reconnect bool
	// MinMoveMeters is the smallest own-ship move that triggers a recompute.
	MinMoveMeters float64
	ReadBufferBytes int
}

type Stats struct {
	Accepted     uint64 `json:"accepted"`
	Discarded    uint64 `json:"discarded"`
	Decoded      uint64 `json:"decoded"`
	DecodeErrors uint64 `json:"decodeErrors"`
	Recomputes   uint64 `json:"recomputes"`
	Reconnects   uint64 `json:"reconnects"`
}

// Service owns one vessel table and the goroutines that mutate it. Merges,
// recomputes, watchlist toggles and expiry are serialised by stateMu, and
// every one of them publishes a fresh snapshot before releasing it.
type Service struct {
	cfg    Config
	opener transport.Opener
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	stateMu sync.Mutex
	framer  *ais.Framer
	table   *vessel.Table
	events  *vessel.EventLog
	decoded uint64
	failed  uint64

	ownMu           sync.RWMutex
	own             *geo.Point
	cancelRecompute context.CancelFunc
	recomputeClosed bool
	gen             atomic.Uint64
	recomputes      sync.WaitGroup
	recomputed      atomic.Uint64

	connMu     sync.Mutex
	conn       io.ReadCloser
	cancelConn context.CancelFunc
	readDone   chan struct{}
	closed     bool
	reconnects atomic.Uint64

	closeOnce sync.Once

	vessels   *Feed[[]vessel.Vessel]
	riskLog   *Feed[[]vessel.RiskEvent]
	connected *Feed[bool]
}

func New(cfg Config, opener transport.Opener, logger *log.Logger) *Service {
	if cfg.MinMoveMeters <= 0 {
		cfg.MinMoveMeters = MIN_MOVE_METERS
	}
	if cfg.ReadBufferBytes <= 0 {
		cfg.ReadBufferBytes = READ_BUFFER_BYTES
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:       cfg,
		opener:    opener,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		framer:    ais.NewFramer(cfg.Framer),
		table:     vessel.NewTable(cfg.Table),
		events:    vessel.NewEventLog(cfg.Events),
		vessels:   NewFeed(vessel.Clone),
		riskLog:   NewFeed(slices.Clone[[]vessel.RiskEvent]),
		connected: NewFeed[bool](nil),
	}
	s.vessels.Publish([]vessel.Vessel{})
	s.riskLog.Publish([]vessel.RiskEvent{})
	s.connected.Publish(false)
	return s
}

// Connect opens the transport and starts consuming it. It returns once
// the transport is open; a failure leaves the service disconnected.
// Connecting an already connected service does nothing.
func (s *Service) Connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.cancelConn != nil {
		return nil
	}
	if s.opener == nil {
		return fmt.Errorf("could not connect: no transport configured")
	}

	rc, err := s.opener.Open(ctx)
	if err != nil {
		s.connected.Publish(false)
		return fmt.Errorf("could not open transport: %w", err)
	}

	loopCtx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.conn = rc
	s.cancelConn = cancel
	s.readDone = done
	s.connected.Publish(true)
	s.logger.Info("transport connected")

	go s.run(loopCtx, rc, done)
	return nil
}

// Disconnect stops consuming and releases the transport. It waits for the
// read loop to exit and is safe to call at any time.
func (s *Service) Disconnect() {
	s.connMu.Lock()
	if s.cancelConn == nil {
		s.connMu.Unlock()
		return
	}
	s.cancelConn()
	if s.conn != nil {
		s.conn.Close()
	}
	done := s.readDone
	s.conn = nil
	s.cancelConn = nil
	s.readDone = nil
	s.connected.Publish(false)
	s.connMu.Unlock()

	<-done
	s.logger.Info("transport disconnected")
}

// Close disconnects, cancels any pending recompute and waits for it.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.connMu.Lock()
		s.closed = true
		s.connMu.Unlock()

		s.Disconnect()

		s.ownMu.Lock()
		s.recomputeClosed = true
		if s.cancelRecompute != nil {
			s.cancelRecompute()
		}
		s.ownMu.Unlock()

		s.cancel()
		s.recomputes.Wait()
	})
}

func (s *Service) run(ctx context.Context, rc io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer s.detach(done)

	for {
		err := s.consume(rc)
		rc.Close()
		if ctx.Err() != nil {
			return
		}

		if err != nil && !errors.Is(err, io.EOF) {
			s.logger.Warn("transport read failed", "err", err)
		} else {
			s.logger.Info("transport reached end of stream")
		}
		if !s.cfg.Reconnect {
			return
		}

		s.connMu.Lock()
		if ctx.Err() == nil {
			s.connected.Publish(false)
		}
		s.connMu.Unlock()

		rc = s.reopen(ctx)
		if rc == nil {
			return
		}
	}
}

// detach forgets a read loop that stopped on its own so a later Connect
// starts a new one. A loop stopped by Disconnect is no longer attached.
func (s *Service) detach(done chan struct{}) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.readDone != done {
		return
	}
	s.cancelConn()
	s.conn = nil
	s.cancelConn = nil
	s.readDone = nil
	s.connected.Publish(false)
}

// reopen retries the transport until it opens or ctx is cancelled.
func (s *Service) reopen(ctx context.Context) io.ReadCloser {
	for attempt := 0; ; attempt++ {
		if !transport.Sleep(ctx, transport.Backoff(attempt)) {
			return nil
		}

		rc, err := s.opener.Open(ctx)
		if err != nil {
			s.logger.Warn("transport reconnect failed", "attempt", attempt+1, "err", err)
			continue
		}

		s.connMu.Lock()
		if ctx.Err() != nil {
			s.connMu.Unlock()
			rc.Close()
			return nil
		}
		s.conn = rc
		s.connected.Publish(true)
		s.connMu.Unlock()

		s.reconnects.Add(1)
		s.logger.Info("transport reconnected", "attempt", attempt+1)
		return rc
	}
}

func (s *Service) consume(r io.Reader) error {
	buf := make([]byte, s.cfg.ReadBufferBytes)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.ProcessChunk(string(buf[:n]))
		}
		if err != nil {
			return err
		}
	}
}

// ProcessChunk feeds raw transport bytes through the framer and merges
// every complete sentence they finish.
func (s *Service) ProcessChunk(chunk string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	for _, line := range s.framer.Feed(chunk) {
		s.mergeLocked(line)
	}
}

// ProcessLine handles one complete line. It reports the merged vessel, or
// false when the line was discarded.
func (s *Service) ProcessLine(line string) (vessel.Vessel, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	sentence, ok := s.framer.Accept(line)
	if !ok {
		return vessel.Vessel{}, false
	}
	return s.mergeLocked(sentence)
}

func (s *Service) mergeLocked(line string) (vessel.Vessel, bool) {
	obs, err := ais.DecodeLayout(line, s.cfg.Layout)
	if err != nil {
		s.failed++
		s.logger.Debug("sentence discarded", "err", err)
		return vessel.Vessel{}, false
	}
	s.decoded++

	v := s.table.Merge(obs, s.ownPosition())
	if e, ok := s.events.Check(v); ok {
		s.logger.Info("risk event", "vessel", e.VesselID, "risk", e.Risk, "cpaNm", e.CPANm, "tcpaMinutes", e.TCPAMinutes)
		s.riskLog.Publish(s.events.Events())
	}
	s.vessels.Publish(s.table.Snapshot())
	return v, true
}

func (s *Service) ownPosition() *geo.Point {
	s.ownMu.RLock()
	defer s.ownMu.RUnlock()

	if s.own == nil {
		return nil
	}
	p := *s.own
	return &p
}

// UpdateOwnPosition records own ship's position and schedules a
// recompute of every vessel's risk in the background. Moves shorter than
// MinMoveMeters and invalid coordinates are ignored. Each call supersedes
// any recompute still pending from an earlier one. It reports whether a
// recompute was scheduled.
func (s *Service) UpdateOwnPosition(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return false
	}
	p := geo.Point{Lat: lat, Lon: lon}

	s.ownMu.Lock()
	defer s.ownMu.Unlock()

	if s.recomputeClosed {
		return false
	}
	if s.own != nil && geo.DistanceMeters(s.own.Lat, s.own.Lon, lat, lon) < s.cfg.MinMoveMeters {
		return false
	}

	s.own = &p
	gen := s.gen.Add(1)
	if s.cancelRecompute != nil {
		s.cancelRecompute()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelRecompute = cancel

	s.recomputes.Add(1)
	go s.recompute(ctx, cancel, gen, p)
	return true
}

func (s *Service) recompute(ctx context.Context, cancel context.CancelFunc, gen uint64, own geo.Point) {
	defer s.recomputes.Done()
	defer cancel()

	current := func() bool {
		return ctx.Err() == nil && s.gen.Load() == gen
	}
	if !current() {
		return
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	updated, ok := s.table.RecomputeAll(own, current)
	if !ok {
		s.logger.Debug("recompute superseded", "generation", gen)
		return
	}
	s.recomputed.Add(1)

	raised := false
	for _, v := range updated {
		if _, ok := s.events.Check(v); ok {
			raised = true
		}
	}
	if raised {
		s.riskLog.Publish(s.events.Events())
	}
	s.vessels.Publish(s.table.Snapshot())
}

// WaitRecompute blocks until every scheduled recompute has finished or
// been abandoned.
func (s *Service) WaitRecompute() {
	s.recomputes.Wait()
}

// CurrentLocation returns own ship's last recorded position.
func (s *Service) CurrentLocation() (geo.Point, bool) {
	p := s.ownPosition()
	if p == nil {
		return geo.Point{}, false
	}
	return *p, true
}

// ToggleWatchlist flips a vessel's watchlist flag without re-rating it.
func (s *Service) ToggleWatchlist(id string) (vessel.Vessel, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	v, ok := s.table.ToggleWatchlist(id)
	if !ok {
		return vessel.Vessel{}, false
	}
	s.vessels.Publish(s.table.Snapshot())
	return v, true
}

// Expire drops vessels not heard from since before and returns their
// MMSIs. Watchlisted vessels are kept.
func (s *Service) Expire(before time.Time) []string {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	removed := s.table.Expire(before)
	if len(removed) > 0 {
		s.vessels.Publish(s.table.Snapshot())
	}
	return removed
}

func (s *Service) Vessel(id string) (vessel.Vessel, bool) {
	return s.table.Get(id)
}

func (s *Service) Snapshot() []vessel.Vessel {
	return s.table.Snapshot()
}

func (s *Service) RiskEvents() []vessel.RiskEvent {
	return s.events.Events()
}

func (s *Service) IsConnected() bool {
	v, _ := s.connected.Value()
	return v
}

func (s *Service) Stats() Stats {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return Stats{
		Accepted:     s.framer.Accepted,
		Discarded:    s.framer.Discarded,
		Decoded:      s.decoded,
		DecodeErrors: s.failed,
		Recomputes:   s.recomputed.Load(),
		Reconnects:   s.reconnects.Load(),
	}
}

// Vessels publishes the vessel list after every change, in the order
// vessels were first seen.
func (s *Service) Vessels() *Feed[[]vessel.Vessel] {
	return s.vessels
}

// Events publishes the risk event log, newest first.
func (s *Service) Events() *Feed[[]vessel.RiskEvent] {
	return s.riskLog
}

func (s *Service) Connected() *Feed[bool] {
	return s.connected
}
