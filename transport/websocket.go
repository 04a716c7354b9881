package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	SUBSCRIBE_TIMEOUT  = 5
	HEARTBEAT_TIMEOUT  = 10
	HEARTBEAT_INTERVAL = 30
)

// Subscription is sent as the first text message after connecting, for
// relays that filter the feed per client.
type Subscription struct {
	APIKey          string        `json:"APIKey" yaml:"api_key"`
	BoundingBoxes   [][][]float64 `json:"BoundingBoxes,omitempty" yaml:"bounding_boxes"`
	FiltersShipMMSI []string      `json:"FiltersShipMMSI,omitempty" yaml:"filter_mmsi"`
}

func (sub *Subscription) AddBox(box [][]float64) {
	sub.BoundingBoxes = append(sub.BoundingBoxes, box)
}

func (sub *Subscription) AddMMSI(mmsi ...string) {
	sub.FiltersShipMMSI = append(sub.FiltersShipMMSI, mmsi...)
}

// WebSocket reads NMEA relayed over a websocket, one or more sentences per
// message.
type WebSocket struct {
	URL string
	Sub *Subscription
}

func (w *WebSocket) Open(ctx context.Context) (io.ReadCloser, error) {
	hc := &http.Client{Timeout: time.Duration(DIAL_TIMEOUT) * time.Second}

	c, _, err := websocket.Dial(ctx, w.URL, &websocket.DialOptions{HTTPClient: hc})
	if err != nil {
		return nil, fmt.Errorf("could not connect to websocket: %w", err)
	}

	if w.Sub != nil {
		if err := subscribe(ctx, c, w.Sub); err != nil {
			c.Close(websocket.StatusNormalClosure, "")
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &wsReader{ctx: ctx, cancel: cancel, conn: c}
	go r.heartbeat()
	return r, nil
}

func subscribe(ctx context.Context, c *websocket.Conn, sub *Subscription) error {
	b, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(SUBSCRIBE_TIMEOUT)*time.Second)
	defer cancel()

	if err := c.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("failed to write subscription message to websocket: %w", err)
	}
	return nil
}

// wsReader turns websocket messages into a byte stream. Each message is
// terminated with a newline so a sentence never runs into the next one.
type wsReader struct {
	ctx     context.Context
	cancel  context.CancelFunc
	conn    *websocket.Conn
	pending []byte
	once    sync.Once
}

func (r *wsReader) Read(b []byte) (int, error) {
	for len(r.pending) == 0 {
		_, msg, err := r.conn.Read(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("websocket read failed: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		if msg[len(msg)-1] != '\n' {
			msg = append(msg, '\n')
		}
		r.pending = msg
	}
	n := copy(b, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *wsReader) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		err = r.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}

// heartbeat pings every HEARTBEAT_INTERVAL. A ping that is not answered
// within HEARTBEAT_TIMEOUT closes the connection, which fails the pending
// Read, so reads need no deadline on quiet feeds.
func (r *wsReader) heartbeat() {
	for {
		if !Sleep(r.ctx, time.Duration(HEARTBEAT_INTERVAL)*time.Second) {
			return
		}
		ctx, cancel := context.WithTimeout(r.ctx, time.Duration(HEARTBEAT_TIMEOUT)*time.Second)
		err := r.conn.Ping(ctx)
		cancel()
		if err != nil {
			return
		}
	}
}
