package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"aiswatch/geo"
	"aiswatch/log"
	"aiswatch/tracking"
	"aiswatch/vessel"
)

const (
	SHUTDOWN_TIMEOUT = 10
	STREAM_BUFFER    = 4
	MAX_BODY_BYTES   = 1 << 12
)

type Portal struct {
	ListenAddr string `yaml:"listen_addr"`
	HtmlDir    string `yaml:"html_dir"`
	// OriginPatterns lists extra hosts allowed to open /stream.
	OriginPatterns []string `yaml:"origin_patterns"`
}

type OwnPosition struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type Status struct {
	Connected   bool           `json:"connected"`
	Vessels     int            `json:"vessels"`
	Events      int            `json:"events"`
	OwnPosition *geo.Point     `json:"ownPosition"`
	CacheUpdate int64          `json:"cacheUpdateEpoch"`
	Stats       tracking.Stats `json:"stats"`
	UptimeSec   int64          `json:"uptimeSec"`
}

// StreamMessage is one frame on /stream. Exactly one of the payload fields
// is set, named by Type.
type StreamMessage struct {
	Type      string             `json:"type"`
	Vessels   []vessel.Vessel    `json:"vessels,omitempty"`
	Events    []vessel.RiskEvent `json:"events,omitempty"`
	Connected *bool              `json:"connected,omitempty"`
}

func NewPortal(p Portal, svc *tracking.Service, cache *Cache, logger *log.Logger) http.Handler {
	start := time.Now()
	mux := http.NewServeMux()

	if p.HtmlDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(p.HtmlDir)))
	}

	mux.HandleFunc("GET /vessels", func(w http.ResponseWriter, r *http.Request) {
		vs, _ := svc.Vessels().Value()
		writeJSON(w, http.StatusOK, vs, logger)
	})
	mux.HandleFunc("GET /vessels/{id}", func(w http.ResponseWriter, r *http.Request) {
		vesselByID(w, r, svc, logger)
	})
	mux.HandleFunc("GET /vessels/{sw}/{ne}", func(w http.ResponseWriter, r *http.Request) {
		vesselsBbox(w, r, cache, logger)
	})
	mux.HandleFunc("GET /searchFields", func(w http.ResponseWriter, r *http.Request) {
		searchFields(w, r, cache, logger)
	})
	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		es, _ := svc.Events().Value()
		writeJSON(w, http.StatusOK, es, logger)
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		status(w, r, svc, cache, start, logger)
	})
	mux.HandleFunc("POST /ownPosition", func(w http.ResponseWriter, r *http.Request) {
		ownPosition(w, r, svc, logger)
	})
	mux.HandleFunc("POST /watchlist/{id}", func(w http.ResponseWriter, r *http.Request) {
		watchlist(w, r, svc, logger)
	})
	mux.HandleFunc("GET /stream", func(w http.ResponseWriter, r *http.Request) {
		stream(w, r, svc, p.OriginPatterns, logger)
	})

	return mux
}

// ListenAndServe serves h until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, p Portal, h http.Handler, logger *log.Logger) error {
	server := &http.Server{Addr: p.ListenAddr, Handler: h}

	errc := make(chan error, 1)
	go func() {
		logger.Info("portal listening", "addr", p.ListenAddr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server failed to shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any, logger *log.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("portal response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string, logger *log.Logger) {
	writeJSON(w, code, map[string]string{"error": msg}, logger)
}

func vesselByID(w http.ResponseWriter, r *http.Request, svc *tracking.Service, logger *log.Logger) {
	v, ok := svc.Vessel(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "vessel not found", logger)
		return
	}
	writeJSON(w, http.StatusOK, v, logger)
}

func vesselsBbox(w http.ResponseWriter, r *http.Request, cache *Cache, logger *log.Logger) {
	sw := strings.Split(r.PathValue("sw"), ",")
	ne := strings.Split(r.PathValue("ne"), ",")
	if len(sw) != 2 || len(ne) != 2 {
		writeError(w, http.StatusBadRequest, "corners must be lat,lng", logger)
		return
	}

	bbox, err := generateBbox(sw, ne)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), logger)
		return
	}

	res, err := cache.Geo.InBox(bbox)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), logger)
		return
	}
	writeJSON(w, http.StatusOK, res, logger)
}

func searchFields(w http.ResponseWriter, r *http.Request, cache *Cache, logger *log.Logger) {
	if q := r.URL.Query().Get("q"); q != "" {
		writeJSON(w, http.StatusOK, cache.Search.Find(q), logger)
		return
	}
	writeJSON(w, http.StatusOK, cache.Search.List(), logger)
}

func status(w http.ResponseWriter, _ *http.Request, svc *tracking.Service, cache *Cache, start time.Time, logger *log.Logger) {
	st := Status{
		Connected:   svc.IsConnected(),
		Vessels:     len(svc.Snapshot()),
		Events:      len(svc.RiskEvents()),
		CacheUpdate: cache.Geo.LastUpdate(),
		Stats:       svc.Stats(),
		UptimeSec:   int64(time.Since(start).Seconds()),
	}
	if p, ok := svc.CurrentLocation(); ok {
		st.OwnPosition = &p
	}
	writeJSON(w, http.StatusOK, st, logger)
}

func ownPosition(w http.ResponseWriter, r *http.Request, svc *tracking.Service, logger *log.Logger) {
	var req OwnPosition
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MAX_BODY_BYTES))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "could not decode body: "+err.Error(), logger)
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required", logger)
		return
	}
	if *req.Lat < LATMIN || *req.Lat > LATMAX || *req.Lon < LNGMIN || *req.Lon > LNGMAX {
		writeError(w, http.StatusBadRequest, "position is off the globe", logger)
		return
	}

	scheduled := svc.UpdateOwnPosition(*req.Lat, *req.Lon)
	writeJSON(w, http.StatusAccepted, map[string]bool{"recompute": scheduled}, logger)
}

func watchlist(w http.ResponseWriter, r *http.Request, svc *tracking.Service, logger *log.Logger) {
	v, ok := svc.ToggleWatchlist(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "vessel not found", logger)
		return
	}
	writeJSON(w, http.StatusOK, v, logger)
}

// stream pushes vessel, event and connection updates to a websocket client
// until it goes away.
func stream(w http.ResponseWriter, r *http.Request, svc *tracking.Service, origins []string, logger *log.Logger) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		logger.Warn("stream accept failed", "err", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	ctx := c.CloseRead(r.Context())

	vID, vessels := svc.Vessels().Subscribe(STREAM_BUFFER)
	defer svc.Vessels().Unsubscribe(vID)
	eID, events := svc.Events().Subscribe(STREAM_BUFFER)
	defer svc.Events().Unsubscribe(eID)
	cID, connected := svc.Connected().Subscribe(STREAM_BUFFER)
	defer svc.Connected().Unsubscribe(cID)

	for {
		var msg StreamMessage
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case vs := <-vessels:
			msg = StreamMessage{Type: "vessels", Vessels: vs}
		case es := <-events:
			msg = StreamMessage{Type: "events", Events: es}
		case up := <-connected:
			msg = StreamMessage{Type: "connected", Connected: &up}
		}

		if err := wsjson.Write(ctx, c, msg); err != nil {
			logger.Debug("stream write failed", "err", err)
			return
		}
	}
}

func generateBbox(sw []string, ne []string) ([2][2]float64, error) {
	bbox := [2][2]float64{}
	var err error

	bbox[0][0], err = strconv.ParseFloat(sw[0], 64)
	if err != nil {
		return bbox, err
	}

	bbox[0][1], err = strconv.ParseFloat(sw[1], 64)
	if err != nil {
		return bbox, err
	}

	bbox[1][0], err = strconv.ParseFloat(ne[0], 64)
	if err != nil {
		return bbox, err
	}

	bbox[1][1], err = strconv.ParseFloat(ne[1], 64)
	if err != nil {
		return bbox, err
	}

	return bbox, nil
}
