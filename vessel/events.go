package vessel

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"aiswatch/geo"
)

const (
	EVENT_CAPACITY = 100
	EVENT_WINDOW   = 60 * time.Second
)

type RiskEvent struct {
	ID          string        `json:"id"`
	Timestamp   int64         `json:"timestampMs"`
	VesselID    string        `json:"vesselId"`
	VesselName  string        `json:"vesselName"`
	CPANm       float64       `json:"cpaNm"`
	TCPAMinutes int           `json:"tcpaMinutes"`
	Risk        geo.RiskLevel `json:"riskLevel"`
	Description string        `json:"description"`
}

type EventLogConfig struct {
	// Capacity is the number of events kept, newest first.
	Capacity int
	// Window suppresses repeat events for a vessel.
	Window time.Duration

	Now func() time.Time
}

// EventLog records transitions into Warning or Critical, at most one per
// vessel per window.
type EventLog struct {
	mu     sync.Mutex
	cfg    EventLogConfig
	events []RiskEvent
}

func NewEventLog(cfg EventLogConfig) *EventLog {
	if cfg.Capacity <= 0 {
		cfg.Capacity = EVENT_CAPACITY
	}
	if cfg.Window <= 0 {
		cfg.Window = EVENT_WINDOW
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EventLog{cfg: cfg}
}

// Check records an event for v if it is at risk and nothing was recorded
// for it within the window.
func (l *EventLog) Check(v Vessel) (RiskEvent, bool) {
	if !v.Risk.Alerting() {
		return RiskEvent{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Now().UnixMilli()
	window := l.cfg.Window.Milliseconds()
	// The log is small, so scan all of it: the clock may have stepped back
	// and left a recent event behind an older one.
	for _, e := range l.events {
		if e.VesselID == v.ID && now-e.Timestamp < window {
			return RiskEvent{}, false
		}
	}

	e := RiskEvent{
		ID:          uuid.NewString(),
		Timestamp:   now,
		VesselID:    v.ID,
		VesselName:  v.Name,
		CPANm:       v.CPANm,
		TCPAMinutes: v.TCPAMinutes,
		Risk:        v.Risk,
		Description: describe(v.Risk, v.CPANm, v.TCPAMinutes),
	}

	l.events = append([]RiskEvent{e}, l.events...)
	if len(l.events) > l.cfg.Capacity {
		l.events = l.events[:l.cfg.Capacity]
	}
	return e, true
}

// Events returns a copy of the log, newest first.
func (l *EventLog) Events() []RiskEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]RiskEvent, len(l.events))
	copy(out, l.events)
	return out
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func describe(risk geo.RiskLevel, cpaNm float64, tcpaMinutes int) string {
	if tcpaMinutes == geo.TCPANever {
		return fmt.Sprintf("%s collision risk: CPA %.2f nm, not closing", risk, cpaNm)
	}
	return fmt.Sprintf("%s collision risk: CPA %.2f nm in %d min", risk, cpaNm, tcpaMinutes)
}
