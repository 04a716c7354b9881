package vessel

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"aiswatch/ais"
	"aiswatch/geo"
)

type TableConfig struct {
	// StaticCacheSize bounds the number of remembered identities.
	StaticCacheSize int
	// StaticCacheTTL drops identities not refreshed for this long.
	StaticCacheTTL time.Duration

	Now func() time.Time
}

// Table is the set of tracked vessels keyed by MMSI. All methods are safe
// for concurrent use; each one is applied atomically.
type Table struct {
	mu      sync.RWMutex
	vessels map[string]*Vessel
	order   []string
	static  *expirable.LRU[string, Identity]
	now     func() time.Time
}

func NewTable(cfg TableConfig) *Table {
	if cfg.StaticCacheSize <= 0 {
		cfg.StaticCacheSize = 4096
	}
	if cfg.StaticCacheTTL <= 0 {
		cfg.StaticCacheTTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Table{
		vessels: map[string]*Vessel{},
		static:  expirable.NewLRU[string, Identity](cfg.StaticCacheSize, nil, cfg.StaticCacheTTL),
		now:     cfg.Now,
	}
}

// Merge folds an observation into the table and returns the resulting
// vessel. own is the current own-ship position, or nil when unknown.
//
// Names and types only replace what is known when the observation carries
// a real value; positions stick until a report with a new one arrives.
func (t *Table) Merge(obs ais.Observation, own *geo.Point) Vessel {
	t.mu.Lock()
	defer t.mu.Unlock()

	cached, hasCached := t.static.Get(obs.MMSI)

	v, ok := t.vessels[obs.MMSI]
	if !ok {
		v = &Vessel{
			ID:   IDFor(obs.MMSI),
			MMSI: obs.MMSI,
			Name: ais.PlaceholderName(obs.MMSI),
		}
		t.vessels[obs.MMSI] = v
		t.order = append(t.order, obs.MMSI)
	}

	switch {
	case knownName(obs.Name, obs.MMSI):
		v.Name = obs.Name
	case hasCached:
		v.Name = cached.Name
	}

	switch {
	case obs.ShipType != ais.ShipTypeOther:
		v.Type = obs.ShipType
	case hasCached:
		v.Type = cached.Type
	}

	if obs.Position != nil {
		p := *obs.Position
		v.Position = &p
	}
	if obs.Type == ais.PositionReport {
		v.SpeedKnots = obs.SpeedKnots
		v.CourseDeg = obs.CourseDeg
	}

	v.Metrics = evaluate(v, own)
	v.LastUpdate = t.now().UnixMilli()

	if knownName(v.Name, v.MMSI) && v.Type != ais.ShipTypeOther {
		t.static.Add(v.MMSI, Identity{Name: v.Name, Type: v.Type})
	}

	return v.clone()
}

// evaluate rates v against own ship. A vessel that never reported a
// position is Safe; a positioned vessel with no own position has zero
// metrics, which rate Critical.
func evaluate(v *Vessel, own *geo.Point) geo.Metrics {
	if v.Position == nil {
		return geo.Metrics{}
	}
	if own == nil {
		return geo.Unavailable()
	}
	return geo.Assess(*own, *v.Position, v.SpeedKnots, v.CourseDeg)
}

// RecomputeAll re-rates every positioned vessel against own. The new
// metrics are committed only if keep still returns true once they are
// computed; the whole pass holds the table lock so concurrent merges are
// neither lost nor interleaved. It returns the updated vessels.
func (t *Table) RecomputeAll(own geo.Point, keep func() bool) ([]Vessel, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	type update struct {
		vessel  *Vessel
		metrics geo.Metrics
	}

	updates := make([]update, 0, len(t.vessels))
	for _, mmsi := range t.order {
		v := t.vessels[mmsi]
		if v.Position == nil {
			continue
		}
		updates = append(updates, update{vessel: v, metrics: evaluate(v, &own)})
	}

	if keep != nil && !keep() {
		return nil, false
	}

	out := make([]Vessel, 0, len(updates))
	for _, u := range updates {
		u.vessel.Metrics = u.metrics
		out = append(out, u.vessel.clone())
	}
	return out, true
}

// Snapshot copies every vessel in the order they were first seen.
func (t *Table) Snapshot() []Vessel {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Vessel, 0, len(t.order))
	for _, mmsi := range t.order {
		out = append(out, t.vessels[mmsi].clone())
	}
	return out
}

func (t *Table) Get(id string) (Vessel, bool) {
	mmsi, ok := mmsiFor(id)
	if !ok {
		return Vessel{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.vessels[mmsi]
	if !ok {
		return Vessel{}, false
	}
	return v.clone(), true
}

// Identity returns the cached static data for mmsi.
func (t *Table) Identity(mmsi string) (Identity, bool) {
	return t.static.Peek(mmsi)
}

// ToggleWatchlist flips the watchlist flag of a vessel. Metrics are left
// alone.
func (t *Table) ToggleWatchlist(id string) (Vessel, bool) {
	mmsi, ok := mmsiFor(id)
	if !ok {
		return Vessel{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.vessels[mmsi]
	if !ok {
		return Vessel{}, false
	}
	v.Watchlisted = !v.Watchlisted
	return v.clone(), true
}

// Expire removes vessels last updated before the cutoff and returns their
// MMSIs. Watchlisted vessels are kept.
func (t *Table) Expire(before time.Time) []string {
	cutoff := before.UnixMilli()

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	kept := t.order[:0]
	for _, mmsi := range t.order {
		v := t.vessels[mmsi]
		if v.LastUpdate < cutoff && !v.Watchlisted {
			delete(t.vessels, mmsi)
			removed = append(removed, mmsi)
			continue
		}
		kept = append(kept, mmsi)
	}
	t.order = kept
	return removed
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vessels)
}
