// Package vessel keeps the best known state of every tracked vessel and
// the log of risk events raised against them.
package vessel

import (
	"strings"

	"github.com/mohae/deepcopy"

	"aiswatch/ais"
	"aiswatch/geo"
)

const ID_PREFIX = "ais_"

type Vessel struct {
	ID          string       `json:"id"`
	MMSI        string       `json:"mmsi"`
	Name        string       `json:"name"`
	Type        ais.ShipType `json:"vesselType"`
	Watchlisted bool         `json:"isWatchlisted"`
	Position    *geo.Point   `json:"position"`
	SpeedKnots  float64      `json:"speedKnots"`
	CourseDeg   float64      `json:"courseDeg"`
	geo.Metrics
	LastUpdate int64 `json:"lastUpdateEpochMs"`
}

// Identity is the static data remembered per MMSI so that position-only
// reports can be labelled.
type Identity struct {
	Name string
	Type ais.ShipType
}

func IDFor(mmsi string) string {
	return ID_PREFIX + mmsi
}

func mmsiFor(id string) (string, bool) {
	if !strings.HasPrefix(id, ID_PREFIX) {
		return "", false
	}
	return strings.TrimPrefix(id, ID_PREFIX), true
}

// knownName reports whether name is a real vessel name rather than a
// placeholder.
func knownName(name string, mmsi string) bool {
	return name != "" && name != ais.PlaceholderName(mmsi)
}

func (v *Vessel) clone() Vessel {
	return deepcopy.Copy(*v).(Vessel)
}

// Clone returns copies of vs that share no memory with it.
func Clone(vs []Vessel) []Vessel {
	if vs == nil {
		return nil
	}
	out := make([]Vessel, len(vs))
	for i := range vs {
		out[i] = vs[i].clone()
	}
	return out
}
