package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bbailey1024/geohash"

	"aiswatch/vessel"
)

const (
	LATMAX = 90.0
	LATMIN = -90.0
	LNGMAX = 180.0
	LNGMIN = -180.0
)

type snapshotter interface {
	Snapshot() []vessel.Vessel
}

// Cache holds read-side indexes rebuilt from vessel snapshots on a timer,
// so map and search queries never touch the live table.
type Cache struct {
	Interval time.Duration
	Geo      *Geocache
	Search   *Searchcache
}

type Searchcache struct {
	mu   sync.RWMutex
	list []SearchFields
}

type SearchFields struct {
	ID     string    `json:"id"`
	MMSI   string    `json:"mmsi"`
	Name   string    `json:"name"`
	LatLon []float64 `json:"latlon"`
}

// Geocache keeps positioned vessels sorted by integer geohash. Geohash
// order is monotonic in both latitude and longitude, so every vessel in a
// box hashes between the box's south-west and north-east corners.
type Geocache struct {
	mu         sync.RWMutex
	list       []GeoVessel
	lastUpdate int64
}

type GeoVessel struct {
	Geohash uint64
	Vessel  vessel.Vessel
}

func NewCache(interval time.Duration) *Cache {
	return &Cache{
		Interval: interval,
		Geo:      &Geocache{},
		Search:   &Searchcache{list: []SearchFields{}},
	}
}

func (c *Cache) Run(ctx context.Context, s snapshotter) error {
	c.Generate(s.Snapshot(), time.Now())

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			c.Generate(s.Snapshot(), now)
		}
	}
}

func (c *Cache) Generate(vs []vessel.Vessel, now time.Time) {
	c.Geo.Generate(vs, now)
	c.Search.Generate(vs)
}

func (sc *Searchcache) Generate(vs []vessel.Vessel) {
	searchList := make([]SearchFields, 0, len(vs))
	for _, v := range vs {
		f := SearchFields{ID: v.ID, MMSI: v.MMSI, Name: v.Name}
		if v.Position != nil {
			f.LatLon = []float64{v.Position.Lat, v.Position.Lon}
		}
		searchList = append(searchList, f)
	}

	sc.mu.Lock()
	sc.list = searchList
	sc.mu.Unlock()
}

func (sc *Searchcache) List() []SearchFields {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.list
}

// Find returns entries whose name or MMSI contains q, ignoring case.
func (sc *Searchcache) Find(q string) []SearchFields {
	q = strings.ToUpper(strings.TrimSpace(q))

	sc.mu.RLock()
	defer sc.mu.RUnlock()

	out := []SearchFields{}
	for _, f := range sc.list {
		if strings.Contains(strings.ToUpper(f.Name), q) || strings.Contains(f.MMSI, q) {
			out = append(out, f)
		}
	}
	return out
}

func (gc *Geocache) Generate(vs []vessel.Vessel, now time.Time) {
	geoSorted := make([]GeoVessel, 0, len(vs))
	for _, v := range vs {
		if v.Position == nil {
			continue
		}
		geoSorted = append(geoSorted, GeoVessel{
			Geohash: geohash.EncodeInt(v.Position.Lat, v.Position.Lon),
			Vessel:  v,
		})
	}
	slices.SortFunc(geoSorted, func(a, b GeoVessel) int {
		switch {
		case a.Geohash < b.Geohash:
			return -1
		case a.Geohash > b.Geohash:
			return 1
		default:
			return 0
		}
	})

	gc.mu.Lock()
	gc.list = geoSorted
	gc.lastUpdate = now.Unix()
	gc.mu.Unlock()
}

func (gc *Geocache) LastUpdate() int64 {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return gc.lastUpdate
}

func (gc *Geocache) Len() int {
	gc.mu.RLock()
	defer gc.mu.RUnlock()
	return len(gc.list)
}

// InBox returns the vessels inside bbox, given as [[swLat, swLng],
// [neLat, neLng]]. A box whose west edge is east of its east edge spans
// the antimeridian.
func (gc *Geocache) InBox(bbox [2][2]float64) ([]vessel.Vessel, error) {
	sw, ne := bbox[0], bbox[1]
	if sw[0] < LATMIN || ne[0] > LATMAX || sw[0] > ne[0] {
		return nil, fmt.Errorf("invalid latitude range %v to %v", sw[0], ne[0])
	}
	if sw[1] < LNGMIN || sw[1] > LNGMAX || ne[1] < LNGMIN || ne[1] > LNGMAX {
		return nil, fmt.Errorf("invalid longitude range %v to %v", sw[1], ne[1])
	}

	gc.mu.RLock()
	defer gc.mu.RUnlock()

	if sw[1] > ne[1] {
		west := gc.search([2][2]float64{sw, {ne[0], LNGMAX}})
		east := gc.search([2][2]float64{{sw[0], LNGMIN}, ne})
		return append(west, east...), nil
	}
	return gc.search(bbox), nil
}

func (gc *Geocache) search(bbox [2][2]float64) []vessel.Vessel {
	begin, end := gc.binarySearch(bbox)

	out := []vessel.Vessel{}
	for _, g := range gc.list[begin:end] {
		p := g.Vessel.Position
		if p.Lat >= bbox[0][0] && p.Lat <= bbox[1][0] && p.Lon >= bbox[0][1] && p.Lon <= bbox[1][1] {
			out = append(out, g.Vessel)
		}
	}
	return out
}

// binarySearch bounds the slice of list whose geohashes fall between the
// box corners.
func (gc *Geocache) binarySearch(bbox [2][2]float64) (int, int) {
	bboxHashSW := geohash.EncodeInt(bbox[0][0], bbox[0][1])
	bboxHashNE := geohash.EncodeInt(bbox[1][0], bbox[1][1])

	cmp := func(g GeoVessel, h uint64) int {
		switch {
		case g.Geohash < h:
			return -1
		case g.Geohash > h:
			return 1
		default:
			return 0
		}
	}
	begin, _ := slices.BinarySearchFunc(gc.list, bboxHashSW, cmp)
	end, found := slices.BinarySearchFunc(gc.list, bboxHashNE, cmp)
	for found && end < len(gc.list) && gc.list[end].Geohash == bboxHashNE {
		end++
	}
	return begin, end
}
