// Package gps provides own-ship position from an NMEA 0183 GNSS receiver.
package gps

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotNMEA  = errors.New("nmea: missing '$'")
	ErrChecksum = errors.New("nmea: checksum mismatch")
)

type Sentence struct {
	// Type is the sentence formatter without the talker, e.g. RMC.
	Type string
	// Fields is the comma-split payload, excluding '$' and the checksum.
	Fields []string
}

func ParseSentence(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Sentence{}, ErrNotNMEA
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return Sentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return Sentence{}, fmt.Errorf("nmea: short checksum")
	}
	want, err := hex.DecodeString(ck[:2])
	if err != nil || len(want) != 1 {
		return Sentence{}, fmt.Errorf("nmea: bad checksum %q", ck[:2])
	}
	got := byte(0)
	for i := 0; i < len(payload); i++ {
		got ^= payload[i]
	}
	if got != want[0] {
		return Sentence{}, ErrChecksum
	}

	parts := strings.Split(payload, ",")
	if len(parts[0]) < 3 {
		return Sentence{}, fmt.Errorf("nmea: short type %q", parts[0])
	}
	// GPRMC, GNRMC and friends all normalise to RMC.
	t := parts[0]
	if len(t) > 3 {
		t = t[len(t)-3:]
	}
	return Sentence{Type: strings.ToUpper(t), Fields: parts}, nil
}

type Fix struct {
	Lat        float64
	Lon        float64
	SpeedKnots float64
	CourseDeg  float64
	// Quality and Satellites are only reported by GGA.
	Quality    int
	Satellites int
	Time       time.Time
}

// FixFrom extracts a position fix from an RMC or GGA sentence. Void RMC
// and zero-quality GGA sentences carry no fix.
func FixFrom(s Sentence, now time.Time) (Fix, bool) {
	switch s.Type {
	case "RMC":
		return fixFromRMC(s.Fields, now)
	case "GGA":
		return fixFromGGA(s.Fields, now)
	default:
		return Fix{}, false
	}
}

// RMC: 1 time, 2 status, 3-4 latitude, 5-6 longitude, 7 speed (knots),
// 8 course, 9 date.
func fixFromRMC(f []string, now time.Time) (Fix, bool) {
	if len(f) < 10 || strings.TrimSpace(f[2]) != "A" {
		return Fix{}, false
	}
	lat, latOK := parseLatLon(f[3], f[4])
	lon, lonOK := parseLatLon(f[5], f[6])
	if !latOK || !lonOK {
		return Fix{}, false
	}

	fix := Fix{Lat: lat, Lon: lon, Time: now}
	if v, ok := parseFloat(f[7]); ok {
		fix.SpeedKnots = v
	}
	if v, ok := parseFloat(f[8]); ok {
		fix.CourseDeg = math.Mod(v+360.0, 360.0)
	}
	return fix, true
}

// GGA: 1 time, 2-3 latitude, 4-5 longitude, 6 quality, 7 satellites,
// 8 HDOP, 9 altitude.
func fixFromGGA(f []string, now time.Time) (Fix, bool) {
	if len(f) < 10 {
		return Fix{}, false
	}
	q, err := strconv.Atoi(strings.TrimSpace(f[6]))
	if err != nil || q == 0 {
		return Fix{}, false
	}
	lat, latOK := parseLatLon(f[2], f[3])
	lon, lonOK := parseLatLon(f[4], f[5])
	if !latOK || !lonOK {
		return Fix{}, false
	}

	fix := Fix{Lat: lat, Lon: lon, Quality: q, Time: now}
	if sats, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		fix.Satellites = sats
	}
	return fix, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseLatLon parses ddmm.mmmm or dddmm.mmmm plus a hemisphere letter.
func parseLatLon(v string, hemi string) (float64, bool) {
	v = strings.TrimSpace(v)
	hemi = strings.TrimSpace(strings.ToUpper(hemi))
	if v == "" || (hemi != "N" && hemi != "S" && hemi != "E" && hemi != "W") {
		return 0, false
	}

	// The last two digits before the point are minutes.
	intPart := v
	if dot := strings.IndexByte(v, '.'); dot != -1 {
		intPart = v[:dot]
	}
	if len(intPart) < 3 {
		return 0, false
	}

	deg, err := strconv.Atoi(intPart[:len(intPart)-2])
	if err != nil {
		return 0, false
	}
	mins, err := strconv.ParseFloat(v[len(intPart)-2:], 64)
	if err != nil || mins >= 60 {
		return 0, false
	}

	dec := float64(deg) + mins/60.0
	if hemi == "S" || hemi == "W" {
		dec = -dec
	}
	limit := 90.0
	if hemi == "E" || hemi == "W" {
		limit = 180.0
	}
	if dec > limit || dec < -limit {
		return 0, false
	}
	return dec, true
}
