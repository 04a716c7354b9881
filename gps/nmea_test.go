package gps

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, ck)
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseSentence(t *testing.T) {
	s, err := ParseSentence(nmeaLine("GNRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W") + "\r\n")
	require.NoError(t, err)
	assert.Equal(t, "RMC", s.Type)
	assert.Len(t, s.Fields, 12)
}

func TestParseSentenceRejects(t *testing.T) {
	good := nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	tests := []struct {
		name string
		line string
		err  error
	}{
		{"ais", "!AIVDM,1,1,,A,13aEOK?P00PD2wVMdLDRhgvL289?,0*26", ErrNotNMEA},
		{"checksum mismatch", good[:len(good)-2] + "00", ErrChecksum},
		{"no checksum", "$GPRMC,123519,A", nil},
		{"short checksum", "$GPRMC,123519,A*1", nil},
		{"bad checksum", "$GPRMC,123519,A*ZZ", nil},
		{"short type", nmeaLine("GP"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSentence(tt.line)
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestFixFromRMC(t *testing.T) {
	s, err := ParseSentence(nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	require.NoError(t, err)

	fix, ok := FixFrom(s, now)
	require.True(t, ok)
	assert.InDelta(t, 48.1173, fix.Lat, 1e-4)
	assert.InDelta(t, 11.5167, fix.Lon, 1e-4)
	assert.Equal(t, 22.4, fix.SpeedKnots)
	assert.Equal(t, 84.4, fix.CourseDeg)
	assert.Equal(t, now, fix.Time)
}

func TestFixFromRMCVoid(t *testing.T) {
	s, err := ParseSentence(nmeaLine("GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W"))
	require.NoError(t, err)

	_, ok := FixFrom(s, now)
	assert.False(t, ok)
}

func TestFixFromGGA(t *testing.T) {
	s, err := ParseSentence(nmeaLine("GPGGA,123519,3352.128,S,15112.558,E,1,08,0.9,545.4,M,46.9,M,,"))
	require.NoError(t, err)

	fix, ok := FixFrom(s, now)
	require.True(t, ok)
	assert.InDelta(t, -33.8688, fix.Lat, 1e-4)
	assert.InDelta(t, 151.2093, fix.Lon, 1e-4)
	assert.Equal(t, 1, fix.Quality)
	assert.Equal(t, 8, fix.Satellites)
}

func TestFixFromGGANoFix(t *testing.T) {
	s, err := ParseSentence(nmeaLine("GPGGA,123519,3352.128,S,15112.558,E,0,00,,,M,,M,,"))
	require.NoError(t, err)

	_, ok := FixFrom(s, now)
	assert.False(t, ok)
}

func TestFixFromOtherSentence(t *testing.T) {
	s, err := ParseSentence(nmeaLine("GPGSV,3,1,11,03,03,111,00"))
	require.NoError(t, err)

	_, ok := FixFrom(s, now)
	assert.False(t, ok)
}

func TestParseLatLon(t *testing.T) {
	tests := []struct {
		v, hemi string
		want    float64
		ok      bool
	}{
		{"4807.038", "N", 48.1173, true},
		{"4807.038", "S", -48.1173, true},
		{"01131.000", "W", -11.516667, true},
		{"00000.000", "E", 0, true},
		{"4807.038", "X", 0, false},
		{"", "N", 0, false},
		{"07.0", "N", 0, false},
		{"4899.0", "N", 0, false},
		{"9500.0", "N", 0, false},
		{"18100.0", "E", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLatLon(tt.v, tt.hemi)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.v, tt.hemi)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-4, "%s %s", tt.v, tt.hemi)
		}
	}
}

func TestParseLatLonRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		deg := rapid.IntRange(0, 89).Draw(t, "deg")
		mins := rapid.Float64Range(0, 59.999).Draw(t, "mins")

		got, ok := parseLatLon(fmt.Sprintf("%02d%07.4f", deg, mins), "N")
		require.True(t, ok)
		assert.InDelta(t, float64(deg)+mins/60, got, 1e-5)
	})
}
