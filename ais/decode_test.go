package ais

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"aiswatch/ais/aistest"
)

func TestDecodeSampleLine(t *testing.T) {
	obs, err := Decode(sampleLine)
	require.NoError(t, err)

	assert.Equal(t, PositionReport, obs.Type)
	assert.Equal(t, "051369023", obs.MMSI)
	assert.Equal(t, "MMSI:051369023", obs.Name)
	assert.Equal(t, ShipTypeOther, obs.ShipType)
	require.NotNil(t, obs.Position)
	assert.InDelta(t, 12.807408, obs.Position.Lat, 1e-6)
	assert.InDelta(t, 112.949868, obs.Position.Lon, 1e-6)
	assert.Equal(t, 0.0, obs.SpeedKnots)
	assert.InDelta(t, 232.4, obs.CourseDeg, 1e-9)
}

func TestDecodeSampleLineITU(t *testing.T) {
	obs, err := DecodeLayout(sampleLine, LayoutITU)
	require.NoError(t, err)

	assert.Equal(t, "205476095", obs.MMSI)
	require.NotNil(t, obs.Position)
	assert.InDelta(t, 51.229637, obs.Position.Lat, 1e-6)
	assert.InDelta(t, 4.407047, obs.Position.Lon, 1e-6)
	assert.InDelta(t, 110.5, obs.CourseDeg, 1e-9)
}

func TestDecodePositionReport(t *testing.T) {
	w := &aistest.BitWriter{}
	w.Put(1, 6).Put(366730000, 30).Put(0, 4).Put(0, 8).Put(208, 10).Put(0, 1)
	w.Put(uint64(aistest.Degrees(4.5)), 28).Put(uint64(aistest.Degrees(51.9)), 27).Put(513, 12)
	w.Put(0, 42)

	obs, err := Decode(aistest.Sentence(aistest.Armor(w.Bits())))
	require.NoError(t, err)

	assert.Equal(t, "366730000", obs.MMSI)
	assert.Equal(t, PositionReport, obs.Type)
	require.NotNil(t, obs.Position)
	assert.InDelta(t, 51.9, obs.Position.Lat, 1e-6)
	assert.InDelta(t, 4.5, obs.Position.Lon, 1e-6)
	assert.InDelta(t, 20.8, obs.SpeedKnots, 1e-9)
	assert.InDelta(t, 51.3, obs.CourseDeg, 1e-9)
	assert.Equal(t, "MMSI:366730000", obs.Name)
}

func TestDecodePositionReportITU(t *testing.T) {
	line := aistest.PositionITU(1, 366730000, 208, aistest.Degrees(-122.392531), aistest.Degrees(37.803655), 513)

	obs, err := DecodeLayout(line, LayoutITU)
	require.NoError(t, err)

	assert.Equal(t, "366730000", obs.MMSI)
	require.NotNil(t, obs.Position)
	assert.InDelta(t, 37.803655, obs.Position.Lat, 1e-6)
	assert.InDelta(t, -122.392531, obs.Position.Lon, 1e-6)
	assert.InDelta(t, 20.8, obs.SpeedKnots, 1e-9)
	assert.InDelta(t, 51.3, obs.CourseDeg, 1e-9)
}

func TestDecodePositionReportTypes(t *testing.T) {
	for _, msgType := range []uint64{1, 2, 3} {
		obs, err := Decode(aistest.Position(msgType, 1, 0, 0, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, "000000001", obs.MMSI)
		assert.Equal(t, PositionReport, obs.Type)
	}
}

func TestDecodePositionSentinels(t *testing.T) {
	tests := []struct {
		name        string
		lon         int64
		lat         int64
		hasPosition bool
	}{
		{"both present", aistest.Degrees(4.5), aistest.Degrees(51.9), true},
		{"longitude unavailable", LON_UNAVAILABLE, aistest.Degrees(51.9), false},
		{"latitude unavailable", aistest.Degrees(4.5), LAT_UNAVAILABLE, false},
		{"both unavailable", LON_UNAVAILABLE, LAT_UNAVAILABLE, false},
		{"latitude past the pole", aistest.Degrees(4.5), aistest.Degrees(95), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := Decode(aistest.Position(1, 244123456, SOG_UNAVAILABLE, tt.lon, tt.lat, COG_UNAVAILABLE))
			require.NoError(t, err)
			assert.Equal(t, tt.hasPosition, obs.Position != nil)
			assert.Equal(t, 0.0, obs.SpeedKnots)
			assert.Equal(t, 0.0, obs.CourseDeg)
		})
	}
}

func TestDecodePositionSentinelsITU(t *testing.T) {
	tests := []struct {
		name        string
		lon         int64
		lat         int64
		hasPosition bool
	}{
		{"both present", aistest.Degrees(-4.5), aistest.Degrees(-51.9), true},
		{"longitude unavailable", LON_UNAVAILABLE, aistest.Degrees(51.9), false},
		{"latitude unavailable", aistest.Degrees(4.5), LAT_UNAVAILABLE, false},
		{"latitude off the globe", aistest.Degrees(4.5), aistest.Degrees(95), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := DecodeLayout(aistest.PositionITU(1, 244123456, 0, tt.lon, tt.lat, 0), LayoutITU)
			require.NoError(t, err)
			assert.Equal(t, tt.hasPosition, obs.Position != nil)
		})
	}
}

func TestDecodeCoordinatesAreUnsigned(t *testing.T) {
	obs, err := Decode(aistest.Position(1, 244123456, 100, aistest.Degrees(-70), aistest.Degrees(40), 900))
	require.NoError(t, err)

	require.NotNil(t, obs.Position)
	assert.InDelta(t, 40.0, obs.Position.Lat, 1e-6)
	assert.InDelta(t, float64(1<<28-42000000)/MINUTES_PER_DEGREE, obs.Position.Lon, 1e-6)
}

func TestDecodePositionRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mmsi := rapid.Uint64Range(0, 999999999).Draw(t, "mmsi")
		lat := rapid.Float64Range(0, 90).Draw(t, "lat")
		lon := rapid.Float64Range(0, 180).Draw(t, "lon")
		sog := rapid.Uint64Range(0, 1022).Draw(t, "sog")
		cog := rapid.Uint64Range(0, 3599).Draw(t, "cog")

		obs, err := Decode(aistest.Position(1, mmsi, sog, aistest.Degrees(lon), aistest.Degrees(lat), cog))
		require.NoError(t, err)
		require.NotNil(t, obs.Position)
		assert.InDelta(t, lat, obs.Position.Lat, 1e-6)
		assert.InDelta(t, lon, obs.Position.Lon, 1e-6)
		assert.InDelta(t, float64(sog)*0.1, obs.SpeedKnots, 1e-9)
		assert.InDelta(t, float64(cog)*0.1, obs.CourseDeg, 1e-9)
		assert.Len(t, obs.MMSI, 9)
	})
}

func TestDecodePositionRoundTripITU(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mmsi := rapid.Uint64Range(0, 999999999).Draw(t, "mmsi")
		lat := rapid.Float64Range(-90, 90).Draw(t, "lat")
		lon := rapid.Float64Range(-180, 180).Draw(t, "lon")

		obs, err := DecodeLayout(aistest.PositionITU(1, mmsi, 0, aistest.Degrees(lon), aistest.Degrees(lat), 0), LayoutITU)
		require.NoError(t, err)
		assert.Equal(t, formatMMSI(mmsi), obs.MMSI)
		require.NotNil(t, obs.Position)
		assert.InDelta(t, lat, obs.Position.Lat, 1e-6)
		assert.InDelta(t, lon, obs.Position.Lon, 1e-6)
	})
}

func TestDecodeStaticData(t *testing.T) {
	w := &aistest.BitWriter{}
	w.Put(5, 6).Put(244123456, 30).Put(0, 2).Put(0, 30).Put(0, 42)
	w.PutString("NORDIC0STAR", 120).Put(71, 8).Put(0, 60)

	obs, err := Decode(aistest.Sentence(aistest.Armor(w.Bits())))
	require.NoError(t, err)

	assert.Equal(t, "244123456", obs.MMSI)
	assert.Equal(t, StaticData, obs.Type)
	assert.Equal(t, "NORDIC0STAR", obs.Name)
	assert.Equal(t, 71, obs.ShipTypeCode)
	assert.Equal(t, ShipTypeCargo, obs.ShipType)
	assert.Nil(t, obs.Position)
}

func TestDecodeStaticDataITU(t *testing.T) {
	obs, err := DecodeLayout(aistest.StaticITU(244123456, "NORDIC0STAR", 71), LayoutITU)
	require.NoError(t, err)

	assert.Equal(t, "244123456", obs.MMSI)
	assert.Equal(t, "NORDIC0STAR", obs.Name)
	assert.Equal(t, ShipTypeCargo, obs.ShipType)
}

func TestDecodeStaticDataWithoutName(t *testing.T) {
	obs, err := Decode(aistest.Static(244123456, "", 52))
	require.NoError(t, err)

	assert.Equal(t, "MMSI:244123456", obs.Name)
	assert.Equal(t, ShipTypeOther, obs.ShipType)
}

func TestLayoutText(t *testing.T) {
	var l Layout
	require.NoError(t, l.UnmarshalText([]byte("ITU")))
	assert.Equal(t, LayoutITU, l)
	require.NoError(t, l.UnmarshalText([]byte("packed")))
	assert.Equal(t, LayoutPacked, l)
	assert.Error(t, l.UnmarshalText([]byte("nmea")))

	b, err := LayoutITU.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "itu", string(b))
}

func TestShipTypeFromCode(t *testing.T) {
	tests := []struct {
		code     int
		expected ShipType
	}{
		{0, ShipTypeOther},
		{30, ShipTypeFishing},
		{36, ShipTypeFishing},
		{37, ShipTypeFishing},
		{38, ShipTypeFishing},
		{39, ShipTypeFishing},
		{52, ShipTypeOther},
		{60, ShipTypePassenger},
		{69, ShipTypePassenger},
		{70, ShipTypeCargo},
		{79, ShipTypeCargo},
		{80, ShipTypeTanker},
		{89, ShipTypeTanker},
		{90, ShipTypeOther},
		{255, ShipTypeOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ShipTypeFromCode(tt.code), "code %d", tt.code)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
		err  error
	}{
		{"too few fields", "!AIVDM,1,1,,A*00", ErrMalformedSentence},
		{"empty payload", "!AIVDM,1,1,,A,,0*00", ErrNoPayload},
		{"payload of dropped characters", "!AIVDM,1,1,,A,www,0*00", ErrNoPayload},
		{"base station report", "!AIVDM,1,1,,A,4,0*00", ErrUnsupportedType},
		{"truncated position report", "!AIVDM,1,1,,A,1000,0*00", ErrShortPayload},
		{"truncated static data", "!AIVDM,1,1,,A,50000000000,0*00", ErrShortPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.line)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodeUnsupportedType(t *testing.T) {
	w := &aistest.BitWriter{}
	w.Put(18, 6).Put(0, 162)

	_, err := Decode(aistest.Sentence(aistest.Armor(w.Bits())))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.StringMatching(`[0-9:;<=>?@A-Wa-w` + "`" + `]{0,80}`).Draw(t, "payload")

		assert.NotPanics(t, func() {
			_, _ = Decode(aistest.Sentence(payload))
		})
	})
}
