package ais

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"aiswatch/geo"
)

var (
	ErrMalformedSentence = errors.New("ais: malformed sentence")
	ErrNoPayload         = errors.New("ais: empty payload")
	ErrUnsupportedType   = errors.New("ais: unsupported message type")
)

const (
	LON_UNAVAILABLE    = 0x6791AC0 // 181 degrees
	LAT_UNAVAILABLE    = 0x3412140 // 91 degrees
	SOG_UNAVAILABLE    = 1023
	COG_UNAVAILABLE    = 3600
	MINUTES_PER_DEGREE = 600000.0
)

// fieldReader walks a payload front to back. The first failure sticks and
// every later read returns zero.
type fieldReader struct {
	bits Bits
	pos  int
	err  error
}

func (r *fieldReader) skip(n int) {
	r.pos += n
}

func (r *fieldReader) readUint(n int) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := ExtractUint(r.bits, r.pos, n)
	r.pos += n
	r.err = err
	return v
}

func (r *fieldReader) readInt(n int) int64 {
	if r.err != nil {
		return 0
	}
	v, err := ExtractInt(r.bits, r.pos, n)
	r.pos += n
	r.err = err
	return v
}

func (r *fieldReader) readString(n int) string {
	if r.err != nil {
		return ""
	}
	v, err := ExtractString(r.bits, r.pos, n)
	r.pos += n
	r.err = err
	return v
}

// Layout selects where report fields sit in the payload.
type Layout int

const (
	// LayoutPacked places the MMSI directly after the message type and
	// reads coordinates as unsigned fields. Only the two sentinels mark a
	// position unavailable.
	LayoutPacked Layout = iota
	// LayoutITU skips the 2-bit repeat indicator, sign-extends
	// coordinates and treats positions off the globe as unavailable.
	LayoutITU
)

var layoutNames = map[Layout]string{
	LayoutPacked: "packed",
	LayoutITU:    "itu",
}

func (l Layout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Layout) UnmarshalText(b []byte) error {
	for k, name := range layoutNames {
		if strings.EqualFold(name, string(b)) {
			*l = k
			return nil
		}
	}
	return fmt.Errorf("unknown layout %q", string(b))
}

// Decode turns one validated AIVDM/AIVDO sentence into an observation
// using LayoutPacked.
func Decode(line string) (Observation, error) {
	return DecodeLayout(line, LayoutPacked)
}

// DecodeLayout is Decode with an explicit field layout. Only message types
// 1, 2, 3 and 5 are understood; multi-sentence messages are decoded from
// whichever fragment is given.
func DecodeLayout(line string, layout Layout) (Observation, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return Observation{}, fmt.Errorf("%w: %d fields", ErrMalformedSentence, len(fields))
	}
	payload := fields[5]
	if payload == "" {
		return Observation{}, ErrNoPayload
	}
	bits := Decode6BitASCII(payload)
	if bits.Len() == 0 {
		return Observation{}, ErrNoPayload
	}

	r := &fieldReader{bits: bits}
	msgType := r.readUint(6)
	if r.err != nil {
		return Observation{}, r.err
	}

	switch msgType {
	case 1, 2, 3:
		return decodePositionReport(r, layout)
	case 5:
		return decodeStaticData(r, layout)
	default:
		return Observation{}, fmt.Errorf("%w: %d", ErrUnsupportedType, msgType)
	}
}

func formatMMSI(v uint64) string {
	return fmt.Sprintf("%09d", v)
}

func decodePositionReport(r *fieldReader, layout Layout) (Observation, error) {
	if layout == LayoutITU {
		r.skip(2) // repeat indicator
	}
	mmsi := r.readUint(30)
	r.skip(4) // navigational status
	r.skip(8) // rate of turn
	sog := r.readUint(10)
	r.skip(1) // position accuracy
	var lon, lat int64
	if layout == LayoutITU {
		lon = r.readInt(28)
		lat = r.readInt(27)
	} else {
		lon = int64(r.readUint(28))
		lat = int64(r.readUint(27))
	}
	cog := r.readUint(12)
	if r.err != nil {
		return Observation{}, r.err
	}

	obs := Observation{
		MMSI:     formatMMSI(mmsi),
		Type:     PositionReport,
		Name:     PlaceholderName(formatMMSI(mmsi)),
		ShipType: ShipTypeOther,
		Position: decodePosition(lat, lon, layout),
	}
	if sog != SOG_UNAVAILABLE {
		obs.SpeedKnots = float64(sog) * 0.1
	}
	if cog != COG_UNAVAILABLE {
		obs.CourseDeg = float64(cog) * 0.1
	}
	return obs, nil
}

// decodePosition returns nil when either coordinate carries its sentinel,
// and under LayoutITU when the point is off the globe.
func decodePosition(lat int64, lon int64, layout Layout) *geo.Point {
	if lat == LAT_UNAVAILABLE || lon == LON_UNAVAILABLE {
		return nil
	}
	p := geo.Point{
		Lat: float64(lat) / MINUTES_PER_DEGREE,
		Lon: float64(lon) / MINUTES_PER_DEGREE,
	}
	if layout == LayoutITU && (math.Abs(p.Lat) > 90 || math.Abs(p.Lon) > 180) {
		return nil
	}
	return &p
}

func decodeStaticData(r *fieldReader, layout Layout) (Observation, error) {
	if layout == LayoutITU {
		r.skip(2) // repeat indicator
	}
	mmsi := r.readUint(30)
	r.skip(2)  // AIS version
	r.skip(30) // IMO number
	r.skip(42) // call sign
	name := r.readString(120)
	code := r.readUint(8)
	if r.err != nil {
		return Observation{}, r.err
	}

	obs := Observation{
		MMSI:         formatMMSI(mmsi),
		Type:         StaticData,
		Name:         name,
		ShipTypeCode: int(code),
		ShipType:     ShipTypeFromCode(int(code)),
	}
	if obs.Name == "" {
		obs.Name = PlaceholderName(obs.MMSI)
	}
	return obs, nil
}
