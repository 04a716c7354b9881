package ais

import (
	"fmt"

	"aiswatch/geo"
)

type MessageType int

const (
	PositionReport MessageType = iota + 1
	StaticData
)

func (m MessageType) String() string {
	switch m {
	case PositionReport:
		return "PositionReport"
	case StaticData:
		return "StaticData"
	default:
		return fmt.Sprintf("MessageType(%d)", int(m))
	}
}

// ShipType is the coarse category derived from the type 5 ship type code.
type ShipType int

const (
	ShipTypeOther ShipType = iota
	ShipTypeCargo
	ShipTypeTanker
	ShipTypePassenger
	ShipTypeFishing
	ShipTypePleasure
)

var shipTypeNames = map[ShipType]string{
	ShipTypeOther:     "Other",
	ShipTypeCargo:     "Cargo",
	ShipTypeTanker:    "Tanker",
	ShipTypePassenger: "Passenger",
	ShipTypeFishing:   "Fishing",
	ShipTypePleasure:  "Pleasure",
}

func (s ShipType) String() string {
	if n, ok := shipTypeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("ShipType(%d)", int(s))
}

func (s ShipType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ShipType) UnmarshalText(b []byte) error {
	for k, v := range shipTypeNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown ship type %q", string(b))
}

// ShipTypeFromCode maps an ITU ship type code onto a category. Fishing is
// tested before Pleasure, so codes 37 and 38 come out as Fishing.
func ShipTypeFromCode(code int) ShipType {
	switch {
	case code >= 70 && code <= 79:
		return ShipTypeCargo
	case code >= 80 && code <= 89:
		return ShipTypeTanker
	case code >= 60 && code <= 69:
		return ShipTypePassenger
	case code >= 30 && code <= 39:
		return ShipTypeFishing
	case code >= 37 && code <= 38:
		return ShipTypePleasure
	default:
		return ShipTypeOther
	}
}

// PlaceholderName is the name given to a vessel before its static data is
// known.
func PlaceholderName(mmsi string) string {
	return "MMSI:" + mmsi
}

// Observation is one decoded report about a vessel.
type Observation struct {
	MMSI         string      `json:"mmsi"`
	Type         MessageType `json:"messageType"`
	Position     *geo.Point  `json:"position,omitempty"`
	SpeedKnots   float64     `json:"speedKnots"`
	CourseDeg    float64     `json:"courseDeg"`
	Name         string      `json:"name"`
	ShipType     ShipType    `json:"shipType"`
	ShipTypeCode int         `json:"shipTypeCode"`
}
