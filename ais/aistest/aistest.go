// Package aistest builds AIS sentences for tests.
package aistest

import (
	"fmt"
	"math"
	"strings"
)

const MINUTES_PER_DEGREE = 600000.0

// BitWriter assembles a payload bit string field by field.
type BitWriter struct {
	sb strings.Builder
}

func (w *BitWriter) Put(v uint64, n int) *BitWriter {
	for i := n - 1; i >= 0; i-- {
		if (v>>uint(i))&1 == 1 {
			w.sb.WriteByte('1')
		} else {
			w.sb.WriteByte('0')
		}
	}
	return w
}

// PutInt writes v as an n-bit two's complement field.
func (w *BitWriter) PutInt(v int64, n int) *BitWriter {
	return w.Put(uint64(v)&(uint64(1)<<uint(n)-1), n)
}

// PutString writes s as n/6 name characters, padding with zeroes. Letters
// map to 1-26, '0'-'4' to 27-31 and '5' to 37; anything else is written
// as zero.
func (w *BitWriter) PutString(s string, n int) *BitWriter {
	for i := 0; i < n/6; i++ {
		var v uint64
		if i < len(s) {
			ch := s[i]
			switch {
			case ch >= 'A' && ch <= 'Z':
				v = uint64(ch-'A') + 1
			case ch >= '0' && ch <= '4':
				v = uint64(ch-'0') + 27
			case ch == '5':
				v = 37
			}
		}
		w.Put(v, 6)
	}
	return w
}

func (w *BitWriter) Bits() string {
	return w.sb.String()
}

// Armor packs bits into payload characters as value+48, zero padding the
// last character.
func Armor(bits string) string {
	for len(bits)%6 != 0 {
		bits += "0"
	}
	var sb strings.Builder
	for i := 0; i < len(bits); i += 6 {
		var v byte
		for _, b := range bits[i : i+6] {
			v <<= 1
			if b == '1' {
				v |= 1
			}
		}
		sb.WriteByte(v + 48)
	}
	return sb.String()
}

// Sentence wraps a payload in a single fragment !AIVDM sentence with a
// valid checksum.
func Sentence(payload string) string {
	body := "AIVDM,1,1,,A," + payload + ",0"
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("!%s*%02X", body, cs)
}

// Position builds a type 1, 2 or 3 report with the MMSI directly after
// the message type. sog and cog are in tenths, lon and lat in 1/10000
// minutes; negative coordinates are written two's complement.
func Position(msgType uint64, mmsi uint64, sog uint64, lon int64, lat int64, cog uint64) string {
	return position(false, msgType, mmsi, sog, lon, lat, cog)
}

// PositionITU is Position with the 2-bit repeat indicator ahead of the
// MMSI.
func PositionITU(msgType uint64, mmsi uint64, sog uint64, lon int64, lat int64, cog uint64) string {
	return position(true, msgType, mmsi, sog, lon, lat, cog)
}

func position(repeat bool, msgType uint64, mmsi uint64, sog uint64, lon int64, lat int64, cog uint64) string {
	w := &BitWriter{}
	w.Put(msgType, 6)
	if repeat {
		w.Put(0, 2)
	}
	w.Put(mmsi, 30).Put(0, 4).Put(0, 8).Put(sog, 10).Put(0, 1)
	w.PutInt(lon, 28).PutInt(lat, 27).Put(cog, 12)
	w.Put(0, 40) // heading, timestamp, radio state
	return Sentence(Armor(w.Bits()))
}

// Static builds a type 5 report with the MMSI directly after the message
// type.
func Static(mmsi uint64, name string, code uint64) string {
	return static(false, mmsi, name, code)
}

// StaticITU is Static with the 2-bit repeat indicator ahead of the MMSI.
func StaticITU(mmsi uint64, name string, code uint64) string {
	return static(true, mmsi, name, code)
}

func static(repeat bool, mmsi uint64, name string, code uint64) string {
	w := &BitWriter{}
	w.Put(5, 6)
	if repeat {
		w.Put(0, 2)
	}
	w.Put(mmsi, 30).Put(0, 2).Put(9876543, 30).PutString("CALL", 42)
	w.PutString(name, 120).Put(code, 8)
	w.Put(0, 60) // dimensions and the start of the voyage data
	return Sentence(Armor(w.Bits()))
}

// Degrees converts decimal degrees to the position field unit.
func Degrees(d float64) int64 {
	return int64(math.Round(d * MINUTES_PER_DEGREE))
}
