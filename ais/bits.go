package ais

import (
	"errors"
	"fmt"
	"strings"
)

// ErrShortPayload is returned when a field lies beyond the decoded bits.
var ErrShortPayload = errors.New("ais: payload too short")

// Bits is an unpacked AIS payload, one '0' or '1' per bit.
type Bits string

func (b Bits) Len() int {
	return len(b)
}

// Decode6BitASCII unpacks an armored payload. Each character contributes
// code-48; values outside 0..63 are dropped rather than rejected.
func Decode6BitASCII(payload string) Bits {
	var sb strings.Builder
	sb.Grow(len(payload) * 6)
	for _, ch := range payload {
		v := int(ch) - 48
		if v < 0 || v > 63 {
			continue
		}
		for shift := 5; shift >= 0; shift-- {
			if (v>>shift)&1 == 1 {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
	return Bits(sb.String())
}

// ExtractUint reads bits[start:start+length] as a big-endian unsigned value.
func ExtractUint(bits Bits, start int, length int) (uint64, error) {
	if start < 0 || length < 0 || length > 64 || start+length > len(bits) {
		return 0, fmt.Errorf("%w: field %d+%d exceeds %d bits", ErrShortPayload, start, length, len(bits))
	}
	var v uint64
	for i := start; i < start+length; i++ {
		v <<= 1
		switch bits[i] {
		case '1':
			v |= 1
		case '0':
		default:
			return 0, fmt.Errorf("ais: invalid bit %q at %d", bits[i], i)
		}
	}
	return v, nil
}

// ExtractInt reads a two's complement field.
func ExtractInt(bits Bits, start int, length int) (int64, error) {
	u, err := ExtractUint(bits, start, length)
	if err != nil {
		return 0, err
	}
	if length == 0 || length >= 64 {
		return int64(u), nil
	}
	if u&(1<<(length-1)) != 0 {
		return int64(u) - int64(1)<<length, nil
	}
	return int64(u), nil
}

// sixBitChar maps a 6-bit value to the character used in vessel names.
// '@' marks padding and is never emitted.
func sixBitChar(v uint64) byte {
	switch {
	case v >= 1 && v <= 26:
		return byte('A' + v - 1)
	case v >= 27 && v <= 31:
		return byte('0' + v - 27)
	case v >= 32 && v <= 37:
		return byte('0' + v - 32)
	default:
		return '@'
	}
}

// ExtractString decodes length/6 characters starting at start.
func ExtractString(bits Bits, start int, length int) (string, error) {
	if length%6 != 0 {
		return "", fmt.Errorf("ais: string field length %d is not a multiple of 6", length)
	}
	var sb strings.Builder
	for i := 0; i < length/6; i++ {
		v, err := ExtractUint(bits, start+i*6, 6)
		if err != nil {
			return "", err
		}
		if ch := sixBitChar(v); ch != '@' {
			sb.WriteByte(ch)
		}
	}
	return strings.TrimRight(sb.String(), "@ "), nil
}
