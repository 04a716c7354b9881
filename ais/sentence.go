package ais

import (
	"regexp"
	"strconv"
	"strings"
)

const MAX_LINE_BYTES = 1024

var sentencePattern = regexp.MustCompile(`^!AIVD[MO],.*\*[0-9A-Fa-f]{2}\r?\n?$`)

// IsSentence reports whether line has the shape of an AIVDM/AIVDO sentence.
// The checksum digits are not compared against the content.
func IsSentence(line string) bool {
	return sentencePattern.MatchString(line)
}

// Checksum returns the NMEA XOR checksum over the bytes between the leading
// '!' and the '*'.
func Checksum(line string) (byte, bool) {
	line = strings.TrimRight(line, "\r\n")
	star := strings.LastIndexByte(line, '*')
	if len(line) < 1 || star < 1 {
		return 0, false
	}
	var cs byte
	for i := 1; i < star; i++ {
		cs ^= line[i]
	}
	return cs, true
}

// ValidChecksum compares the transmitted checksum with the computed one.
func ValidChecksum(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	star := strings.LastIndexByte(line, '*')
	if star < 0 || len(line)-star != 3 {
		return false
	}
	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return false
	}
	got, ok := Checksum(line)
	return ok && byte(want) == got
}

type FramerConfig struct {
	// VerifyChecksum drops sentences whose checksum does not match.
	VerifyChecksum bool
	// MaxLineBytes bounds the buffered partial line.
	MaxLineBytes int
}

// Framer rebuilds sentences from a stream delivered in arbitrary chunks.
// It is not safe for concurrent use.
type Framer struct {
	cfg     FramerConfig
	partial strings.Builder

	Accepted  uint64
	Discarded uint64
}

func NewFramer(cfg FramerConfig) *Framer {
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = MAX_LINE_BYTES
	}
	return &Framer{cfg: cfg}
}

// Feed consumes a chunk and returns every complete, well-formed sentence it
// finished, trimmed of surrounding whitespace.
func (f *Framer) Feed(chunk string) []string {
	var out []string
	for len(chunk) > 0 {
		nl := strings.IndexByte(chunk, '\n')
		if nl < 0 {
			if f.partial.Len()+len(chunk) > f.cfg.MaxLineBytes {
				f.partial.Reset()
				f.Discarded++
				return out
			}
			f.partial.WriteString(chunk)
			return out
		}

		f.partial.WriteString(chunk[:nl+1])
		chunk = chunk[nl+1:]

		line := f.partial.String()
		f.partial.Reset()
		if s, ok := f.Accept(line); ok {
			out = append(out, s)
		}
	}
	return out
}

// Pending is the buffered partial line.
func (f *Framer) Pending() string {
	return f.partial.String()
}

// Accept validates a single complete line and returns it trimmed.
func (f *Framer) Accept(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if len(line) > f.cfg.MaxLineBytes || !IsSentence(strings.TrimLeft(line, " \t")) {
		f.Discarded++
		return "", false
	}
	if f.cfg.VerifyChecksum && !ValidChecksum(trimmed) {
		f.Discarded++
		return "", false
	}
	f.Accepted++
	return trimmed, true
}
