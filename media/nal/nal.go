// Package nal splits Annex B elementary streams into NAL units and
// handles emulation-prevention bytes. It is codec-agnostic; header
// interpretation belongs to the codec parsers.
package nal

import "bytes"

var StartCode3 = []byte{0x00, 0x00, 0x01}
var StartCode4 = []byte{0x00, 0x00, 0x00, 0x01}

// Unit is one NAL unit as framed by its start code. Data includes the
// start code; Payload starts right after it. Offsets are relative to the
// stream handed to Split.
type Unit struct {
	StartOffset  int
	Length       int
	StartCodeLen int
	Data         []byte
	Payload      []byte
}

// Split scans data for 3- and 4-byte start codes and cuts the stream into
// NAL units. Overlapping candidates resolve leftmost-longest: when a
// 4-byte code matches, the 3-byte match inside it is not emitted. A
// trailing unit with no terminating start code is retained; zero-length
// units are skipped.
func Split(data []byte) []Unit {
	type pos struct {
		scStart   int
		dataStart int
	}

	var positions []pos
	n := len(data)
	i := 0
	for i < n-2 {
		if data[i] == 0 && data[i+1] == 0 {
			if i < n-3 && data[i+2] == 0 && data[i+3] == 1 {
				positions = append(positions, pos{scStart: i, dataStart: i + 4})
				i += 4
				continue
			}
			if data[i+2] == 1 {
				positions = append(positions, pos{scStart: i, dataStart: i + 3})
				i += 3
				continue
			}
		}
		i++
	}

	var units []Unit
	for idx, p := range positions {
		end := n
		if idx+1 < len(positions) {
			end = positions[idx+1].scStart
		}
		if p.dataStart >= end {
			continue
		}
		units = append(units, Unit{
			StartOffset:  p.scStart,
			Length:       end - p.scStart,
			StartCodeLen: p.dataStart - p.scStart,
			Data:         data[p.scStart:end],
			Payload:      data[p.dataStart:end],
		})
	}
	return units
}

// StripEmulationPrevention removes emulation-prevention bytes: scanning
// left to right, every occurrence of 00 00 03 in the input collapses to
// 00 00. The output can itself contain 00 00 03 (00 00 03 00 03 00
// strips to 00 00 00 03 00), and a second pass then removes that 03 too.
func StripEmulationPrevention(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); {
		if i+2 < len(b) && b[i] == 0 && b[i+1] == 0 && b[i+2] == 3 {
			out = append(out, 0, 0)
			i += 3
		} else {
			out = append(out, b[i])
			i++
		}
	}
	return out
}

// AddEmulationPrevention inserts a 03 byte after every 00 00 pair that
// precedes a byte <= 3, producing a payload safe to embed behind start
// codes. Returns the escaped bytes and the number of insertions.
func AddEmulationPrevention(b []byte) ([]byte, int) {
	out := make([]byte, 0, len(b)+len(b)/64)
	added := 0
	zeros := 0
	for _, c := range b {
		if zeros >= 2 && c <= 3 {
			out = append(out, 3)
			added++
			zeros = 0
		}
		out = append(out, c)
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out, added
}

// HasStartCode reports whether b begins with a 3- or 4-byte start code.
func HasStartCode(b []byte) bool {
	return bytes.HasPrefix(b, StartCode3) || bytes.HasPrefix(b, StartCode4)
}
