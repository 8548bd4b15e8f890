package h264parser

import (
	"fmt"

	"github.com/KimVegetable/miat/utils/bits"
)

// SEI payload types referenced by the analyzers.
const (
	SEIBufferingPeriod      = 0
	SEIPicTiming            = 1
	SEIUserDataUnregistered = 5
	SEIRecoveryPoint        = 6
)

// SEIMessage is one SEI message. Payload holds the exact payload bytes;
// a recognized payload additionally fills the typed field.
type SEIMessage struct {
	PayloadType uint
	PayloadSize uint
	Payload     []byte

	UserData *UserDataUnregistered
	Timecode *Timecode
}

// UserDataUnregistered is the payload of SEI type 5.
type UserDataUnregistered struct {
	UUID []byte
	Data []byte
}

// Timecode is a SMPTE 12M timecode recovered from a pic_timing SEI.
type Timecode struct {
	Hours   int
	Minutes int
	Seconds int
	Frames  int
}

// String formats the timecode as HH:MM:SS:FF.
func (tc Timecode) String() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", tc.Hours, tc.Minutes, tc.Seconds, tc.Frames)
}

// ParseSEI splits an SEI RBSP into messages. data is the EPB-stripped
// payload after the NAL header. The active SPS (may be nil) supplies
// HRD lengths for pic_timing decoding.
func ParseSEI(data []byte, sps *SPS) []*SEIMessage {
	var messages []*SEIMessage
	i := 0
	for i < len(data) {
		if data[i] == 0x80 { // rbsp trailing bits
			break
		}
		payloadType := 0
		for i < len(data) && data[i] == 0xFF {
			payloadType += 255
			i++
		}
		if i >= len(data) {
			break
		}
		payloadType += int(data[i])
		i++

		payloadSize := 0
		for i < len(data) && data[i] == 0xFF {
			payloadSize += 255
			i++
		}
		if i >= len(data) {
			break
		}
		payloadSize += int(data[i])
		i++

		if i+payloadSize > len(data) {
			break
		}
		payload := data[i : i+payloadSize]
		i += payloadSize

		msg := &SEIMessage{
			PayloadType: uint(payloadType),
			PayloadSize: uint(payloadSize),
			Payload:     payload,
		}
		switch payloadType {
		case SEIUserDataUnregistered:
			if len(payload) >= 16 {
				msg.UserData = &UserDataUnregistered{
					UUID: payload[:16],
					Data: payload[16:],
				}
			}
		case SEIPicTiming:
			if tc, ok := parsePicTimingTimecode(payload, sps); ok {
				msg.Timecode = &tc
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

// parsePicTimingTimecode extracts the first clock timestamp of a
// pic_timing payload. The SPS must carry HRD parameters and
// pic_struct_present_flag; without them the field widths are unknown.
func parsePicTimingTimecode(payload []byte, sps *SPS) (Timecode, bool) {
	if sps == nil || sps.VUI == nil || !sps.VUI.PicStructPresentFlag {
		return Timecode{}, false
	}
	hrd := sps.VUI.NalHrd
	if hrd == nil {
		hrd = sps.VUI.VclHrd
	}
	if hrd == nil {
		return Timecode{}, false
	}

	r := bits.NewReader(payload)
	if _, err := r.ReadBits(int(hrd.CpbRemovalDelayLengthMinus1) + 1); err != nil {
		return Timecode{}, false
	}
	if _, err := r.ReadBits(int(hrd.DpbOutputDelayLengthMinus1) + 1); err != nil {
		return Timecode{}, false
	}
	picStruct, err := r.ReadBits(4)
	if err != nil {
		return Timecode{}, false
	}

	numClockTS := 1
	switch picStruct {
	case 3, 4:
		numClockTS = 2
	case 5, 6, 7, 8:
		numClockTS = 3
	}

	for c := 0; c < numClockTS; c++ {
		clockTSFlag, err := r.ReadFlag()
		if err != nil {
			return Timecode{}, false
		}
		if !clockTSFlag {
			continue
		}
		r.ReadBits(2) // ct_type
		r.ReadBits(1) // nuit_field_based_flag
		r.ReadBits(5) // counting_type
		fullTSFlag, _ := r.ReadFlag()
		r.ReadBits(1) // discontinuity_flag
		r.ReadBits(1) // cnt_dropped_flag
		nFrames, _ := r.ReadBits(8)

		var secs, mins, hours uint64
		if fullTSFlag {
			secs, _ = r.ReadBits(6)
			mins, _ = r.ReadBits(6)
			hours, _ = r.ReadBits(5)
		} else {
			if f, _ := r.ReadFlag(); f {
				secs, _ = r.ReadBits(6)
				if f, _ := r.ReadFlag(); f {
					mins, _ = r.ReadBits(6)
					if f, _ := r.ReadFlag(); f {
						hours, _ = r.ReadBits(5)
					}
				}
			}
		}
		if hrd.TimeOffsetLength > 0 {
			r.ReadBits(int(hrd.TimeOffsetLength))
		}
		return Timecode{
			Hours:   int(hours),
			Minutes: int(mins),
			Seconds: int(secs),
			Frames:  int(nFrames),
		}, true
	}
	return Timecode{}, false
}
