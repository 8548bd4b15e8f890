package mp4

// SampleEntry is one stsd entry. Video entries expose dimensions and
// the codec configuration extensions (avcC, hvcC); audio entries expose
// channel layout plus esds/dac3 bytes. Unknown extensions are kept by
// fourcc in Extensions.
type SampleEntry struct {
	Type             string
	DataReferenceIdx uint16

	// Video fields.
	Width          uint16
	Height         uint16
	FrameCount     uint16
	CompressorName string
	Depth          uint16
	AvcC           *AvcC
	HvcC           *HvcC

	// Audio fields.
	ChannelCount uint16
	SampleSize   uint16
	SampleRate   uint32
	Esds         []byte
	Dac3         []byte

	Extensions map[string][]byte
}

// IsVideo reports whether the entry is one of the video sample types
// this tool binds to a codec parser.
func (e *SampleEntry) IsVideo() bool {
	switch e.Type {
	case "avc1", "avc3", "hvc1", "hev1":
		return true
	}
	return false
}

// IsAudio reports whether the entry is a recognized audio sample type.
func (e *SampleEntry) IsAudio() bool {
	switch e.Type {
	case "mp4a", "ac-3":
		return true
	}
	return false
}

// Stsd is the sample description box.
type Stsd struct {
	Version uint8
	Flags   uint32
	Entries []*SampleEntry
}

func parseStsd(body []byte) *Stsd {
	r := newByteReader(body)
	s := &Stsd{}
	s.Version = r.u8()
	s.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && r.remaining() >= 8; i++ {
		size := int(r.u32())
		typ := r.fourcc()
		if size < 8 || size-8 > r.remaining() {
			break
		}
		entryBody := r.bytes(size - 8)
		entry := parseSampleEntry(typ, entryBody)
		s.Entries = append(s.Entries, entry)
	}
	return s
}

func parseSampleEntry(typ string, body []byte) *SampleEntry {
	r := newByteReader(body)
	e := &SampleEntry{Type: typ, Extensions: make(map[string][]byte)}
	r.skip(6) // reserved
	e.DataReferenceIdx = r.u16()

	switch {
	case typ == "avc1" || typ == "avc3" || typ == "hvc1" || typ == "hev1":
		r.skip(16) // pre_defined + reserved
		e.Width = r.u16()
		e.Height = r.u16()
		r.skip(12) // resolutions + reserved
		e.FrameCount = r.u16()
		name := r.bytes(32)
		if len(name) > 0 {
			n := int(name[0])
			if n > 31 {
				n = 31
			}
			e.CompressorName = string(name[1 : 1+n])
		}
		e.Depth = r.u16()
		r.skip(2) // pre_defined
	case typ == "mp4a" || typ == "ac-3":
		r.skip(8) // reserved
		e.ChannelCount = r.u16()
		e.SampleSize = r.u16()
		r.skip(4) // pre_defined + reserved
		e.SampleRate = r.u32() >> 16
	default:
		// Unknown sample entry; keep the remainder raw.
		e.Extensions[typ] = body
		return e
	}

	// Extension boxes follow the fixed part.
	for r.remaining() >= 8 && !r.short {
		size := int(r.u32())
		extType := r.fourcc()
		if size < 8 || size-8 > r.remaining() {
			break
		}
		extBody := r.bytes(size - 8)
		switch extType {
		case "avcC":
			e.AvcC = ParseAvcC(extBody)
		case "hvcC":
			e.HvcC = ParseHvcC(extBody)
		case "esds":
			e.Esds = extBody
		case "dac3":
			e.Dac3 = extBody
		default:
			e.Extensions[extType] = extBody
		}
	}
	return e
}

// AvcC is the AVCDecoderConfigurationRecord (ISO/IEC 14496-15 5.2.4.1).
// SPS and PPS entries are complete NAL units without start codes.
type AvcC struct {
	ConfigurationVersion uint8
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
	LengthSizeMinusOne   uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

// ParseAvcC decodes an avcC extension body.
func ParseAvcC(body []byte) *AvcC {
	r := newByteReader(body)
	a := &AvcC{}
	a.ConfigurationVersion = r.u8()
	a.ProfileIndication = r.u8()
	a.ProfileCompatibility = r.u8()
	a.LevelIndication = r.u8()
	a.LengthSizeMinusOne = r.u8() & 0x03
	numSPS := int(r.u8() & 0x1F)
	for i := 0; i < numSPS && !r.short; i++ {
		n := int(r.u16())
		if sps := r.bytes(n); sps != nil {
			a.SPS = append(a.SPS, sps)
		}
	}
	numPPS := int(r.u8())
	for i := 0; i < numPPS && !r.short; i++ {
		n := int(r.u16())
		if pps := r.bytes(n); pps != nil {
			a.PPS = append(a.PPS, pps)
		}
	}
	return a
}

// HvcC is the HEVCDecoderConfigurationRecord (ISO/IEC 14496-15 8.3.3.1).
// The NAL arrays are grouped by type; each entry is a complete NAL unit
// without start code, 16-bit length prefixed on the wire.
type HvcC struct {
	ConfigurationVersion uint8
	GeneralProfileSpace  uint8
	GeneralTierFlag      uint8
	GeneralProfileIdc    uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64
	GeneralLevelIdc      uint8
	ChromaFormatIdc      uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
	LengthSizeMinusOne   uint8
	VPS                  [][]byte
	SPS                  [][]byte
	PPS                  [][]byte
	SEI                  [][]byte
}

// ParseHvcC decodes an hvcC extension body.
func ParseHvcC(body []byte) *HvcC {
	r := newByteReader(body)
	h := &HvcC{}
	h.ConfigurationVersion = r.u8()
	b := r.u8()
	h.GeneralProfileSpace = b >> 6
	h.GeneralTierFlag = (b >> 5) & 0x01
	h.GeneralProfileIdc = b & 0x1F
	h.GeneralProfileCompatibilityFlags = r.u32()
	h.GeneralConstraintIndicatorFlags = r.uvar(6)
	h.GeneralLevelIdc = r.u8()
	r.skip(2) // reserved + min_spatial_segmentation_idc
	r.skip(1) // reserved + parallelismType
	h.ChromaFormatIdc = r.u8() & 0x03
	h.BitDepthLumaMinus8 = r.u8() & 0x07
	h.BitDepthChromaMinus8 = r.u8() & 0x07
	r.skip(2) // avgFrameRate
	b = r.u8() // constantFrameRate + numTemporalLayers + temporalIdNested + lengthSizeMinusOne
	h.LengthSizeMinusOne = b & 0x03
	numArrays := int(r.u8())
	for i := 0; i < numArrays && !r.short; i++ {
		nalType := r.u8() & 0x3F
		numNalus := int(r.u16())
		for j := 0; j < numNalus && !r.short; j++ {
			n := int(r.u16())
			nalu := r.bytes(n)
			if nalu == nil {
				break
			}
			switch nalType {
			case 32:
				h.VPS = append(h.VPS, nalu)
			case 33:
				h.SPS = append(h.SPS, nalu)
			case 34:
				h.PPS = append(h.PPS, nalu)
			case 39, 40:
				h.SEI = append(h.SEI, nalu)
			}
		}
	}
	return h
}

// SttsEntry is one run of equal sample durations.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Stts is the decoding time-to-sample box.
type Stts struct {
	Version uint8
	Flags   uint32
	Entries []SttsEntry
}

// ExpandDeltas flattens the run-length entries into one delta per
// sample.
func (s *Stts) ExpandDeltas() []uint32 {
	var out []uint32
	for _, e := range s.Entries {
		if e.SampleCount > 1<<22 {
			// A corrupt count would allocate gigabytes; stop expanding.
			break
		}
		for i := uint32(0); i < e.SampleCount; i++ {
			out = append(out, e.SampleDelta)
		}
	}
	return out
}

func parseStts(body []byte) *Stts {
	r := newByteReader(body)
	s := &Stts{}
	s.Version = r.u8()
	s.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		e := SttsEntry{SampleCount: r.u32(), SampleDelta: r.u32()}
		if r.short {
			break
		}
		s.Entries = append(s.Entries, e)
	}
	return s
}

// CttsEntry is one run of equal composition offsets.
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int64
}

// Ctts is the composition time-to-sample box.
type Ctts struct {
	Version uint8
	Flags   uint32
	Entries []CttsEntry
}

func parseCtts(body []byte) *Ctts {
	r := newByteReader(body)
	c := &Ctts{}
	c.Version = r.u8()
	c.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		e := CttsEntry{SampleCount: r.u32()}
		raw := r.u32()
		if c.Version == 1 {
			e.SampleOffset = int64(int32(raw))
		} else {
			e.SampleOffset = int64(raw)
		}
		if r.short {
			break
		}
		c.Entries = append(c.Entries, e)
	}
	return c
}

// Stss is the sync (keyframe) sample box.
type Stss struct {
	Version       uint8
	Flags         uint32
	SampleNumbers []uint32
}

func parseStss(body []byte) *Stss {
	r := newByteReader(body)
	s := &Stss{}
	s.Version = r.u8()
	s.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		n := r.u32()
		if r.short {
			break
		}
		s.SampleNumbers = append(s.SampleNumbers, n)
	}
	return s
}

// StscEntry is one chunk-mapping run.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// Stsc is the sample-to-chunk box.
type Stsc struct {
	Version uint8
	Flags   uint32
	Entries []StscEntry
}

func parseStsc(body []byte) *Stsc {
	r := newByteReader(body)
	s := &Stsc{}
	s.Version = r.u8()
	s.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		e := StscEntry{
			FirstChunk:             r.u32(),
			SamplesPerChunk:        r.u32(),
			SampleDescriptionIndex: r.u32(),
		}
		if r.short {
			break
		}
		s.Entries = append(s.Entries, e)
	}
	return s
}

// Stsz is the sample size box. A non-zero SampleSize means all samples
// share it; Sizes then repeats that size once per sample.
type Stsz struct {
	Version    uint8
	Flags      uint32
	SampleSize uint32
	Sizes      []uint32
}

// TotalSize sums every sample size.
func (s *Stsz) TotalSize() uint64 {
	if s.SampleSize != 0 {
		return uint64(s.SampleSize) * uint64(len(s.Sizes))
	}
	var total uint64
	for _, sz := range s.Sizes {
		total += uint64(sz)
	}
	return total
}

// Count returns the number of samples.
func (s *Stsz) Count() int {
	return len(s.Sizes)
}

func parseStsz(body []byte) *Stsz {
	r := newByteReader(body)
	s := &Stsz{}
	s.Version = r.u8()
	s.Flags = r.u24()
	s.SampleSize = r.u32()
	count := r.u32()
	if count > 1<<24 {
		return s
	}
	if s.SampleSize == 0 {
		for i := uint32(0); i < count && !r.short; i++ {
			sz := r.u32()
			if r.short {
				break
			}
			s.Sizes = append(s.Sizes, sz)
		}
	} else {
		// Uniform size; keep the count via a filled slice of that size.
		for i := uint32(0); i < count; i++ {
			s.Sizes = append(s.Sizes, s.SampleSize)
		}
	}
	return s
}

// Stco is the 32-bit chunk offset box.
type Stco struct {
	Version uint8
	Flags   uint32
	Offsets []uint64
}

func parseStco(body []byte) *Stco {
	r := newByteReader(body)
	s := &Stco{}
	s.Version = r.u8()
	s.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		off := r.u32()
		if r.short {
			break
		}
		s.Offsets = append(s.Offsets, uint64(off))
	}
	return s
}

func parseCo64(body []byte) *Stco {
	r := newByteReader(body)
	s := &Stco{}
	s.Version = r.u8()
	s.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		off := r.u64()
		if r.short {
			break
		}
		s.Offsets = append(s.Offsets, off)
	}
	return s
}
