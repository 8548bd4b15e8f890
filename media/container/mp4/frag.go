package mp4

// trun flag bits (ISO/IEC 14496-12 8.8.8).
const (
	trunDataOffsetPresent       = 0x000001
	trunFirstSampleFlagsPresent = 0x000004
	trunSampleDurationPresent   = 0x000100
	trunSampleSizePresent       = 0x000200
	trunSampleFlagsPresent      = 0x000400
	trunSampleCompTimePresent   = 0x000800
)

// tfhd flag bits.
const (
	tfhdBaseDataOffsetPresent      = 0x000001
	tfhdSampleDescriptionIdxPresent = 0x000002
	tfhdDefaultSampleDuration      = 0x000008
	tfhdDefaultSampleSize          = 0x000010
	tfhdDefaultSampleFlags         = 0x000020
)

// Mfhd is the movie fragment header box.
type Mfhd struct {
	Version        uint8
	Flags          uint32
	SequenceNumber uint32
}

func parseMfhd(body []byte) *Mfhd {
	r := newByteReader(body)
	m := &Mfhd{}
	m.Version = r.u8()
	m.Flags = r.u24()
	m.SequenceNumber = r.u32()
	return m
}

// Trex carries fragment defaults from mvex.
type Trex struct {
	Version               uint8
	Flags                 uint32
	TrackID               uint32
	DefaultSampleDescriptionIdx uint32
	DefaultSampleDuration uint32
	DefaultSampleSize     uint32
	DefaultSampleFlags    uint32
}

func parseTrex(body []byte) *Trex {
	r := newByteReader(body)
	t := &Trex{}
	t.Version = r.u8()
	t.Flags = r.u24()
	t.TrackID = r.u32()
	t.DefaultSampleDescriptionIdx = r.u32()
	t.DefaultSampleDuration = r.u32()
	t.DefaultSampleSize = r.u32()
	t.DefaultSampleFlags = r.u32()
	return t
}

// Tfhd is the track fragment header box; optional fields are gated by
// flag bits.
type Tfhd struct {
	Version uint8
	Flags   uint32
	TrackID uint32

	BaseDataOffset        uint64
	SampleDescriptionIdx  uint32
	DefaultSampleDuration uint32
	DefaultSampleSize     uint32
	DefaultSampleFlags    uint32
}

func parseTfhd(body []byte) *Tfhd {
	r := newByteReader(body)
	t := &Tfhd{}
	t.Version = r.u8()
	t.Flags = r.u24()
	t.TrackID = r.u32()
	if t.Flags&tfhdBaseDataOffsetPresent != 0 {
		t.BaseDataOffset = r.u64()
	}
	if t.Flags&tfhdSampleDescriptionIdxPresent != 0 {
		t.SampleDescriptionIdx = r.u32()
	}
	if t.Flags&tfhdDefaultSampleDuration != 0 {
		t.DefaultSampleDuration = r.u32()
	}
	if t.Flags&tfhdDefaultSampleSize != 0 {
		t.DefaultSampleSize = r.u32()
	}
	if t.Flags&tfhdDefaultSampleFlags != 0 {
		t.DefaultSampleFlags = r.u32()
	}
	return t
}

// TrunSample is one per-sample record of a trun box; only the fields
// selected by the trun flags are meaningful.
type TrunSample struct {
	Duration              uint32
	Size                  uint32
	Flags                 uint32
	CompositionTimeOffset int64
}

// Trun is the track fragment run box.
type Trun struct {
	Version          uint8
	Flags            uint32
	SampleCount      uint32
	DataOffset       int32
	FirstSampleFlags uint32
	Samples          []TrunSample
}

func parseTrun(body []byte) *Trun {
	r := newByteReader(body)
	t := &Trun{}
	t.Version = r.u8()
	t.Flags = r.u24()
	t.SampleCount = r.u32()
	if t.Flags&trunDataOffsetPresent != 0 {
		t.DataOffset = int32(r.u32())
	}
	if t.Flags&trunFirstSampleFlagsPresent != 0 {
		t.FirstSampleFlags = r.u32()
	}
	if t.SampleCount > 1<<22 {
		return t
	}
	for i := uint32(0); i < t.SampleCount && !r.short; i++ {
		var s TrunSample
		if t.Flags&trunSampleDurationPresent != 0 {
			s.Duration = r.u32()
		}
		if t.Flags&trunSampleSizePresent != 0 {
			s.Size = r.u32()
		}
		if t.Flags&trunSampleFlagsPresent != 0 {
			s.Flags = r.u32()
		}
		if t.Flags&trunSampleCompTimePresent != 0 {
			raw := r.u32()
			if t.Version == 1 {
				s.CompositionTimeOffset = int64(int32(raw))
			} else {
				s.CompositionTimeOffset = int64(raw)
			}
		}
		if r.short {
			break
		}
		t.Samples = append(t.Samples, s)
	}
	return t
}
