package mp4

import (
	"encoding/binary"
)

// byteReader is a bounds-checked big-endian cursor used by the leaf
// decoders. Reads past the end return zero values and set short, which
// the decoders treat as a truncated (partial) leaf.
type byteReader struct {
	data  []byte
	pos   int
	short bool
}

func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

func (r *byteReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *byteReader) skip(n int) {
	if r.remaining() < n {
		r.pos = len(r.data)
		r.short = true
		return
	}
	r.pos += n
}

func (r *byteReader) bytes(n int) []byte {
	if r.remaining() < n {
		r.pos = len(r.data)
		r.short = true
		return nil
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *byteReader) u8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *byteReader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *byteReader) u24() uint32 {
	b := r.bytes(3)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (r *byteReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *byteReader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *byteReader) uvar(size int) uint64 {
	switch size {
	case 0:
		return 0
	case 4:
		return uint64(r.u32())
	case 8:
		return r.u64()
	default:
		b := r.bytes(size)
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v
	}
}

func (r *byteReader) fourcc() string {
	b := r.bytes(4)
	if b == nil {
		return ""
	}
	return string(b)
}

// parseLeaf decodes the body of a recognized leaf box into Box.Body.
// Unrecognized leaves keep their raw bytes; mdat records only extent.
func parseLeaf(box *Box, data []byte, bodyStart, bodyEnd int64) {
	body := data[bodyStart:bodyEnd]
	switch box.Type {
	case "ftyp":
		box.Body = parseFtyp(body)
	case "mvhd":
		box.Body = parseMvhd(body)
	case "tkhd":
		box.Body = parseTkhd(body)
	case "mdhd":
		box.Body = parseMdhd(body)
	case "hdlr":
		box.Body = parseHdlr(body)
	case "elst":
		box.Body = parseElst(body)
	case "stsd":
		box.Body = parseStsd(body)
	case "stts":
		box.Body = parseStts(body)
	case "ctts":
		box.Body = parseCtts(body)
	case "stss":
		box.Body = parseStss(body)
	case "stsc":
		box.Body = parseStsc(body)
	case "stsz":
		box.Body = parseStsz(body)
	case "stco":
		box.Body = parseStco(body)
	case "co64":
		box.Body = parseCo64(body)
	case "trex":
		box.Body = parseTrex(body)
	case "tfhd":
		box.Body = parseTfhd(body)
	case "trun":
		box.Body = parseTrun(body)
	case "mfhd":
		box.Body = parseMfhd(body)
	case "keys":
		box.Body = parseKeys(body)
	case "data":
		box.Body = parseDataAtom(body)
	case "\xa9xyz":
		box.Body = parseXyz(body)
	case "iloc":
		box.Body = parseIloc(body)
	case "infe":
		box.Body = parseInfe(body)
	case "hvcC":
		box.Body = ParseHvcC(body)
	case "avcC":
		box.Body = ParseAvcC(body)
	case "mdat":
		box.Body = &Mdat{Offset: bodyStart, Length: bodyEnd - bodyStart}
	default:
		box.Raw = body
	}
}

// Ftyp is the file type box.
type Ftyp struct {
	MajorBrand       string
	MinorVersion     uint32
	CompatibleBrands []string
}

func parseFtyp(body []byte) *Ftyp {
	r := newByteReader(body)
	f := &Ftyp{
		MajorBrand:   r.fourcc(),
		MinorVersion: r.u32(),
	}
	for r.remaining() >= 4 {
		f.CompatibleBrands = append(f.CompatibleBrands, r.fourcc())
	}
	return f
}

// Mvhd is the movie header box.
type Mvhd struct {
	Version   uint8
	Flags     uint32
	Timescale uint32
	Duration  uint64
	Rate      uint32
	Volume    uint16
	Matrix    [9]uint32
	NextTrackID uint32
}

func parseMvhd(body []byte) *Mvhd {
	r := newByteReader(body)
	m := &Mvhd{}
	m.Version = r.u8()
	m.Flags = r.u24()
	if m.Version == 1 {
		r.skip(16) // creation_time, modification_time
		m.Timescale = r.u32()
		m.Duration = r.u64()
	} else {
		r.skip(8)
		m.Timescale = r.u32()
		m.Duration = uint64(r.u32())
	}
	m.Rate = r.u32()
	m.Volume = r.u16()
	r.skip(10) // reserved
	for i := 0; i < 9; i++ {
		m.Matrix[i] = r.u32()
	}
	r.skip(24) // pre_defined
	m.NextTrackID = r.u32()
	return m
}

// Tkhd is the track header box. Width and Height are 16.16 fixed point;
// the helpers return the value in pixels, fractional part included.
type Tkhd struct {
	Version  uint8
	Flags    uint32
	TrackID  uint32
	Duration uint64
	Layer    uint16
	Volume   uint16
	Matrix   [9]uint32
	WidthFixed  uint32
	HeightFixed uint32
}

// Width returns the presentation width in pixels.
func (t *Tkhd) Width() float64 {
	return float64(t.WidthFixed) / 65536.0
}

// Height returns the presentation height in pixels.
func (t *Tkhd) Height() float64 {
	return float64(t.HeightFixed) / 65536.0
}

// RotationMatrix returns the (a, b, c, d) entries at matrix indices
// (0, 1, 3, 4), the 2x2 part encoding rotation and flips. Values are
// 16.16 fixed point.
func (t *Tkhd) RotationMatrix() (a, b, c, d int32) {
	return int32(t.Matrix[0]), int32(t.Matrix[1]), int32(t.Matrix[3]), int32(t.Matrix[4])
}

func parseTkhd(body []byte) *Tkhd {
	r := newByteReader(body)
	t := &Tkhd{}
	t.Version = r.u8()
	t.Flags = r.u24()
	if t.Version == 1 {
		r.skip(16)
		t.TrackID = r.u32()
		r.skip(4)
		t.Duration = r.u64()
	} else {
		r.skip(8)
		t.TrackID = r.u32()
		r.skip(4)
		t.Duration = uint64(r.u32())
	}
	r.skip(8) // reserved
	t.Layer = r.u16()
	r.skip(2) // alternate_group
	t.Volume = r.u16()
	r.skip(2) // reserved
	for i := 0; i < 9; i++ {
		t.Matrix[i] = r.u32()
	}
	t.WidthFixed = r.u32()
	t.HeightFixed = r.u32()
	return t
}

// Mdhd is the media header box.
type Mdhd struct {
	Version   uint8
	Flags     uint32
	Timescale uint32
	Duration  uint64
	Language  string
}

func parseMdhd(body []byte) *Mdhd {
	r := newByteReader(body)
	m := &Mdhd{}
	m.Version = r.u8()
	m.Flags = r.u24()
	if m.Version == 1 {
		r.skip(16)
		m.Timescale = r.u32()
		m.Duration = r.u64()
	} else {
		r.skip(8)
		m.Timescale = r.u32()
		m.Duration = uint64(r.u32())
	}
	lang := r.u16()
	m.Language = string([]byte{
		byte((lang>>10)&0x1F) + 0x60,
		byte((lang>>5)&0x1F) + 0x60,
		byte(lang&0x1F) + 0x60,
	})
	return m
}

// Handler type fourccs.
const (
	HandlerVideo   = "vide"
	HandlerSound   = "soun"
	HandlerHint    = "hint"
	HandlerPicture = "pict"
)

// Hdlr is the handler reference box.
type Hdlr struct {
	Version     uint8
	Flags       uint32
	HandlerType string
	Name        string
}

func parseHdlr(body []byte) *Hdlr {
	r := newByteReader(body)
	h := &Hdlr{}
	h.Version = r.u8()
	h.Flags = r.u24()
	r.skip(4) // pre_defined
	h.HandlerType = r.fourcc()
	r.skip(12) // reserved
	if n := r.remaining(); n > 0 {
		name := r.bytes(n)
		for len(name) > 0 && name[len(name)-1] == 0 {
			name = name[:len(name)-1]
		}
		h.Name = string(name)
	}
	return h
}

// emptyEdit32 marks an empty edit in a version 0 edit list.
const emptyEdit32 = 0xFFFFFFFF

// ElstEntry is one edit. MediaTimeRaw keeps the undecoded field so the
// empty-edit sentinel survives; MediaTime exposes the signed value.
type ElstEntry struct {
	SegmentDuration uint64
	MediaTimeRaw    uint64
	MediaRate       uint32
	Version         uint8
}

// Empty reports whether the edit is an empty edit (media_time == -1).
func (e ElstEntry) Empty() bool {
	if e.Version == 1 {
		return e.MediaTimeRaw == 0xFFFFFFFFFFFFFFFF
	}
	return e.MediaTimeRaw == emptyEdit32
}

// MediaTime returns the signed media time of the edit.
func (e ElstEntry) MediaTime() int64 {
	if e.Version == 1 {
		return int64(e.MediaTimeRaw)
	}
	return int64(int32(uint32(e.MediaTimeRaw)))
}

// Elst is the edit list box.
type Elst struct {
	Version uint8
	Flags   uint32
	Entries []ElstEntry
}

func parseElst(body []byte) *Elst {
	r := newByteReader(body)
	e := &Elst{}
	e.Version = r.u8()
	e.Flags = r.u24()
	count := r.u32()
	for i := uint32(0); i < count && !r.short; i++ {
		var entry ElstEntry
		entry.Version = e.Version
		if e.Version == 1 {
			entry.SegmentDuration = r.u64()
			entry.MediaTimeRaw = r.u64()
		} else {
			entry.SegmentDuration = uint64(r.u32())
			entry.MediaTimeRaw = uint64(r.u32())
		}
		entry.MediaRate = r.u32()
		if r.short {
			break
		}
		e.Entries = append(e.Entries, entry)
	}
	return e
}

// Mdat records the payload extent; the bytes themselves stay in the
// file buffer.
type Mdat struct {
	Offset int64
	Length int64
}

// Xyz is the udta geotag string (ISO 6709).
type Xyz struct {
	Language uint16
	Value    string
}

func parseXyz(body []byte) *Xyz {
	r := newByteReader(body)
	x := &Xyz{}
	n := int(r.u16())
	x.Language = r.u16()
	if n > r.remaining() {
		n = r.remaining()
	}
	x.Value = string(r.bytes(n))
	return x
}
