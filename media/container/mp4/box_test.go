package mp4

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// box assembles a size-prefixed box for test fixtures.
func box(typ string, payload ...[]byte) []byte {
	var body []byte
	for _, p := range payload {
		body = append(body, p...)
	}
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out, uint32(8+len(body)))
	copy(out[4:], typ)
	return append(out, body...)
}

func fullBox(typ string, version byte, flags uint32, payload ...[]byte) []byte {
	header := []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
	return box(typ, append([][]byte{header}, payload...)...)
}

func u16be(v uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, v)
	return out
}

func u32be(v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out
}

func u64be(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

func TestParseNestedTree(t *testing.T) {
	t.Parallel()
	data := append(
		box("ftyp", []byte("isom"), u32be(0x200), []byte("isomiso2")),
		box("moov",
			box("trak",
				box("mdia",
					fullBox("hdlr", 0, 0, u32be(0), []byte("vide"), make([]byte, 12), []byte("Video\x00")),
				),
			),
		)...,
	)
	tree := Parse(data)
	require.Equal(t, 2, len(tree.Boxes))

	ftypBox, ok := tree.Child("ftyp")
	require.True(t, ok)
	ftyp, ok := ftypBox.Body.(*Ftyp)
	require.True(t, ok)
	require.Equal(t, "isom", ftyp.MajorBrand)
	require.Equal(t, uint32(0x200), ftyp.MinorVersion)
	require.Equal(t, []string{"isom", "iso2"}, ftyp.CompatibleBrands)

	hdlrBox, ok := tree.Path("moov", "trak", "mdia", "hdlr")
	require.True(t, ok)
	hdlr, ok := hdlrBox.Body.(*Hdlr)
	require.True(t, ok)
	require.Equal(t, HandlerVideo, hdlr.HandlerType)
	require.Equal(t, "Video", hdlr.Name)

	// Re-summing child sizes reproduces each container's declared size.
	var verify func(b *Box)
	verify = func(b *Box) {
		if len(b.Children) == 0 {
			return
		}
		var sum uint64 = uint64(b.HeaderLen)
		for _, c := range b.Children {
			sum += c.Size
			verify(c)
		}
		require.Equal(t, b.Size, sum, "box %s", b.Type)
	}
	moov, _ := tree.Child("moov")
	verify(moov)
}

func TestParseExtendedSize(t *testing.T) {
	t.Parallel()
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := make([]byte, 0, 16+len(payload))
	data = append(data, u32be(1)...)
	data = append(data, []byte("blob")...)
	data = append(data, u64be(uint64(16+len(payload)))...)
	data = append(data, payload...)

	tree := Parse(data)
	require.Equal(t, 1, len(tree.Boxes))
	require.Equal(t, uint64(20), tree.Boxes[0].Size)
	require.Equal(t, 16, tree.Boxes[0].HeaderLen)
	require.Equal(t, payload, tree.Boxes[0].Raw)
}

func TestParseSizeZeroExtendsToEOF(t *testing.T) {
	t.Parallel()
	data := append(u32be(0), []byte("wide")...)
	data = append(data, []byte{1, 2, 3, 4, 5}...)
	tree := Parse(data)
	require.Equal(t, 1, len(tree.Boxes))
	require.Equal(t, uint64(13), tree.Boxes[0].Size)
}

func TestParseTruncatedStopsCleanly(t *testing.T) {
	t.Parallel()
	good := box("free", []byte{0, 0})
	// A header whose declared size runs past EOF terminates the level.
	bad := append(u32be(100), []byte("junk")...)
	tree := Parse(append(good, bad...))
	require.Equal(t, 1, len(tree.Boxes))
	require.Equal(t, "free", tree.Boxes[0].Type)
}

func TestParseElst(t *testing.T) {
	t.Parallel()
	body := [][]byte{
		u32be(2), // entry_count
		u32be(1000), u32be(0xFFFFFFFF), u32be(0x00010000),
		u32be(9000), u32be(1200), u32be(0x00010000),
	}
	data := fullBox("elst", 0, 0, body...)
	tree := Parse(data)
	elst, ok := tree.Boxes[0].Body.(*Elst)
	require.True(t, ok)
	require.Equal(t, 2, len(elst.Entries))
	require.True(t, elst.Entries[0].Empty())
	require.False(t, elst.Entries[1].Empty())
	require.Equal(t, int64(1200), elst.Entries[1].MediaTime())
}

func TestParseSampleTables(t *testing.T) {
	t.Parallel()
	stts := fullBox("stts", 0, 0, u32be(2),
		u32be(3), u32be(100),
		u32be(2), u32be(200),
	)
	ctts := fullBox("ctts", 0, 0, u32be(1), u32be(5), u32be(400))
	stsz := fullBox("stsz", 0, 0, u32be(0), u32be(3),
		u32be(10), u32be(20), u32be(30),
	)
	stsc := fullBox("stsc", 0, 0, u32be(1), u32be(1), u32be(3), u32be(1))
	stco := fullBox("stco", 0, 0, u32be(1), u32be(0x1000))
	stbl := box("stbl", stts, ctts, stsz, stsc, stco)

	tree := Parse(stbl)
	sttsBox, ok := tree.Boxes[0].Child("stts")
	require.True(t, ok)
	sttsBody := sttsBox.Body.(*Stts)
	require.Equal(t, []uint32{100, 100, 100, 200, 200}, sttsBody.ExpandDeltas())

	cttsBox, _ := tree.Boxes[0].Child("ctts")
	cttsBody := cttsBox.Body.(*Ctts)
	require.Equal(t, int64(400), cttsBody.Entries[0].SampleOffset)

	stszBox, _ := tree.Boxes[0].Child("stsz")
	stszBody := stszBox.Body.(*Stsz)
	require.Equal(t, 3, stszBody.Count())
	require.Equal(t, uint64(60), stszBody.TotalSize())
}

func TestParseTkhdMatrix(t *testing.T) {
	t.Parallel()
	body := make([]byte, 0, 84)
	body = append(body, 0, 0, 0, 0)            // version/flags
	body = append(body, make([]byte, 8)...)    // times
	body = append(body, u32be(1)...)           // track id
	body = append(body, make([]byte, 4)...)    // reserved
	body = append(body, u32be(3000)...)        // duration
	body = append(body, make([]byte, 8)...)    // reserved
	body = append(body, u16be(0)...)           // layer
	body = append(body, u16be(0)...)           // alternate group
	body = append(body, u16be(0x0100)...)      // volume
	body = append(body, u16be(0)...)           // reserved
	// 90-degree rotation: a=0 b=1 c=-1 d=0 in 16.16.
	matrix := []uint32{
		0, 0x00010000, 0,
		0xFFFF0000, 0, 0,
		0, 0, 0x40000000,
	}
	for _, m := range matrix {
		body = append(body, u32be(m)...)
	}
	body = append(body, u32be(640<<16)...) // width 16.16
	body = append(body, u32be(360<<16)...) // height 16.16

	tree := Parse(box("tkhd", body))
	tkhd, ok := tree.Boxes[0].Body.(*Tkhd)
	require.True(t, ok)
	require.Equal(t, uint32(1), tkhd.TrackID)
	require.Equal(t, uint64(3000), tkhd.Duration)
	require.Equal(t, float64(640), tkhd.Width())
	require.Equal(t, float64(360), tkhd.Height())
	a, b, c, d := tkhd.RotationMatrix()
	require.Equal(t, int32(0), a)
	require.Equal(t, int32(0x00010000), b)
	require.Equal(t, int32(-0x00010000), c)
	require.Equal(t, int32(0), d)
}

func TestParseStsdHvcC(t *testing.T) {
	t.Parallel()
	vps := []byte{0x40, 0x01, 0x0C}
	sps := []byte{0x42, 0x01, 0x01}
	pps := []byte{0x44, 0x01, 0xC0}

	hvcc := make([]byte, 0, 64)
	hvcc = append(hvcc, 1)          // configurationVersion
	hvcc = append(hvcc, 0x01)       // profile space/tier/idc
	hvcc = append(hvcc, u32be(0x60000000)...)
	hvcc = append(hvcc, make([]byte, 6)...) // constraint flags
	hvcc = append(hvcc, 93)         // level
	hvcc = append(hvcc, 0xF0, 0x00) // min_spatial_segmentation
	hvcc = append(hvcc, 0xFC)       // parallelismType
	hvcc = append(hvcc, 0xFD)       // chroma_format_idc 1
	hvcc = append(hvcc, 0xF8)       // bit_depth_luma 0
	hvcc = append(hvcc, 0xF8)       // bit_depth_chroma 0
	hvcc = append(hvcc, 0, 0)       // avgFrameRate
	hvcc = append(hvcc, 0x03)       // lengthSizeMinusOne = 3
	hvcc = append(hvcc, 3)          // numOfArrays
	for _, arr := range []struct {
		nalType byte
		nalu    []byte
	}{{32, vps}, {33, sps}, {34, pps}} {
		hvcc = append(hvcc, arr.nalType)
		hvcc = append(hvcc, u16be(1)...)
		hvcc = append(hvcc, u16be(uint16(len(arr.nalu)))...)
		hvcc = append(hvcc, arr.nalu...)
	}

	entry := make([]byte, 0, 128)
	entry = append(entry, make([]byte, 6)...) // reserved
	entry = append(entry, u16be(1)...)        // data_reference_index
	entry = append(entry, make([]byte, 16)...)
	entry = append(entry, u16be(1920)...) // width
	entry = append(entry, u16be(1080)...) // height
	entry = append(entry, make([]byte, 12)...)
	entry = append(entry, u16be(1)...)         // frame_count
	entry = append(entry, make([]byte, 32)...) // compressor name
	entry = append(entry, u16be(24)...)        // depth
	entry = append(entry, u16be(0xFFFF)...)    // pre_defined
	entry = append(entry, box("hvcC", hvcc)...)

	stsd := fullBox("stsd", 0, 0, u32be(1), box("hvc1", entry))

	tree := Parse(stsd)
	body, ok := tree.Boxes[0].Body.(*Stsd)
	require.True(t, ok)
	require.Equal(t, 1, len(body.Entries))
	e := body.Entries[0]
	require.Equal(t, "hvc1", e.Type)
	require.True(t, e.IsVideo())
	require.Equal(t, uint16(1920), e.Width)
	require.Equal(t, uint16(1080), e.Height)
	require.NotNil(t, e.HvcC)
	require.Equal(t, [][]byte{vps}, e.HvcC.VPS)
	require.Equal(t, [][]byte{sps}, e.HvcC.SPS)
	require.Equal(t, [][]byte{pps}, e.HvcC.PPS)
	require.Equal(t, uint8(3), e.HvcC.LengthSizeMinusOne)
}

func TestParseAvcCRecord(t *testing.T) {
	t.Parallel()
	sps := []byte{0x67, 0x42, 0xC0, 0x1E}
	pps := []byte{0x68, 0xCE, 0x38, 0x80}
	body := []byte{1, 0x42, 0xC0, 0x1E, 0xFF, 0xE1}
	body = append(body, u16be(uint16(len(sps)))...)
	body = append(body, sps...)
	body = append(body, 1)
	body = append(body, u16be(uint16(len(pps)))...)
	body = append(body, pps...)

	avcc := ParseAvcC(body)
	require.Equal(t, uint8(3), avcc.LengthSizeMinusOne)
	require.Equal(t, [][]byte{sps}, avcc.SPS)
	require.Equal(t, [][]byte{pps}, avcc.PPS)
}

func TestParseTrunCompositionOffsets(t *testing.T) {
	t.Parallel()
	flags := uint32(trunSampleDurationPresent | trunSampleSizePresent | trunSampleCompTimePresent)
	body := [][]byte{
		u32be(2), // sample_count
		u32be(100), u32be(4000), u32be(200),
		u32be(100), u32be(4100), u32be(200),
	}
	data := fullBox("trun", 0, flags, body...)
	tree := Parse(data)
	trun, ok := tree.Boxes[0].Body.(*Trun)
	require.True(t, ok)
	require.Equal(t, uint32(2), trun.SampleCount)
	require.Equal(t, 2, len(trun.Samples))
	require.Equal(t, int64(200), trun.Samples[0].CompositionTimeOffset)
	require.Equal(t, uint32(4100), trun.Samples[1].Size)
}

func TestMetaKeyValues(t *testing.T) {
	t.Parallel()
	keyName := []byte("com.apple.quicktime.model")
	keyEntry := append(u32be(uint32(8+len(keyName))), []byte("mdta")...)
	keyEntry = append(keyEntry, keyName...)
	keys := fullBox("keys", 0, 0, u32be(1), keyEntry)

	dataAtom := fullBox("data", 0, 1, u32be(0), []byte("iPhone 15"))
	item := box("\x00\x00\x00\x01", dataAtom)
	ilst := box("ilst", item)

	meta := fullBox("meta", 0, 0, keys, ilst)
	tree := Parse(meta)

	kvs := MetaKeyValues(tree.Boxes[0])
	require.Equal(t, 1, len(kvs))
	require.Equal(t, "com.apple.quicktime.model", kvs[0].Key)
	require.Equal(t, "iPhone 15", kvs[0].Value)
}

func TestSampleTableConsistent(t *testing.T) {
	t.Parallel()
	stts := fullBox("stts", 0, 0, u32be(1), u32be(3), u32be(100))
	stsz := fullBox("stsz", 0, 0, u32be(0), u32be(3), u32be(10), u32be(20), u32be(30))
	stsc := fullBox("stsc", 0, 0, u32be(1), u32be(1), u32be(3), u32be(1))
	stco := fullBox("stco", 0, 0, u32be(1), u32be(0x30))
	hdlr := fullBox("hdlr", 0, 0, u32be(0), []byte("vide"), make([]byte, 12))
	stbl := box("stbl", stts, stsz, stsc, stco)
	minf := box("minf", stbl)
	mdia := box("mdia", hdlr, minf)
	trak := box("trak", mdia)
	moov := box("moov", trak)
	mdat := box("mdat", make([]byte, 60))
	data := append(moov, mdat...)

	tree := Parse(data)
	trakBox, ok := tree.FirstVideoTrak()
	require.True(t, ok)
	require.True(t, tree.SampleTableConsistent(trakBox))
	require.Equal(t, int64(60), tree.MdatTotal())
}
