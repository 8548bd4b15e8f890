package binder

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/KimVegetable/miat/media/demux"
	"github.com/KimVegetable/miat/media/record"
	"github.com/KimVegetable/miat/utils/bits"
)

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

// The HEVC fixtures below mirror the synthesized parameter sets used by
// the codec parser tests: a Main-profile 64x64 SPS, a minimal PPS and a
// VPS, each as a complete NAL unit with its two-byte header.

func writeHEVCPTL(w *bits.Writer) {
	w.WriteBits(0, 2)
	w.WriteBit(0)
	w.WriteBits(1, 5)
	w.WriteBits(0, 32)
	w.WriteBit(1)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(1)
	w.WriteBits(0, 43)
	w.WriteBit(0)
	w.WriteBits(93, 8)
}

func hevcNAL(nalType uint, payload []byte) []byte {
	return append([]byte{byte(nalType << 1), 0x01}, payload...)
}

func hevcVPS() []byte {
	w := bits.NewWriter()
	w.WriteBits(0, 4)       // vps_video_parameter_set_id
	w.WriteBit(1)           // vps_base_layer_internal_flag
	w.WriteBit(1)           // vps_base_layer_available_flag
	w.WriteBits(0, 6)       // vps_max_layers_minus1
	w.WriteBits(0, 3)       // vps_max_sub_layers_minus1
	w.WriteBit(1)           // vps_temporal_id_nesting_flag
	w.WriteBits(0xFFFF, 16) // reserved
	writeHEVCPTL(w)
	w.WriteBit(0)     // vps_sub_layer_ordering_info_present_flag
	w.WriteUE(1)      // vps_max_dec_pic_buffering_minus1
	w.WriteUE(0)      // vps_max_num_reorder_pics
	w.WriteUE(0)      // vps_max_latency_increase_plus1
	w.WriteBits(0, 6) // vps_max_layer_id
	w.WriteUE(0)      // vps_num_layer_sets_minus1
	w.WriteBit(0)     // vps_timing_info_present_flag
	w.WriteBit(0)     // vps_extension_flag
	w.WriteBit(1)     // stop bit
	return hevcNAL(32, w.Bytes())
}

func hevcSPS() []byte {
	w := bits.NewWriter()
	w.WriteBits(0, 4)
	w.WriteBits(0, 3)
	w.WriteBit(1)
	writeHEVCPTL(w)
	w.WriteUE(0)
	w.WriteUE(1)
	w.WriteUE(64)
	w.WriteUE(64)
	w.WriteBit(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteBit(0)
	w.WriteUE(1)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(3)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteUE(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(1)
	return hevcNAL(33, w.Bytes())
}

func hevcPPS() []byte {
	w := bits.NewWriter()
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBits(0, 3)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteSE(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteSE(0)
	w.WriteSE(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteUE(0)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(1)
	return hevcNAL(34, w.Bytes())
}

func hevcIDRSlice() []byte {
	w := bits.NewWriter()
	w.WriteBit(1) // first_slice_segment_in_pic_flag
	w.WriteBit(0) // no_output_of_prior_pics_flag
	w.WriteUE(0)  // slice_pic_parameter_set_id
	w.WriteUE(2)  // slice_type I
	w.WriteSE(0)  // slice_qp_delta
	w.WriteBit(1) // byte-alignment stop bit
	w.WriteBits(0xAB, 8)
	return hevcNAL(19, w.Bytes())
}

func hvcCBody(vps, sps, pps []byte) []byte {
	out := make([]byte, 0, 64)
	out = append(out, 1, 0x01)
	out = append(out, u32be(0x60000000)...)
	out = append(out, make([]byte, 6)...)
	out = append(out, 93, 0xF0, 0x00, 0xFC, 0xFD, 0xF8, 0xF8, 0, 0, 0x03)
	out = append(out, 3)
	for _, arr := range []struct {
		nalType byte
		nalu    []byte
	}{{32, vps}, {33, sps}, {34, pps}} {
		out = append(out, arr.nalType)
		out = append(out, u16be(1)...)
		out = append(out, u16be(uint16(len(arr.nalu)))...)
		out = append(out, arr.nalu...)
	}
	return out
}

// TestParseHEIFStill reconstructs the elementary stream of a HEIF
// still: one hvcC property supplies the parameter sets and one iloc
// extent supplies the start-coded slice item.
func TestParseHEIFStill(t *testing.T) {
	t.Parallel()
	vps, sps, pps := hevcVPS(), hevcSPS(), hevcPPS()
	slice := hevcIDRSlice()

	// The item payload carries a 4-byte length prefix that the binder
	// replaces with a start code.
	item := append(u32be(uint32(len(slice))), slice...)

	// Assemble meta first with a placeholder extent offset; the item
	// payload goes after the meta box.
	buildFile := func(extentOffset uint32) []byte {
		iloc := fullBox("iloc", 0, 0,
			[]byte{0x44, 0x00},  // offset_size 4, length_size 4, base 0
			u16be(1),            // item_count
			u16be(1),            // item_ID
			u16be(0),            // data_reference_index
			u16be(1),            // extent_count
			u32be(extentOffset), // extent_offset
			u32be(uint32(len(item))), // extent_length
		)
		meta := fullBox("meta", 0, 0,
			box("iprp", box("ipco", box("hvcC", hvcCBody(vps, sps, pps)))),
			iloc,
		)
		file := append([]byte{}, box("ftyp", []byte("heic"), u32be(0))...)
		file = append(file, meta...)
		file = append(file, item...)
		return file
	}
	probe := buildFile(0)
	extentOffset := uint32(len(probe) - len(item))
	file := buildFile(extentOffset)

	dir := t.TempDir()
	path := filepath.Join(dir, "still.heic")
	require.Nil(t, os.WriteFile(path, file, 0o644))

	b := New(nil)
	rec, err := b.Parse(context.Background(), path)
	require.Nil(t, err)
	require.Equal(t, 1, len(rec.VideoStreams))

	vs := rec.VideoStreams[0]
	require.Equal(t, record.CodecH265, vs.Codec)
	require.NotNil(t, vs.H265)
	require.Equal(t, 1, len(vs.H265.VPS))
	require.Equal(t, 1, len(vs.H265.SPS))
	require.Equal(t, 1, len(vs.H265.PPS))
	require.Equal(t, 1, len(vs.H265.SliceSegments))
	require.NotNil(t, vs.H265.SliceSegments[0].Header)
	require.Equal(t, uint(64), vs.H265.SPS[0].PicWidthInLumaSamples)
}

// TestParseMoovAvc1 exercises the avcC path: the demuxer returns the
// elementary stream and the parameter sets come from the container.
func TestParseMoovAvc1(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	spsNAL := []byte{0x67, 0x42, 0xC0, 0x1E, 0xD9, 0x01, 0x40, 0x7B, 0x20}
	ppsNAL := []byte{0x68, 0xCE, 0x38, 0x80}

	avcc := []byte{1, 0x42, 0xC0, 0x1E, 0xFF, 0xE1}
	avcc = append(avcc, u16be(uint16(len(spsNAL)))...)
	avcc = append(avcc, spsNAL...)
	avcc = append(avcc, 1)
	avcc = append(avcc, u16be(uint16(len(ppsNAL)))...)
	avcc = append(avcc, ppsNAL...)

	entry := make([]byte, 0, 128)
	entry = append(entry, make([]byte, 6)...)
	entry = append(entry, u16be(1)...)
	entry = append(entry, make([]byte, 16)...)
	entry = append(entry, u16be(320)...)
	entry = append(entry, u16be(240)...)
	entry = append(entry, make([]byte, 12)...)
	entry = append(entry, u16be(1)...)
	entry = append(entry, make([]byte, 32)...)
	entry = append(entry, u16be(24)...)
	entry = append(entry, u16be(0xFFFF)...)
	entry = append(entry, box("avcC", avcc)...)

	stsd := fullBox("stsd", 0, 0, u32be(1), box("avc1", entry))
	hdlr := fullBox("hdlr", 0, 0, u32be(0), []byte("vide"), make([]byte, 12))
	moov := box("moov", box("trak", box("mdia", hdlr, box("minf", box("stbl", stsd)))))

	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	require.Nil(t, os.WriteFile(path, moov, 0o644))

	mock := demux.NewMockDemuxer(ctrl)
	mock.EXPECT().
		Demux(gomock.Any(), path, "h264").
		Return([]byte{}, nil)

	b := New(mock)
	rec, err := b.Parse(context.Background(), path)
	require.Nil(t, err)
	require.Equal(t, 1, len(rec.VideoStreams))
	vs := rec.VideoStreams[0]
	require.Equal(t, record.CodecH264, vs.Codec)
	require.NotNil(t, vs.H264)
	// The out-of-band sets are installed even with an empty stream.
	require.Equal(t, 1, len(vs.H264.SPS))
	require.Equal(t, 1, len(vs.H264.PPS))
	require.Equal(t, uint(66), vs.H264.SPS[0].ProfileIdc)
}

func TestParseRawH264(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.h264")
	data := append([]byte{0x00, 0x00, 0x00, 0x01}, 0x67, 0x42, 0xC0, 0x1E, 0xD9, 0x01, 0x40, 0x7B, 0x20)
	require.Nil(t, os.WriteFile(path, data, 0o644))

	b := New(nil)
	rec, err := b.Parse(context.Background(), path)
	require.Nil(t, err)
	require.Equal(t, "h264", rec.RawCodec)
	require.Equal(t, 1, len(rec.VideoStreams))
	require.Equal(t, 1, len(rec.VideoStreams[0].H264.SPS))
}

func TestParseUnsupportedExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.Nil(t, os.WriteFile(path, []byte("hello"), 0o644))

	b := New(nil)
	_, err := b.Parse(context.Background(), path)
	require.NotNil(t, err)
}
