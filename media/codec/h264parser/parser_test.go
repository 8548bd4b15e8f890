package h264parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KimVegetable/miat/utils/bits"
)

// baselineSPS returns the payload bits (after the NAL header) of a
// Baseline SPS: profile 66 level 30, POC type 0 with 4-bit lsb, 4-bit
// frame_num, 320x240.
func baselineSPS() []byte {
	w := bits.NewWriter()
	w.WriteBits(66, 8) // profile_idc
	w.WriteBits(0, 8)  // constraint flags + reserved
	w.WriteBits(30, 8) // level_idc
	w.WriteUE(0)       // seq_parameter_set_id
	w.WriteUE(0)       // log2_max_frame_num_minus4
	w.WriteUE(0)       // pic_order_cnt_type
	w.WriteUE(0)       // log2_max_pic_order_cnt_lsb_minus4
	w.WriteUE(1)       // max_num_ref_frames
	w.WriteBit(0)      // gaps_in_frame_num_value_allowed_flag
	w.WriteUE(19)      // pic_width_in_mbs_minus1
	w.WriteUE(14)      // pic_height_in_map_units_minus1
	w.WriteBit(1)      // frame_mbs_only_flag
	w.WriteBit(1)      // direct_8x8_inference_flag
	w.WriteBit(0)      // frame_cropping_flag
	w.WriteBit(0)      // vui_parameters_present_flag
	w.WriteBit(1)      // rbsp stop bit
	return w.Bytes()
}

func baselinePPS() []byte {
	w := bits.NewWriter()
	w.WriteUE(0)        // pic_parameter_set_id
	w.WriteUE(0)        // seq_parameter_set_id
	w.WriteBit(0)       // entropy_coding_mode_flag
	w.WriteBit(0)       // bottom_field_pic_order_in_frame_present_flag
	w.WriteUE(0)        // num_slice_groups_minus1
	w.WriteUE(0)        // num_ref_idx_l0_default_active_minus1
	w.WriteUE(0)        // num_ref_idx_l1_default_active_minus1
	w.WriteBit(0)       // weighted_pred_flag
	w.WriteBits(0, 2)   // weighted_bipred_idc
	w.WriteSE(0)        // pic_init_qp_minus26
	w.WriteSE(0)        // pic_init_qs_minus26
	w.WriteSE(0)        // chroma_qp_index_offset
	w.WriteBit(0)       // deblocking_filter_control_present_flag
	w.WriteBit(0)       // constrained_intra_pred_flag
	w.WriteBit(0)       // redundant_pic_cnt_present_flag
	w.WriteBit(1)       // rbsp stop bit
	return w.Bytes()
}

// idrSliceHeader encodes an IDR slice header (I slice) with the given
// pic_order_cnt_lsb and frame_num against baselineSPS/baselinePPS.
func idrSliceHeader(frameNum, pocLsb uint) []byte {
	w := bits.NewWriter()
	w.WriteUE(0)            // first_mb_in_slice
	w.WriteUE(7)            // slice_type (I, all slices of picture)
	w.WriteUE(0)            // pic_parameter_set_id
	w.WriteBits(uint64(frameNum), 4)
	w.WriteUE(0)            // idr_pic_id
	w.WriteBits(uint64(pocLsb), 4)
	w.WriteBit(0)           // no_output_of_prior_pics_flag
	w.WriteBit(0)           // long_term_reference_flag
	w.WriteSE(0)            // slice_qp_delta
	w.WriteBit(1)           // stop bit stand-in before opaque data
	w.WriteBits(0xFF, 8)    // opaque slice data
	return w.Bytes()
}

func annexB(units ...[]byte) []byte {
	var out []byte
	for _, u := range units {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, u...)
	}
	return out
}

func withHeader(header byte, payload []byte) []byte {
	return append([]byte{header}, payload...)
}

func TestParseSPSBaselineBytes(t *testing.T) {
	t.Parallel()
	// Annex B SPS without start code: 0x67 header, then the RBSP.
	data := []byte{0x67, 0x42, 0xC0, 0x1E, 0xD9, 0x01, 0x40, 0x7B, 0x20}
	sps, err := ParseSPS(data[1:])
	require.Nil(t, err)
	require.Equal(t, uint(66), sps.ProfileIdc)
	require.Equal(t, uint(30), sps.LevelIdc)
	require.Equal(t, uint(0), sps.SeqParameterSetID)
	require.Equal(t, uint(0), sps.Log2MaxFrameNumMinus4)
}

func TestParseSPSSynthesized(t *testing.T) {
	t.Parallel()
	sps, err := ParseSPS(baselineSPS())
	require.Nil(t, err)
	require.Equal(t, uint(66), sps.ProfileIdc)
	require.Equal(t, uint(30), sps.LevelIdc)
	require.Equal(t, uint(0), sps.SeqParameterSetID)
	require.Equal(t, uint(0), sps.Log2MaxFrameNumMinus4)
	require.Equal(t, uint(0), sps.PicOrderCntType)
	require.NotNil(t, sps.Poc0)
	require.Equal(t, uint(0), sps.Poc0.Log2MaxPicOrderCntLsbMinus4)
	require.Equal(t, uint(320), sps.Width())
	require.Equal(t, uint(240), sps.Height())
	// 4:2:0 is implied outside the high profiles.
	require.Equal(t, uint(1), sps.ChromaFormatIdc)
}

func TestParsePPSSynthesized(t *testing.T) {
	t.Parallel()
	sps, err := ParseSPS(baselineSPS())
	require.Nil(t, err)
	pps, err := ParsePPS(baselinePPS(), sps)
	require.Nil(t, err)
	require.Equal(t, uint(0), pps.PicParameterSetID)
	require.False(t, pps.EntropyCodingModeFlag)
	require.False(t, pps.HasTrailingFields)
}

func TestParseStreamSliceHeader(t *testing.T) {
	t.Parallel()
	stream := ParseStream(annexB(
		withHeader(0x67, baselineSPS()),
		withHeader(0x68, baselinePPS()),
		withHeader(0x65, idrSliceHeader(0, 5)),
	), Options{})

	require.Equal(t, 3, len(stream.NALUnits))
	require.Equal(t, 1, len(stream.SPS))
	require.Equal(t, 1, len(stream.PPS))
	require.Equal(t, 1, len(stream.SliceSegments))

	header := stream.SliceSegments[0].Header
	require.NotNil(t, header)
	require.Equal(t, uint(7), header.SliceType)
	require.Equal(t, uint(SliceTypeI), header.CodingType())
	require.Equal(t, uint(0), header.FrameNum)
	require.True(t, header.PicOrderCntLsbPresent)
	require.Equal(t, uint(5), header.PicOrderCntLsb)
	require.True(t, header.IdrPicIDPresent)
	require.NotNil(t, header.DecRefPicMarking)
}

// The bit width used for frame_num must equal log2_max_frame_num_minus4
// + 4, and pic_order_cnt_lsb likewise. A wider SPS shifts the decoded
// values accordingly.
func TestSliceHeaderFieldWidthsFollowSPS(t *testing.T) {
	t.Parallel()
	w := bits.NewWriter()
	w.WriteBits(66, 8)
	w.WriteBits(0, 8)
	w.WriteBits(30, 8)
	w.WriteUE(0) // sps id
	w.WriteUE(2) // log2_max_frame_num_minus4 -> 6-bit frame_num
	w.WriteUE(0) // poc type 0
	w.WriteUE(4) // log2_max_pic_order_cnt_lsb_minus4 -> 8-bit lsb
	w.WriteUE(1)
	w.WriteBit(0)
	w.WriteUE(19)
	w.WriteUE(14)
	w.WriteBit(1)
	w.WriteBit(1)
	w.WriteBit(0)
	w.WriteBit(0)
	w.WriteBit(1)
	sps, err := ParseSPS(w.Bytes())
	require.Nil(t, err)
	pps, err := ParsePPS(baselinePPS(), sps)
	require.Nil(t, err)

	sliceW := bits.NewWriter()
	sliceW.WriteUE(0)          // first_mb_in_slice
	sliceW.WriteUE(7)          // slice_type
	sliceW.WriteUE(0)          // pps id
	sliceW.WriteBits(0x2A, 6)  // frame_num, 6 bits
	sliceW.WriteUE(0)          // idr_pic_id
	sliceW.WriteBits(0xC3, 8)  // pic_order_cnt_lsb, 8 bits
	sliceW.WriteBit(0)
	sliceW.WriteBit(0)
	sliceW.WriteSE(0)
	sliceW.WriteBit(1)

	r := bits.NewReader(sliceW.Bytes())
	header, err := ParseSliceHeader(r, sps, pps, NALTypeIDR, 3)
	require.Nil(t, err)
	require.Equal(t, uint(0x2A), header.FrameNum)
	require.Equal(t, uint(0xC3), header.PicOrderCntLsb)
}

func TestParseStreamMissingPPS(t *testing.T) {
	t.Parallel()
	stream := ParseStream(annexB(
		withHeader(0x65, idrSliceHeader(0, 0)),
	), Options{})
	require.Equal(t, 1, len(stream.SliceSegments))
	// The body stays unparsed; parsing continues without error.
	require.Nil(t, stream.SliceSegments[0].Header)
	require.NotEmpty(t, stream.Warnings)
}

func TestParseStreamOutOfBandParameterSets(t *testing.T) {
	t.Parallel()
	opts := Options{
		SPS: [][]byte{withHeader(0x67, baselineSPS())},
		PPS: [][]byte{withHeader(0x68, baselinePPS())},
	}
	stream := ParseStream(annexB(
		withHeader(0x65, idrSliceHeader(3, 9)),
	), opts)
	require.Equal(t, 1, len(stream.SPS))
	require.Equal(t, 1, len(stream.PPS))
	require.Equal(t, 1, len(stream.SliceSegments))
	header := stream.SliceSegments[0].Header
	require.NotNil(t, header)
	require.Equal(t, uint(3), header.FrameNum)
	require.Equal(t, uint(9), header.PicOrderCntLsb)
}

func TestParseStreamSEIAndAUD(t *testing.T) {
	t.Parallel()
	// SEI: payload type 5 (user data unregistered), 16-byte UUID + data.
	sei := []byte{0x06, 0x05, 0x11}
	uuid := make([]byte, 16)
	for i := range uuid {
		uuid[i] = byte(i)
	}
	sei = append(sei, uuid...)
	sei = append(sei, 0x42, 0x80)

	aud := []byte{0x09, 0x10}

	stream := ParseStream(annexB(sei, aud), Options{})
	require.Equal(t, 1, len(stream.SEI))
	require.Equal(t, uint(5), stream.SEI[0].PayloadType)
	require.NotNil(t, stream.SEI[0].UserData)
	require.Equal(t, uuid, stream.SEI[0].UserData.UUID)
	require.Equal(t, []byte{0x42}, stream.SEI[0].UserData.Data)
	require.Equal(t, 1, len(stream.AUD))
	require.Equal(t, uint(0), stream.AUD[0].PrimaryPicType)
}
