package h265parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KimVegetable/miat/utils/bits"
)

// writePTL encodes a Main-profile profile_tier_level with no sub-layers.
func writePTL(w *bits.Writer) {
	w.WriteBits(0, 2)  // general_profile_space
	w.WriteBit(0)      // general_tier_flag
	w.WriteBits(1, 5)  // general_profile_idc (Main)
	w.WriteBits(0, 32) // general_profile_compatibility_flags
	w.WriteBit(1)      // general_progressive_source_flag
	w.WriteBit(0)      // general_interlaced_source_flag
	w.WriteBit(0)      // general_non_packed_constraint_flag
	w.WriteBit(1)      // general_frame_only_constraint_flag
	w.WriteBits(0, 43) // general_reserved_zero_43bits
	w.WriteBit(0)      // general_inbld_flag (profile 1)
	w.WriteBits(93, 8) // general_level_idc
}

// mainSPS encodes a 64x64 Main-profile SPS with no short-term RPS sets
// and no extensions.
func mainSPS() []byte {
	w := bits.NewWriter()
	w.WriteBits(0, 4) // sps_video_parameter_set_id
	w.WriteBits(0, 3) // sps_max_sub_layers_minus1
	w.WriteBit(1)     // sps_temporal_id_nesting_flag
	writePTL(w)
	w.WriteUE(0)  // sps_seq_parameter_set_id
	w.WriteUE(1)  // chroma_format_idc (4:2:0)
	w.WriteUE(64) // pic_width_in_luma_samples
	w.WriteUE(64) // pic_height_in_luma_samples
	w.WriteBit(0) // conformance_window_flag
	w.WriteUE(0)  // bit_depth_luma_minus8
	w.WriteUE(0)  // bit_depth_chroma_minus8
	w.WriteUE(0)  // log2_max_pic_order_cnt_lsb_minus4
	w.WriteBit(0) // sps_sub_layer_ordering_info_present_flag
	w.WriteUE(1)  // sps_max_dec_pic_buffering_minus1
	w.WriteUE(0)  // sps_max_num_reorder_pics
	w.WriteUE(0)  // sps_max_latency_increase_plus1
	w.WriteUE(0)  // log2_min_luma_coding_block_size_minus3
	w.WriteUE(3)  // log2_diff_max_min_luma_coding_block_size -> 64 CTU
	w.WriteUE(0)  // log2_min_luma_transform_block_size_minus2
	w.WriteUE(0)  // log2_diff_max_min_luma_transform_block_size
	w.WriteUE(0)  // max_transform_hierarchy_depth_inter
	w.WriteUE(0)  // max_transform_hierarchy_depth_intra
	w.WriteBit(0) // scaling_list_enabled_flag
	w.WriteBit(0) // amp_enabled_flag
	w.WriteBit(0) // sample_adaptive_offset_enabled_flag
	w.WriteBit(0) // pcm_enabled_flag
	w.WriteUE(0)  // num_short_term_ref_pic_sets
	w.WriteBit(0) // long_term_ref_pics_present_flag
	w.WriteBit(0) // sps_temporal_mvp_enabled_flag
	w.WriteBit(0) // strong_intra_smoothing_enabled_flag
	w.WriteBit(0) // vui_parameters_present_flag
	w.WriteBit(0) // sps_extension_present_flag
	w.WriteBit(1) // rbsp stop bit
	return w.Bytes()
}

func mainPPS() []byte {
	w := bits.NewWriter()
	w.WriteUE(0)      // pps_pic_parameter_set_id
	w.WriteUE(0)      // pps_seq_parameter_set_id
	w.WriteBit(0)     // dependent_slice_segments_enabled_flag
	w.WriteBit(0)     // output_flag_present_flag
	w.WriteBits(0, 3) // num_extra_slice_header_bits
	w.WriteBit(0)     // sign_data_hiding_enabled_flag
	w.WriteBit(0)     // cabac_init_present_flag
	w.WriteUE(0)      // num_ref_idx_l0_default_active_minus1
	w.WriteUE(0)      // num_ref_idx_l1_default_active_minus1
	w.WriteSE(0)      // init_qp_minus26
	w.WriteBit(0)     // constrained_intra_pred_flag
	w.WriteBit(0)     // transform_skip_enabled_flag
	w.WriteBit(0)     // cu_qp_delta_enabled_flag
	w.WriteSE(0)      // pps_cb_qp_offset
	w.WriteSE(0)      // pps_cr_qp_offset
	w.WriteBit(0)     // pps_slice_chroma_qp_offsets_present_flag
	w.WriteBit(0)     // weighted_pred_flag
	w.WriteBit(0)     // weighted_bipred_flag
	w.WriteBit(0)     // transquant_bypass_enabled_flag
	w.WriteBit(0)     // tiles_enabled_flag
	w.WriteBit(0)     // entropy_coding_sync_enabled_flag
	w.WriteBit(0)     // pps_loop_filter_across_slices_enabled_flag
	w.WriteBit(0)     // deblocking_filter_control_present_flag
	w.WriteBit(0)     // pps_scaling_list_data_present_flag
	w.WriteBit(0)     // lists_modification_present_flag
	w.WriteUE(0)      // log2_parallel_merge_level_minus2
	w.WriteBit(0)     // slice_segment_header_extension_present_flag
	w.WriteBit(0)     // pps_extension_present_flag
	w.WriteBit(1)     // rbsp stop bit
	return w.Bytes()
}

// idrSlice encodes the header of a first IDR_W_RADL slice segment.
func idrSlice() []byte {
	w := bits.NewWriter()
	w.WriteBit(1) // first_slice_segment_in_pic_flag
	w.WriteBit(0) // no_output_of_prior_pics_flag (IRAP)
	w.WriteUE(0)  // slice_pic_parameter_set_id
	w.WriteUE(2)  // slice_type I
	w.WriteSE(0)  // slice_qp_delta
	w.WriteBit(1) // byte-alignment stop bit
	w.WriteBits(0xAB, 8) // opaque slice data
	return w.Bytes()
}

// craSlice encodes a CRA slice header carrying a POC lsb and an
// explicit short-term RPS.
func craSlice(pocLsb uint) []byte {
	w := bits.NewWriter()
	w.WriteBit(1)                  // first_slice_segment_in_pic_flag
	w.WriteBit(0)                  // no_output_of_prior_pics_flag (IRAP)
	w.WriteUE(0)                   // slice_pic_parameter_set_id
	w.WriteUE(2)                   // slice_type I
	w.WriteBits(uint64(pocLsb), 4) // slice_pic_order_cnt_lsb
	w.WriteBit(0)                  // short_term_ref_pic_set_sps_flag
	// Explicit RPS at stRpsIdx == num_short_term_ref_pic_sets (0).
	w.WriteUE(1)  // num_negative_pics
	w.WriteUE(0)  // num_positive_pics
	w.WriteUE(0)  // delta_poc_s0_minus1[0]
	w.WriteBit(1) // used_by_curr_pic_s0_flag[0]
	w.WriteSE(0)  // slice_qp_delta
	w.WriteBit(1) // byte-alignment stop bit
	w.WriteBits(0xCD, 8)
	return w.Bytes()
}

func hevcHeader(nalType uint) []byte {
	// forbidden(1)=0 | type(6) | layer(6)=0 | tid+1(3)=1
	return []byte{byte(nalType << 1), 0x01}
}

func annexB(units ...[]byte) []byte {
	var out []byte
	for _, u := range units {
		out = append(out, 0x00, 0x00, 0x00, 0x01)
		out = append(out, u...)
	}
	return out
}

func withHeader(nalType uint, payload []byte) []byte {
	return append(hevcHeader(nalType), payload...)
}

func TestParseSPSMain(t *testing.T) {
	t.Parallel()
	sps, err := ParseSPS(mainSPS())
	require.Nil(t, err)
	require.Equal(t, uint(0), sps.SeqParameterSetID)
	require.Equal(t, uint(1), sps.ChromaFormatIdc)
	require.Equal(t, uint(64), sps.PicWidthInLumaSamples)
	require.Equal(t, uint(64), sps.PicHeightInLumaSamples)
	require.Equal(t, uint(0), sps.Log2MaxPicOrderCntLsbMinus4)
	require.NotNil(t, sps.ProfileTierLevel)
	require.Equal(t, uint(1), sps.ProfileTierLevel.GeneralProfileIdc)
	require.Equal(t, uint(93), sps.ProfileTierLevel.GeneralLevelIdc)
	require.Equal(t, 1, len(sps.SubLayerOrderingInfos))
	require.Equal(t, uint(6), sps.CtbLog2SizeY())
	require.Equal(t, uint(1), sps.PicSizeInCtbsY())
	require.Equal(t, uint(64), sps.Width())
	require.Equal(t, uint(64), sps.Height())
}

func TestParsePPSMain(t *testing.T) {
	t.Parallel()
	pps, err := ParsePPS(mainPPS())
	require.Nil(t, err)
	require.Equal(t, uint(0), pps.PicParameterSetID)
	require.False(t, pps.TilesEnabledFlag)
	require.False(t, pps.ExtensionPresentFlag)
}

func TestParseStreamIDRSlice(t *testing.T) {
	t.Parallel()
	stream := ParseStream(annexB(
		withHeader(NALTypeSPS, mainSPS()),
		withHeader(NALTypePPS, mainPPS()),
		withHeader(NALTypeIDRWRadl, idrSlice()),
	), Options{})

	require.Equal(t, 1, len(stream.SPS))
	require.Equal(t, 1, len(stream.PPS))
	require.Equal(t, 1, len(stream.SliceSegments))

	header := stream.SliceSegments[0].Header
	require.NotNil(t, header)
	require.True(t, header.FirstSliceSegmentInPicFlag)
	require.Equal(t, uint(SliceTypeI), header.SliceType)
	// IDR slices carry no POC lsb.
	require.False(t, header.PicOrderCntLsbPresent)
	require.Equal(t, uint(0), header.PicOrderCntLsb)
}

func TestParseStreamCRASliceWithRPS(t *testing.T) {
	t.Parallel()
	stream := ParseStream(annexB(
		withHeader(NALTypeSPS, mainSPS()),
		withHeader(NALTypePPS, mainPPS()),
		withHeader(NALTypeCraNut, craSlice(6)),
	), Options{})

	require.Equal(t, 1, len(stream.SliceSegments))
	header := stream.SliceSegments[0].Header
	require.NotNil(t, header)
	require.True(t, header.PicOrderCntLsbPresent)
	require.Equal(t, uint(6), header.PicOrderCntLsb)
	require.NotNil(t, header.ShortTermRefPicSet)
	require.Equal(t, uint(1), header.ShortTermRefPicSet.NumNegativePics)
	require.Equal(t, []int{-1}, header.ShortTermRefPicSet.DeltaPocsS0())
}

func TestParseStreamMissingParameterSets(t *testing.T) {
	t.Parallel()
	stream := ParseStream(annexB(
		withHeader(NALTypeIDRWRadl, idrSlice()),
	), Options{})
	require.Equal(t, 1, len(stream.SliceSegments))
	require.Nil(t, stream.SliceSegments[0].Header)
	require.NotEmpty(t, stream.Warnings)
}

func TestParseStreamOutOfBandSets(t *testing.T) {
	t.Parallel()
	opts := Options{
		SPS: [][]byte{withHeader(NALTypeSPS, mainSPS())},
		PPS: [][]byte{withHeader(NALTypePPS, mainPPS())},
	}
	stream := ParseStream(annexB(
		withHeader(NALTypeCraNut, craSlice(3)),
	), opts)
	require.Equal(t, 1, len(stream.SliceSegments))
	header := stream.SliceSegments[0].Header
	require.NotNil(t, header)
	require.Equal(t, uint(3), header.PicOrderCntLsb)
}

func TestParseSEIMasteringDisplay(t *testing.T) {
	t.Parallel()
	w := bits.NewWriter()
	for i := 0; i < 3; i++ {
		w.WriteBits(uint64(1000+i), 16) // display_primaries_x
	}
	for i := 0; i < 3; i++ {
		w.WriteBits(uint64(2000+i), 16) // display_primaries_y
	}
	w.WriteBits(15635, 16)    // white_point_x
	w.WriteBits(16450, 16)    // white_point_y
	w.WriteBits(10000000, 32) // max luminance
	w.WriteBits(50, 32)       // min luminance
	payload := w.Bytes()

	sei := []byte{137, byte(len(payload))}
	sei = append(sei, payload...)
	sei = append(sei, 0x80)

	messages := ParseSEI(sei, nil)
	require.Equal(t, 1, len(messages))
	require.Equal(t, uint(SEIMasteringDisplayColourVolume), messages[0].PayloadType)
	mdcv, ok := messages[0].Parsed.(*MasteringDisplayColourVolume)
	require.True(t, ok)
	require.Equal(t, uint(1000), mdcv.DisplayPrimariesX[0])
	require.Equal(t, uint(16450), mdcv.WhitePointY)
	require.Equal(t, uint(10000000), mdcv.MaxDisplayMasteringLuminance)
	require.Equal(t, uint(50), mdcv.MinDisplayMasteringLuminance)
}

func TestParseSEIUnknownTypeKeptRaw(t *testing.T) {
	t.Parallel()
	sei := []byte{200, 3, 0xAA, 0xBB, 0xCC, 0x80}
	messages := ParseSEI(sei, nil)
	require.Equal(t, 1, len(messages))
	require.Equal(t, uint(200), messages[0].PayloadType)
	require.Equal(t, uint(3), messages[0].PayloadSize)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, messages[0].Payload)
	require.Nil(t, messages[0].Parsed)
}
