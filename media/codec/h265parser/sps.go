package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// SubLayerOrderingInfo is one entry of the DPB/reorder/latency arrays.
type SubLayerOrderingInfo struct {
	MaxDecPicBufferingMinus1 uint
	MaxNumReorderPics        uint
	MaxLatencyIncreasePlus1  uint
}

// SPSRangeExtension is sps_range_extension() (7.3.2.2.2).
type SPSRangeExtension struct {
	TransformSkipRotationEnabledFlag    bool
	TransformSkipContextEnabledFlag     bool
	ImplicitRdpcmEnabledFlag            bool
	ExplicitRdpcmEnabledFlag            bool
	ExtendedPrecisionProcessingFlag     bool
	IntraSmoothingDisabledFlag          bool
	HighPrecisionOffsetsEnabledFlag     bool
	PersistentRiceAdaptationEnabledFlag bool
	CabacBypassAlignmentEnabledFlag     bool
}

// SPS3DExtension is sps_3d_extension() (I.7.3.2.2.5); fields are per
// depth flag d in {0, 1}.
type SPS3DExtension struct {
	IvDiMcEnabledFlag        [2]bool
	IvMvScalEnabledFlag      [2]bool
	Log2IvmcSubPbSizeMinus3  uint
	IvResPredEnabledFlag     bool
	DepthRefEnabledFlag      bool
	VspMcEnabledFlag         bool
	DbbpEnabledFlag          bool
	TexMcEnabledFlag         bool
	Log2TexmcSubPbSizeMinus3 uint
	IntraContourEnabledFlag  bool
	IntraDcOnlyWedgeEnabledFlag bool
	CqtCuPartPredEnabledFlag bool
	InterDcOnlyEnabledFlag   bool
	SkipIntraEnabledFlag     bool
}

// SPSSCCExtension is sps_scc_extension() (7.3.2.2.3).
type SPSSCCExtension struct {
	CurrPicRefEnabledFlag               bool
	PaletteModeEnabledFlag              bool
	PaletteMaxSize                      uint
	DeltaPaletteMaxPredictorSize        uint
	PalettePredictorInitializersPresent bool
	NumPalettePredictorInitializersMinus1 uint
	PalettePredictorInitializer         [][]uint
	MotionVectorResolutionControlIdc    uint
	IntraBoundaryFilteringDisabledFlag  bool
}

// SPS is a parsed sequence parameter set (H.265 7.3.2.2).
type SPS struct {
	VideoParameterSetID   uint
	MaxSubLayersMinus1    uint
	TemporalIDNestingFlag bool
	ProfileTierLevel      *ProfileTierLevel

	SeqParameterSetID       uint
	ChromaFormatIdc         uint
	SeparateColourPlaneFlag bool
	PicWidthInLumaSamples   uint
	PicHeightInLumaSamples  uint

	ConformanceWindowFlag bool
	ConfWinLeftOffset     uint
	ConfWinRightOffset    uint
	ConfWinTopOffset      uint
	ConfWinBottomOffset   uint

	BitDepthLumaMinus8          uint
	BitDepthChromaMinus8        uint
	Log2MaxPicOrderCntLsbMinus4 uint

	SubLayerOrderingInfoPresentFlag bool
	SubLayerOrderingInfos           []SubLayerOrderingInfo

	Log2MinLumaCodingBlockSizeMinus3     uint
	Log2DiffMaxMinLumaCodingBlockSize    uint
	Log2MinLumaTransformBlockSizeMinus2  uint
	Log2DiffMaxMinLumaTransformBlockSize uint
	MaxTransformHierarchyDepthInter      uint
	MaxTransformHierarchyDepthIntra      uint

	ScalingListEnabledFlag     bool
	ScalingListDataPresentFlag bool
	ScalingListData            *ScalingListData

	AmpEnabledFlag                  bool
	SampleAdaptiveOffsetEnabledFlag bool

	PcmEnabledFlag                       bool
	PcmSampleBitDepthLumaMinus1          uint
	PcmSampleBitDepthChromaMinus1        uint
	Log2MinPcmLumaCodingBlockSizeMinus3  uint
	Log2DiffMaxMinPcmLumaCodingBlockSize uint
	PcmLoopFilterDisabledFlag            bool

	NumShortTermRefPicSets uint
	ShortTermRefPicSets    []*ShortTermRefPicSet

	LongTermRefPicsPresentFlag bool
	NumLongTermRefPicsSps      uint
	LtRefPicPocLsbSps          []uint
	UsedByCurrPicLtSpsFlag     []bool

	TemporalMvpEnabledFlag        bool
	StrongIntraSmoothingEnabledFlag bool

	VuiParametersPresentFlag bool
	VUI                      *VUI

	ExtensionPresentFlag  bool
	RangeExtensionFlag    bool
	MultilayerExtensionFlag bool
	Ext3DFlag             bool
	SCCExtensionFlag      bool
	RangeExtension        *SPSRangeExtension
	// The multilayer extension is a single flag.
	InterViewMvVertConstraintFlag bool
	Ext3D                         *SPS3DExtension
	SCCExtension                  *SPSSCCExtension
}

// CtbLog2SizeY derives the CTB size exponent per 7.4.3.2.1.
func (s *SPS) CtbLog2SizeY() uint {
	return s.Log2MinLumaCodingBlockSizeMinus3 + 3 + s.Log2DiffMaxMinLumaCodingBlockSize
}

// PicSizeInCtbsY derives the picture size in CTBs per 7.4.3.2.1.
func (s *SPS) PicSizeInCtbsY() uint {
	ctbSize := uint(1) << s.CtbLog2SizeY()
	w := (s.PicWidthInLumaSamples + ctbSize - 1) / ctbSize
	h := (s.PicHeightInLumaSamples + ctbSize - 1) / ctbSize
	return w * h
}

// ChromaArrayType per 7.4.3.2.1.
func (s *SPS) ChromaArrayType() uint {
	if s.SeparateColourPlaneFlag {
		return 0
	}
	return s.ChromaFormatIdc
}

// Width returns the display width after the conformance window.
func (s *SPS) Width() uint {
	sub := s.subWidthC()
	crop := (s.ConfWinLeftOffset + s.ConfWinRightOffset) * sub
	if crop > s.PicWidthInLumaSamples {
		return s.PicWidthInLumaSamples
	}
	return s.PicWidthInLumaSamples - crop
}

// Height returns the display height after the conformance window.
func (s *SPS) Height() uint {
	sub := s.subHeightC()
	crop := (s.ConfWinTopOffset + s.ConfWinBottomOffset) * sub
	if crop > s.PicHeightInLumaSamples {
		return s.PicHeightInLumaSamples
	}
	return s.PicHeightInLumaSamples - crop
}

func (s *SPS) subWidthC() uint {
	switch s.ChromaFormatIdc {
	case 1, 2:
		return 2
	default:
		return 1
	}
}

func (s *SPS) subHeightC() uint {
	if s.ChromaFormatIdc == 1 {
		return 2
	}
	return 1
}

// ParseSPS decodes an SPS RBSP (payload after the two-byte NAL header,
// EPB-stripped).
func ParseSPS(data []byte) (sps *SPS, err error) {
	r := bits.NewReader(data)
	sps = &SPS{}

	if sps.VideoParameterSetID, err = readUint(r, 4); err != nil {
		return
	}
	if sps.MaxSubLayersMinus1, err = readUint(r, 3); err != nil {
		return
	}
	if sps.TemporalIDNestingFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.ProfileTierLevel, err = parseProfileTierLevel(r, true, sps.MaxSubLayersMinus1); err != nil {
		return
	}
	if sps.SeqParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if sps.ChromaFormatIdc, err = r.ReadUE(); err != nil {
		return
	}
	if sps.ChromaFormatIdc == 3 {
		if sps.SeparateColourPlaneFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if sps.PicWidthInLumaSamples, err = r.ReadUE(); err != nil {
		return
	}
	if sps.PicHeightInLumaSamples, err = r.ReadUE(); err != nil {
		return
	}
	if sps.ConformanceWindowFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.ConformanceWindowFlag {
		if sps.ConfWinLeftOffset, err = r.ReadUE(); err != nil {
			return
		}
		if sps.ConfWinRightOffset, err = r.ReadUE(); err != nil {
			return
		}
		if sps.ConfWinTopOffset, err = r.ReadUE(); err != nil {
			return
		}
		if sps.ConfWinBottomOffset, err = r.ReadUE(); err != nil {
			return
		}
	}
	if sps.BitDepthLumaMinus8, err = r.ReadUE(); err != nil {
		return
	}
	if sps.BitDepthChromaMinus8, err = r.ReadUE(); err != nil {
		return
	}
	if sps.Log2MaxPicOrderCntLsbMinus4, err = r.ReadUE(); err != nil {
		return
	}
	if sps.SubLayerOrderingInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	start := sps.MaxSubLayersMinus1
	if sps.SubLayerOrderingInfoPresentFlag {
		start = 0
	}
	for i := start; i <= sps.MaxSubLayersMinus1; i++ {
		var info SubLayerOrderingInfo
		if info.MaxDecPicBufferingMinus1, err = r.ReadUE(); err != nil {
			return
		}
		if info.MaxNumReorderPics, err = r.ReadUE(); err != nil {
			return
		}
		if info.MaxLatencyIncreasePlus1, err = r.ReadUE(); err != nil {
			return
		}
		sps.SubLayerOrderingInfos = append(sps.SubLayerOrderingInfos, info)
	}
	if sps.Log2MinLumaCodingBlockSizeMinus3, err = r.ReadUE(); err != nil {
		return
	}
	if sps.Log2DiffMaxMinLumaCodingBlockSize, err = r.ReadUE(); err != nil {
		return
	}
	if sps.Log2MinLumaTransformBlockSizeMinus2, err = r.ReadUE(); err != nil {
		return
	}
	if sps.Log2DiffMaxMinLumaTransformBlockSize, err = r.ReadUE(); err != nil {
		return
	}
	if sps.MaxTransformHierarchyDepthInter, err = r.ReadUE(); err != nil {
		return
	}
	if sps.MaxTransformHierarchyDepthIntra, err = r.ReadUE(); err != nil {
		return
	}
	if sps.ScalingListEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.ScalingListEnabledFlag {
		if sps.ScalingListDataPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.ScalingListDataPresentFlag {
			if sps.ScalingListData, err = parseScalingListData(r); err != nil {
				return
			}
		}
	}
	if sps.AmpEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.SampleAdaptiveOffsetEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.PcmEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.PcmEnabledFlag {
		if sps.PcmSampleBitDepthLumaMinus1, err = readUint(r, 4); err != nil {
			return
		}
		if sps.PcmSampleBitDepthChromaMinus1, err = readUint(r, 4); err != nil {
			return
		}
		if sps.Log2MinPcmLumaCodingBlockSizeMinus3, err = r.ReadUE(); err != nil {
			return
		}
		if sps.Log2DiffMaxMinPcmLumaCodingBlockSize, err = r.ReadUE(); err != nil {
			return
		}
		if sps.PcmLoopFilterDisabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if sps.NumShortTermRefPicSets, err = r.ReadUE(); err != nil {
		return
	}
	if sps.NumShortTermRefPicSets > 64 {
		return sps, bits.ErrMalformed
	}
	for i := uint(0); i < sps.NumShortTermRefPicSets; i++ {
		var rps *ShortTermRefPicSet
		if rps, err = parseShortTermRefPicSet(r, i, sps.NumShortTermRefPicSets, sps.ShortTermRefPicSets); err != nil {
			return
		}
		sps.ShortTermRefPicSets = append(sps.ShortTermRefPicSets, rps)
	}
	if sps.LongTermRefPicsPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.LongTermRefPicsPresentFlag {
		if sps.NumLongTermRefPicsSps, err = r.ReadUE(); err != nil {
			return
		}
		if sps.NumLongTermRefPicsSps > 32 {
			return sps, bits.ErrMalformed
		}
		for i := uint(0); i < sps.NumLongTermRefPicsSps; i++ {
			var lsb uint
			var used bool
			if lsb, err = readUint(r, int(sps.Log2MaxPicOrderCntLsbMinus4)+4); err != nil {
				return
			}
			if used, err = r.ReadFlag(); err != nil {
				return
			}
			sps.LtRefPicPocLsbSps = append(sps.LtRefPicPocLsbSps, lsb)
			sps.UsedByCurrPicLtSpsFlag = append(sps.UsedByCurrPicLtSpsFlag, used)
		}
	}
	if sps.TemporalMvpEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.StrongIntraSmoothingEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.VuiParametersPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.VuiParametersPresentFlag {
		if sps.VUI, err = parseVUI(r, sps.MaxSubLayersMinus1); err != nil {
			// Keep the structurally complete SPS when only the VUI tail
			// is short.
			return sps, nil
		}
	}
	if sps.ExtensionPresentFlag, err = r.ReadFlag(); err != nil {
		return sps, nil
	}
	if sps.ExtensionPresentFlag {
		if sps.RangeExtensionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.MultilayerExtensionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.Ext3DFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.SCCExtensionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.RangeExtensionFlag {
			if sps.RangeExtension, err = parseSPSRangeExtension(r); err != nil {
				return
			}
		}
		if sps.MultilayerExtensionFlag {
			if sps.InterViewMvVertConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if sps.Ext3DFlag {
			if sps.Ext3D, err = parseSPS3DExtension(r); err != nil {
				return
			}
		}
		if sps.SCCExtensionFlag {
			if sps.SCCExtension, err = parseSPSSCCExtension(r, sps.ChromaFormatIdc); err != nil {
				return
			}
		}
	}
	return sps, nil
}

func parseSPSRangeExtension(r *bits.Reader) (ext *SPSRangeExtension, err error) {
	ext = &SPSRangeExtension{}
	if ext.TransformSkipRotationEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.TransformSkipContextEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ImplicitRdpcmEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ExplicitRdpcmEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ExtendedPrecisionProcessingFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.IntraSmoothingDisabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.HighPrecisionOffsetsEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.PersistentRiceAdaptationEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.CabacBypassAlignmentEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return ext, nil
}

func parseSPS3DExtension(r *bits.Reader) (ext *SPS3DExtension, err error) {
	ext = &SPS3DExtension{}
	for d := 0; d < 2; d++ {
		if ext.IvDiMcEnabledFlag[d], err = r.ReadFlag(); err != nil {
			return
		}
		if ext.IvMvScalEnabledFlag[d], err = r.ReadFlag(); err != nil {
			return
		}
		if d == 0 {
			if ext.Log2IvmcSubPbSizeMinus3, err = r.ReadUE(); err != nil {
				return
			}
			if ext.IvResPredEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.DepthRefEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.VspMcEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.DbbpEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
		} else {
			if ext.TexMcEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.Log2TexmcSubPbSizeMinus3, err = r.ReadUE(); err != nil {
				return
			}
			if ext.IntraContourEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.IntraDcOnlyWedgeEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.CqtCuPartPredEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.InterDcOnlyEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.SkipIntraEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
	}
	return ext, nil
}

func parseSPSSCCExtension(r *bits.Reader, chromaFormatIdc uint) (ext *SPSSCCExtension, err error) {
	ext = &SPSSCCExtension{}
	if ext.CurrPicRefEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.PaletteModeEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.PaletteModeEnabledFlag {
		if ext.PaletteMaxSize, err = r.ReadUE(); err != nil {
			return
		}
		if ext.DeltaPaletteMaxPredictorSize, err = r.ReadUE(); err != nil {
			return
		}
		if ext.PalettePredictorInitializersPresent, err = r.ReadFlag(); err != nil {
			return
		}
		if ext.PalettePredictorInitializersPresent {
			if ext.NumPalettePredictorInitializersMinus1, err = r.ReadUE(); err != nil {
				return
			}
			numComps := 3
			if chromaFormatIdc == 0 {
				numComps = 1
			}
			for comp := 0; comp < numComps; comp++ {
				row := make([]uint, 0, ext.NumPalettePredictorInitializersMinus1+1)
				for i := uint(0); i <= ext.NumPalettePredictorInitializersMinus1; i++ {
					var v uint
					if v, err = readUint(r, 8); err != nil {
						return
					}
					row = append(row, v)
				}
				ext.PalettePredictorInitializer = append(ext.PalettePredictorInitializer, row)
			}
		}
	}
	if ext.MotionVectorResolutionControlIdc, err = readUint(r, 2); err != nil {
		return
	}
	if ext.IntraBoundaryFilteringDisabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return ext, nil
}
