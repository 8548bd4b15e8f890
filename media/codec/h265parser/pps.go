package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// TileConfig is the tile sub-syntax of the PPS; explicit column widths
// and row heights are present only when spacing is not uniform.
type TileConfig struct {
	NumTileColumnsMinus1 uint
	NumTileRowsMinus1    uint
	UniformSpacingFlag   bool
	ColumnWidthMinus1    []uint
	RowHeightMinus1      []uint
	LoopFilterAcrossTilesEnabledFlag bool
}

// PPSRangeExtension is pps_range_extension() (7.3.2.3.2).
type PPSRangeExtension struct {
	Log2MaxTransformSkipBlockSizeMinus2 uint
	CrossComponentPredictionEnabledFlag bool
	ChromaQpOffsetListEnabledFlag       bool
	DiffCuChromaQpOffsetDepth           uint
	ChromaQpOffsetListLenMinus1         uint
	CbQpOffsetList                      []int
	CrQpOffsetList                      []int
	Log2SaoOffsetScaleLuma              uint
	Log2SaoOffsetScaleChroma            uint
}

// ColourMappingOctants is the recursive octant descent of the colour
// mapping table (F.7.3.2.3.5).
type ColourMappingOctants struct {
	SplitOctantFlag bool
	Children        []*ColourMappingOctants
	CodedResFlag    []bool
	ResCoeffs       [][]ColourMappingResCoeff
}

// ColourMappingResCoeff is one residual coefficient triple component.
type ColourMappingResCoeff struct {
	ResCoeffQ        uint
	ResCoeffSignFlag bool
	ResCoeffAbsMinus1 uint
}

// ColourMappingTable is colour_mapping_table() (F.7.3.2.3.4).
type ColourMappingTable struct {
	NumCmRefLayersMinus1        uint
	CmRefLayerID                []uint
	CmOctantDepth               uint
	CmYPartNumLog2              uint
	LumaBitDepthCmInputMinus8   uint
	ChromaBitDepthCmInputMinus8 uint
	LumaBitDepthCmOutputMinus8  uint
	ChromaBitDepthCmOutputMinus8 uint
	CmResQuantBits              uint
	CmDeltaFlcBitsMinus1        uint
	CmAdaptThresholdUDelta      int
	CmAdaptThresholdVDelta      int
	Octants                     *ColourMappingOctants
}

// RefLocOffset is one ref_loc_offset entry of the multilayer extension.
type RefLocOffset struct {
	RefLocOffsetLayerID uint

	ScaledRefLayerOffsetPresentFlag bool
	ScaledRefLayerLeftOffset        int
	ScaledRefLayerTopOffset         int
	ScaledRefLayerRightOffset       int
	ScaledRefLayerBottomOffset      int

	RefRegionOffsetPresentFlag bool
	RefRegionLeftOffset        int
	RefRegionTopOffset         int
	RefRegionRightOffset       int
	RefRegionBottomOffset      int

	ResamplePhaseSetPresentFlag bool
	PhaseHorLuma                uint
	PhaseVerLuma                uint
	PhaseHorChromaPlus8         uint
	PhaseVerChromaPlus8         uint
}

// PPSMultilayerExtension is pps_multilayer_extension() (F.7.3.2.3.4).
type PPSMultilayerExtension struct {
	PocResetInfoPresentFlag  bool
	InferScalingListFlag     bool
	ScalingListRefLayerID    uint
	NumRefLocOffsets         uint
	RefLocOffsets            []RefLocOffset
	ColourMappingEnabledFlag bool
	ColourMappingTable       *ColourMappingTable
}

// DeltaDLT is delta_dlt() (I.7.3.2.3.8).
type DeltaDLT struct {
	NumValDeltaDlt      uint
	MaxDiff             uint
	MinDiffMinus1       uint
	DeltaDltVal0        int
	DeltaValDiffMinusMin []int
}

// PPS3DExtension is pps_3d_extension() (I.7.3.2.3.7).
type PPS3DExtension struct {
	DltsPresentFlag               bool
	DepthLayersMinus1             uint
	BitDepthForDepthLayersMinus8  uint
	DltFlag                       []bool
	DltPredFlag                   []bool
	DltValFlagsPresentFlag        []bool
	DltValueFlag                  [][]bool
	DeltaDLTs                     []*DeltaDLT
}

// PPSSCCExtension is pps_scc_extension() (7.3.2.3.3).
type PPSSCCExtension struct {
	CurrPicRefEnabledFlag                      bool
	ResidualAdaptiveColourTransformEnabledFlag bool
	SliceActQpOffsetsPresentFlag               bool
	ActYQpOffsetPlus5                          int
	ActCbQpOffsetPlus5                         int
	ActCrQpOffsetPlus5                         int
	PalettePredictorInitializersPresentFlag    bool
	NumPalettePredictorInitializers            uint
	MonochromePaletteFlag                      bool
	LumaBitDepthEntryMinus8                    uint
	ChromaBitDepthEntryMinus8                  uint
	PalettePredictorInitializer                [][]uint
	MotionVectorResolutionControlIdc           uint
	IntraBoundaryFilteringDisabledFlag         bool
}

// PPS is a parsed picture parameter set (H.265 7.3.2.3).
type PPS struct {
	PicParameterSetID               uint
	SeqParameterSetID               uint
	DependentSliceSegmentsEnabledFlag bool
	OutputFlagPresentFlag           bool
	NumExtraSliceHeaderBits         uint
	SignDataHidingEnabledFlag       bool
	CabacInitPresentFlag            bool
	NumRefIdxL0DefaultActiveMinus1  uint
	NumRefIdxL1DefaultActiveMinus1  uint
	InitQpMinus26                   int
	ConstrainedIntraPredFlag        bool
	TransformSkipEnabledFlag        bool
	CuQpDeltaEnabledFlag            bool
	DiffCuQpDeltaDepth              uint
	CbQpOffset                      int
	CrQpOffset                      int
	SliceChromaQpOffsetsPresentFlag bool
	WeightedPredFlag                bool
	WeightedBipredFlag              bool
	TransquantBypassEnabledFlag     bool
	TilesEnabledFlag                bool
	EntropyCodingSyncEnabledFlag    bool
	Tiles                           *TileConfig
	LoopFilterAcrossSlicesEnabledFlag bool

	DeblockingFilterControlPresentFlag  bool
	DeblockingFilterOverrideEnabledFlag bool
	DeblockingFilterDisabledFlag        bool
	BetaOffsetDiv2                      int
	TcOffsetDiv2                        int

	ScalingListDataPresentFlag bool
	ScalingListData            *ScalingListData

	ListsModificationPresentFlag      bool
	Log2ParallelMergeLevelMinus2      uint
	SliceSegmentHeaderExtensionPresentFlag bool

	ExtensionPresentFlag    bool
	RangeExtensionFlag      bool
	MultilayerExtensionFlag bool
	Ext3DFlag               bool
	SCCExtensionFlag        bool
	Extension4Bits          uint
	RangeExtension          *PPSRangeExtension
	MultilayerExtension     *PPSMultilayerExtension
	Ext3D                   *PPS3DExtension
	SCCExtension            *PPSSCCExtension
}

// ParsePPS decodes a PPS RBSP (payload after the two-byte NAL header,
// EPB-stripped).
func ParsePPS(data []byte) (pps *PPS, err error) {
	r := bits.NewReader(data)
	pps = &PPS{}

	if pps.PicParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if pps.SeqParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if pps.DependentSliceSegmentsEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.OutputFlagPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.NumExtraSliceHeaderBits, err = readUint(r, 3); err != nil {
		return
	}
	if pps.SignDataHidingEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.CabacInitPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.NumRefIdxL0DefaultActiveMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if pps.NumRefIdxL1DefaultActiveMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if pps.InitQpMinus26, err = r.ReadSE(); err != nil {
		return
	}
	if pps.ConstrainedIntraPredFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.TransformSkipEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.CuQpDeltaEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.CuQpDeltaEnabledFlag {
		if pps.DiffCuQpDeltaDepth, err = r.ReadUE(); err != nil {
			return
		}
	}
	if pps.CbQpOffset, err = r.ReadSE(); err != nil {
		return
	}
	if pps.CrQpOffset, err = r.ReadSE(); err != nil {
		return
	}
	if pps.SliceChromaQpOffsetsPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.WeightedPredFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.WeightedBipredFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.TransquantBypassEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.TilesEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.EntropyCodingSyncEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.TilesEnabledFlag {
		tiles := &TileConfig{}
		if tiles.NumTileColumnsMinus1, err = r.ReadUE(); err != nil {
			return
		}
		if tiles.NumTileRowsMinus1, err = r.ReadUE(); err != nil {
			return
		}
		if tiles.UniformSpacingFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if !tiles.UniformSpacingFlag {
			for i := uint(0); i < tiles.NumTileColumnsMinus1; i++ {
				var w uint
				if w, err = r.ReadUE(); err != nil {
					return
				}
				tiles.ColumnWidthMinus1 = append(tiles.ColumnWidthMinus1, w)
			}
			for i := uint(0); i < tiles.NumTileRowsMinus1; i++ {
				var h uint
				if h, err = r.ReadUE(); err != nil {
					return
				}
				tiles.RowHeightMinus1 = append(tiles.RowHeightMinus1, h)
			}
		}
		if tiles.LoopFilterAcrossTilesEnabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
		pps.Tiles = tiles
	}
	if pps.LoopFilterAcrossSlicesEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.DeblockingFilterControlPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.DeblockingFilterControlPresentFlag {
		if pps.DeblockingFilterOverrideEnabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.DeblockingFilterDisabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if !pps.DeblockingFilterDisabledFlag {
			if pps.BetaOffsetDiv2, err = r.ReadSE(); err != nil {
				return
			}
			if pps.TcOffsetDiv2, err = r.ReadSE(); err != nil {
				return
			}
		}
	}
	if pps.ScalingListDataPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.ScalingListDataPresentFlag {
		if pps.ScalingListData, err = parseScalingListData(r); err != nil {
			return
		}
	}
	if pps.ListsModificationPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.Log2ParallelMergeLevelMinus2, err = r.ReadUE(); err != nil {
		return
	}
	if pps.SliceSegmentHeaderExtensionPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.ExtensionPresentFlag, err = r.ReadFlag(); err != nil {
		return pps, nil
	}
	if pps.ExtensionPresentFlag {
		if pps.RangeExtensionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.MultilayerExtensionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.Ext3DFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.SCCExtensionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.Extension4Bits, err = readUint(r, 4); err != nil {
			return
		}
		if pps.RangeExtensionFlag {
			if pps.RangeExtension, err = parsePPSRangeExtension(r, pps.TransformSkipEnabledFlag); err != nil {
				return
			}
		}
		if pps.MultilayerExtensionFlag {
			if pps.MultilayerExtension, err = parsePPSMultilayerExtension(r); err != nil {
				return
			}
		}
		if pps.Ext3DFlag {
			if pps.Ext3D, err = parsePPS3DExtension(r); err != nil {
				return
			}
		}
		if pps.SCCExtensionFlag {
			if pps.SCCExtension, err = parsePPSSCCExtension(r); err != nil {
				return
			}
		}
	}
	return pps, nil
}

func parsePPSRangeExtension(r *bits.Reader, transformSkipEnabled bool) (ext *PPSRangeExtension, err error) {
	ext = &PPSRangeExtension{}
	if transformSkipEnabled {
		if ext.Log2MaxTransformSkipBlockSizeMinus2, err = r.ReadUE(); err != nil {
			return
		}
	}
	if ext.CrossComponentPredictionEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ChromaQpOffsetListEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ChromaQpOffsetListEnabledFlag {
		if ext.DiffCuChromaQpOffsetDepth, err = r.ReadUE(); err != nil {
			return
		}
		if ext.ChromaQpOffsetListLenMinus1, err = r.ReadUE(); err != nil {
			return
		}
		for i := uint(0); i <= ext.ChromaQpOffsetListLenMinus1; i++ {
			var cb, cr int
			if cb, err = r.ReadSE(); err != nil {
				return
			}
			if cr, err = r.ReadSE(); err != nil {
				return
			}
			ext.CbQpOffsetList = append(ext.CbQpOffsetList, cb)
			ext.CrQpOffsetList = append(ext.CrQpOffsetList, cr)
		}
	}
	if ext.Log2SaoOffsetScaleLuma, err = r.ReadUE(); err != nil {
		return
	}
	if ext.Log2SaoOffsetScaleChroma, err = r.ReadUE(); err != nil {
		return
	}
	return ext, nil
}

func parsePPSMultilayerExtension(r *bits.Reader) (ext *PPSMultilayerExtension, err error) {
	ext = &PPSMultilayerExtension{}
	if ext.PocResetInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.InferScalingListFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.InferScalingListFlag {
		if ext.ScalingListRefLayerID, err = readUint(r, 6); err != nil {
			return
		}
	}
	if ext.NumRefLocOffsets, err = r.ReadUE(); err != nil {
		return
	}
	if ext.NumRefLocOffsets > 64 {
		return ext, bits.ErrMalformed
	}
	for i := uint(0); i < ext.NumRefLocOffsets; i++ {
		var off RefLocOffset
		if off.RefLocOffsetLayerID, err = readUint(r, 6); err != nil {
			return
		}
		if off.ScaledRefLayerOffsetPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if off.ScaledRefLayerOffsetPresentFlag {
			if off.ScaledRefLayerLeftOffset, err = r.ReadSE(); err != nil {
				return
			}
			if off.ScaledRefLayerTopOffset, err = r.ReadSE(); err != nil {
				return
			}
			if off.ScaledRefLayerRightOffset, err = r.ReadSE(); err != nil {
				return
			}
			if off.ScaledRefLayerBottomOffset, err = r.ReadSE(); err != nil {
				return
			}
		}
		if off.RefRegionOffsetPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if off.RefRegionOffsetPresentFlag {
			if off.RefRegionLeftOffset, err = r.ReadSE(); err != nil {
				return
			}
			if off.RefRegionTopOffset, err = r.ReadSE(); err != nil {
				return
			}
			if off.RefRegionRightOffset, err = r.ReadSE(); err != nil {
				return
			}
			if off.RefRegionBottomOffset, err = r.ReadSE(); err != nil {
				return
			}
		}
		if off.ResamplePhaseSetPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if off.ResamplePhaseSetPresentFlag {
			if off.PhaseHorLuma, err = r.ReadUE(); err != nil {
				return
			}
			if off.PhaseVerLuma, err = r.ReadUE(); err != nil {
				return
			}
			if off.PhaseHorChromaPlus8, err = r.ReadUE(); err != nil {
				return
			}
			if off.PhaseVerChromaPlus8, err = r.ReadUE(); err != nil {
				return
			}
		}
		ext.RefLocOffsets = append(ext.RefLocOffsets, off)
	}
	if ext.ColourMappingEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ColourMappingEnabledFlag {
		if ext.ColourMappingTable, err = parseColourMappingTable(r); err != nil {
			return
		}
	}
	return ext, nil
}

func parseColourMappingTable(r *bits.Reader) (cmt *ColourMappingTable, err error) {
	cmt = &ColourMappingTable{}
	if cmt.NumCmRefLayersMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if cmt.NumCmRefLayersMinus1 > 61 {
		return cmt, bits.ErrMalformed
	}
	for i := uint(0); i <= cmt.NumCmRefLayersMinus1; i++ {
		var id uint
		if id, err = readUint(r, 6); err != nil {
			return
		}
		cmt.CmRefLayerID = append(cmt.CmRefLayerID, id)
	}
	if cmt.CmOctantDepth, err = readUint(r, 2); err != nil {
		return
	}
	if cmt.CmYPartNumLog2, err = readUint(r, 2); err != nil {
		return
	}
	if cmt.LumaBitDepthCmInputMinus8, err = r.ReadUE(); err != nil {
		return
	}
	if cmt.ChromaBitDepthCmInputMinus8, err = r.ReadUE(); err != nil {
		return
	}
	if cmt.LumaBitDepthCmOutputMinus8, err = r.ReadUE(); err != nil {
		return
	}
	if cmt.ChromaBitDepthCmOutputMinus8, err = r.ReadUE(); err != nil {
		return
	}
	if cmt.CmResQuantBits, err = readUint(r, 2); err != nil {
		return
	}
	if cmt.CmDeltaFlcBitsMinus1, err = readUint(r, 2); err != nil {
		return
	}
	if cmt.CmOctantDepth == 1 {
		if cmt.CmAdaptThresholdUDelta, err = r.ReadSE(); err != nil {
			return
		}
		if cmt.CmAdaptThresholdVDelta, err = r.ReadSE(); err != nil {
			return
		}
	}
	cmt.Octants, err = parseColourMappingOctants(r, cmt, 0, 1<<cmt.CmOctantDepth)
	return cmt, err
}

// parseColourMappingOctants walks the octant tree recursively; the
// depth is bounded by cm_octant_depth (2 bits), so recursion stays
// shallow.
func parseColourMappingOctants(r *bits.Reader, cmt *ColourMappingTable, inpDepth, inpLength uint) (oct *ColourMappingOctants, err error) {
	oct = &ColourMappingOctants{}

	if inpDepth < cmt.CmOctantDepth {
		if oct.SplitOctantFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if oct.SplitOctantFlag {
		for k := 0; k < 8; k++ {
			var child *ColourMappingOctants
			if child, err = parseColourMappingOctants(r, cmt, inpDepth+1, inpLength/2); err != nil {
				return
			}
			oct.Children = append(oct.Children, child)
		}
		return oct, nil
	}
	for i := uint(0); i < inpLength; i++ {
		var coded bool
		if coded, err = r.ReadFlag(); err != nil {
			return
		}
		oct.CodedResFlag = append(oct.CodedResFlag, coded)
		if !coded {
			continue
		}
		var coeffs []ColourMappingResCoeff
		for c := 0; c < 3; c++ {
			var rc ColourMappingResCoeff
			if rc.ResCoeffQ, err = r.ReadUE(); err != nil {
				return
			}
			if rc.ResCoeffSignFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if rc.ResCoeffSignFlag {
				if rc.ResCoeffAbsMinus1, err = r.ReadUE(); err != nil {
					return
				}
			}
			coeffs = append(coeffs, rc)
		}
		oct.ResCoeffs = append(oct.ResCoeffs, coeffs)
	}
	return oct, nil
}

func parsePPS3DExtension(r *bits.Reader) (ext *PPS3DExtension, err error) {
	ext = &PPS3DExtension{}
	if ext.DltsPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if !ext.DltsPresentFlag {
		return ext, nil
	}
	if ext.DepthLayersMinus1, err = readUint(r, 6); err != nil {
		return
	}
	if ext.BitDepthForDepthLayersMinus8, err = readUint(r, 4); err != nil {
		return
	}
	depthMaxValue := (1 << (ext.BitDepthForDepthLayersMinus8 + 8)) - 1
	for i := uint(0); i <= ext.DepthLayersMinus1; i++ {
		var dltFlag bool
		if dltFlag, err = r.ReadFlag(); err != nil {
			return
		}
		ext.DltFlag = append(ext.DltFlag, dltFlag)
		if !dltFlag {
			continue
		}
		var predFlag bool
		if predFlag, err = r.ReadFlag(); err != nil {
			return
		}
		ext.DltPredFlag = append(ext.DltPredFlag, predFlag)
		if predFlag {
			continue
		}
		var valFlagsPresent bool
		if valFlagsPresent, err = r.ReadFlag(); err != nil {
			return
		}
		ext.DltValFlagsPresentFlag = append(ext.DltValFlagsPresentFlag, valFlagsPresent)
		if valFlagsPresent {
			flags := make([]bool, 0, depthMaxValue+1)
			for d := 0; d <= depthMaxValue; d++ {
				var f bool
				if f, err = r.ReadFlag(); err != nil {
					return
				}
				flags = append(flags, f)
			}
			ext.DltValueFlag = append(ext.DltValueFlag, flags)
		} else {
			var dd *DeltaDLT
			if dd, err = parseDeltaDLT(r); err != nil {
				return
			}
			ext.DeltaDLTs = append(ext.DeltaDLTs, dd)
		}
	}
	return ext, nil
}

func parseDeltaDLT(r *bits.Reader) (dd *DeltaDLT, err error) {
	dd = &DeltaDLT{}
	if dd.NumValDeltaDlt, err = r.ReadUE(); err != nil {
		return
	}
	if dd.NumValDeltaDlt == 0 {
		return dd, nil
	}
	if dd.NumValDeltaDlt > 1 {
		if dd.MaxDiff, err = r.ReadUE(); err != nil {
			return
		}
	}
	if dd.NumValDeltaDlt > 2 && dd.MaxDiff > 0 {
		if dd.MinDiffMinus1, err = r.ReadUE(); err != nil {
			return
		}
	}
	if dd.DeltaDltVal0, err = r.ReadSE(); err != nil {
		return
	}
	if dd.MaxDiff > dd.MinDiffMinus1+1 {
		for i := uint(1); i < dd.NumValDeltaDlt; i++ {
			var v int
			if v, err = r.ReadSE(); err != nil {
				return
			}
			dd.DeltaValDiffMinusMin = append(dd.DeltaValDiffMinusMin, v)
		}
	}
	return dd, nil
}

func parsePPSSCCExtension(r *bits.Reader) (ext *PPSSCCExtension, err error) {
	ext = &PPSSCCExtension{}
	if ext.CurrPicRefEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ResidualAdaptiveColourTransformEnabledFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.ResidualAdaptiveColourTransformEnabledFlag {
		if ext.SliceActQpOffsetsPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if ext.ActYQpOffsetPlus5, err = r.ReadSE(); err != nil {
			return
		}
		if ext.ActCbQpOffsetPlus5, err = r.ReadSE(); err != nil {
			return
		}
		if ext.ActCrQpOffsetPlus5, err = r.ReadSE(); err != nil {
			return
		}
	}
	if ext.PalettePredictorInitializersPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ext.PalettePredictorInitializersPresentFlag {
		if ext.NumPalettePredictorInitializers, err = r.ReadUE(); err != nil {
			return
		}
		if ext.NumPalettePredictorInitializers > 0 {
			if ext.MonochromePaletteFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ext.LumaBitDepthEntryMinus8, err = r.ReadUE(); err != nil {
				return
			}
			if !ext.MonochromePaletteFlag {
				if ext.ChromaBitDepthEntryMinus8, err = r.ReadUE(); err != nil {
					return
				}
			}
			numComps := 3
			if ext.MonochromePaletteFlag {
				numComps = 1
			}
			for comp := 0; comp < numComps; comp++ {
				row := make([]uint, 0, ext.NumPalettePredictorInitializers)
				for i := uint(0); i < ext.NumPalettePredictorInitializers; i++ {
					var v uint
					if v, err = readUint(r, int(ext.LumaBitDepthEntryMinus8)+8); err != nil {
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
