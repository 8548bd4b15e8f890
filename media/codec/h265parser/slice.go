package h265parser

import (
	"math"

	"github.com/KimVegetable/miat/utils/bits"
)

// HEVC slice types (Table 7-7).
const (
	SliceTypeB = 0
	SliceTypeP = 1
	SliceTypeI = 2
)

// RefPicListsModification is ref_pic_lists_modification() (7.3.6.2).
type RefPicListsModification struct {
	FlagL0      bool
	ListEntryL0 []uint
	FlagL1      bool
	ListEntryL1 []uint
}

// PredWeightTable is pred_weight_table() (7.3.6.3).
type PredWeightTable struct {
	LumaLog2WeightDenom        uint
	DeltaChromaLog2WeightDenom int

	LumaWeightL0Flag   []bool
	ChromaWeightL0Flag []bool
	DeltaLumaWeightL0  []int
	LumaOffsetL0       []int
	DeltaChromaWeightL0 [][2]int
	DeltaChromaOffsetL0 [][2]int

	LumaWeightL1Flag   []bool
	ChromaWeightL1Flag []bool
	DeltaLumaWeightL1  []int
	LumaOffsetL1       []int
	DeltaChromaWeightL1 [][2]int
	DeltaChromaOffsetL1 [][2]int
}

// LongTermPics carries the long-term reference picture block of the
// slice segment header.
type LongTermPics struct {
	NumLongTermSps       uint
	NumLongTermPics      uint
	LtIdxSps             []uint
	PocLsbLt             []uint
	UsedByCurrPicLtFlag  []bool
	DeltaPocMsbPresentFlag []bool
	DeltaPocMsbCycleLt   []uint
}

// SliceSegmentHeader is slice_segment_header() (7.3.6.1). Optional
// blocks are nil when absent. For a dependent segment only the leading
// fields and the tail (entry points, extension) are decoded; the other
// fields stay at their zero values and are not copied from the prior
// independent segment.
type SliceSegmentHeader struct {
	FirstSliceSegmentInPicFlag bool
	NoOutputOfPriorPicsFlag    bool
	PicParameterSetID          uint
	DependentSliceSegmentFlag  bool
	SliceSegmentAddress        uint

	SliceReservedFlag []bool
	SliceType         uint
	PicOutputFlag     bool
	ColourPlaneID     uint

	PicOrderCntLsb        uint
	PicOrderCntLsbPresent bool

	ShortTermRefPicSetSpsFlag bool
	ShortTermRefPicSet        *ShortTermRefPicSet
	ShortTermRefPicSetIdx     uint

	LongTerm *LongTermPics

	TemporalMvpEnabledFlag bool

	SaoLumaFlag   bool
	SaoChromaFlag bool

	NumRefIdxActiveOverrideFlag bool
	NumRefIdxL0ActiveMinus1     uint
	NumRefIdxL1ActiveMinus1     uint

	RefPicListsModification *RefPicListsModification
	MvdL1ZeroFlag           bool
	CabacInitFlag           bool
	CollocatedFromL0Flag    bool
	CollocatedRefIdx        uint
	PredWeightTable         *PredWeightTable
	FiveMinusMaxNumMergeCand uint
	UseIntegerMvFlag        bool

	SliceQpDelta    int
	SliceCbQpOffset int
	SliceCrQpOffset int

	SliceActYQpOffset  int
	SliceActCbQpOffset int
	SliceActCrQpOffset int

	CuChromaQpOffsetEnabledFlag bool

	DeblockingFilterOverrideFlag      bool
	SliceDeblockingFilterDisabledFlag bool
	SliceBetaOffsetDiv2               int
	SliceTcOffsetDiv2                 int
	SliceLoopFilterAcrossSlicesEnabledFlag bool

	NumEntryPointOffsets  uint
	OffsetLenMinus1       uint
	EntryPointOffsetMinus1 []uint

	ExtensionLength   uint
	ExtensionDataByte []uint
}

// SliceSegment pairs a parsed header with the opaque slice data.
type SliceSegment struct {
	NalUnitType uint
	Header      *SliceSegmentHeader
	Data        []byte
}

// ParseSliceSegmentHeader decodes a slice segment header against its
// active parameter sets.
func ParseSliceSegmentHeader(r *bits.Reader, nalUnitType uint, sps *SPS, pps *PPS) (h *SliceSegmentHeader, err error) {
	h = &SliceSegmentHeader{}

	if h.FirstSliceSegmentInPicFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if nalUnitType >= NALTypeBlaWLP && nalUnitType <= NALTypeRsvIRAPVcl23 {
		if h.NoOutputOfPriorPicsFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if h.PicParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if !h.FirstSliceSegmentInPicFlag {
		if pps.DependentSliceSegmentsEnabledFlag {
			if h.DependentSliceSegmentFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		picSizeInCtbsY := sps.PicSizeInCtbsY()
		if picSizeInCtbsY > 0 {
			n := int(math.Ceil(math.Log2(float64(picSizeInCtbsY))))
			if n < 1 {
				n = 1
			}
			if h.SliceSegmentAddress, err = readUint(r, n); err != nil {
				return
			}
		}
	}

	if h.DependentSliceSegmentFlag {
		// A dependent segment carries no further header fields in the
		// bitstream; only entry points and extensions follow.
		return parseSliceSegmentTail(r, h, sps, pps)
	}

	for i := uint(0); i < pps.NumExtraSliceHeaderBits; i++ {
		var f bool
		if f, err = r.ReadFlag(); err != nil {
			return
		}
		h.SliceReservedFlag = append(h.SliceReservedFlag, f)
	}
	if h.SliceType, err = r.ReadUE(); err != nil {
		return
	}
	if h.SliceType > SliceTypeI {
		return h, bits.ErrMalformed
	}
	if pps.OutputFlagPresentFlag {
		if h.PicOutputFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if sps.SeparateColourPlaneFlag {
		if h.ColourPlaneID, err = readUint(r, 2); err != nil {
			return
		}
	}

	if nalUnitType != NALTypeIDRWRadl && nalUnitType != NALTypeIDRNLP {
		if h.PicOrderCntLsb, err = readUint(r, int(sps.Log2MaxPicOrderCntLsbMinus4)+4); err != nil {
			return
		}
		h.PicOrderCntLsbPresent = true
		if h.ShortTermRefPicSetSpsFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if !h.ShortTermRefPicSetSpsFlag {
			stRpsIdx := sps.NumShortTermRefPicSets
			if h.ShortTermRefPicSet, err = parseShortTermRefPicSet(r, stRpsIdx, sps.NumShortTermRefPicSets, sps.ShortTermRefPicSets); err != nil {
				return
			}
		} else if sps.NumShortTermRefPicSets > 1 {
			n := int(math.Ceil(math.Log2(float64(sps.NumShortTermRefPicSets))))
			if h.ShortTermRefPicSetIdx, err = readUint(r, n); err != nil {
				return
			}
		}
		if sps.LongTermRefPicsPresentFlag {
			lt := &LongTermPics{}
			if sps.NumLongTermRefPicsSps > 0 {
				if lt.NumLongTermSps, err = r.ReadUE(); err != nil {
					return
				}
			}
			if lt.NumLongTermPics, err = r.ReadUE(); err != nil {
				return
			}
			total := lt.NumLongTermSps + lt.NumLongTermPics
			if total > 64 {
				return h, bits.ErrMalformed
			}
			ltIdxBits := 0
			if sps.NumLongTermRefPicsSps > 1 {
				ltIdxBits = int(math.Ceil(math.Log2(float64(sps.NumLongTermRefPicsSps))))
			}
			for i := uint(0); i < total; i++ {
				if i < lt.NumLongTermSps {
					idx := uint(0)
					if ltIdxBits > 0 {
						if idx, err = readUint(r, ltIdxBits); err != nil {
							return
						}
					}
					lt.LtIdxSps = append(lt.LtIdxSps, idx)
				} else {
					var lsb uint
					var used bool
					if lsb, err = readUint(r, int(sps.Log2MaxPicOrderCntLsbMinus4)+4); err != nil {
						return
					}
					if used, err = r.ReadFlag(); err != nil {
						return
					}
					lt.PocLsbLt = append(lt.PocLsbLt, lsb)
					lt.UsedByCurrPicLtFlag = append(lt.UsedByCurrPicLtFlag, used)
				}
				var msbPresent bool
				if msbPresent, err = r.ReadFlag(); err != nil {
					return
				}
				lt.DeltaPocMsbPresentFlag = append(lt.DeltaPocMsbPresentFlag, msbPresent)
				if msbPresent {
					var cycle uint
					if cycle, err = r.ReadUE(); err != nil {
						return
					}
					lt.DeltaPocMsbCycleLt = append(lt.DeltaPocMsbCycleLt, cycle)
				}
			}
			h.LongTerm = lt
		}
		if sps.TemporalMvpEnabledFlag {
			if h.TemporalMvpEnabledFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
	}

	if sps.SampleAdaptiveOffsetEnabledFlag {
		if h.SaoLumaFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.ChromaArrayType() != 0 {
			if h.SaoChromaFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
	}

	if h.SliceType == SliceTypeP || h.SliceType == SliceTypeB {
		if h.NumRefIdxActiveOverrideFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if h.NumRefIdxActiveOverrideFlag {
			if h.NumRefIdxL0ActiveMinus1, err = r.ReadUE(); err != nil {
				return
			}
			if h.SliceType == SliceTypeB {
				if h.NumRefIdxL1ActiveMinus1, err = r.ReadUE(); err != nil {
					return
				}
			}
		} else {
			h.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
			h.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
		}

		numPocTotalCurr := h.numPocTotalCurr(sps)
		if pps.ListsModificationPresentFlag && numPocTotalCurr > 1 {
			if h.RefPicListsModification, err = parseRefPicListsModification(r, h, numPocTotalCurr); err != nil {
				return
			}
		}
		if h.SliceType == SliceTypeB {
			if h.MvdL1ZeroFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if pps.CabacInitPresentFlag {
			if h.CabacInitFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if h.TemporalMvpEnabledFlag {
			if h.SliceType == SliceTypeB {
				if h.CollocatedFromL0Flag, err = r.ReadFlag(); err != nil {
					return
				}
			} else {
				h.CollocatedFromL0Flag = true
			}
			if (h.CollocatedFromL0Flag && h.NumRefIdxL0ActiveMinus1 > 0) ||
				(!h.CollocatedFromL0Flag && h.NumRefIdxL1ActiveMinus1 > 0) {
				if h.CollocatedRefIdx, err = r.ReadUE(); err != nil {
					return
				}
			}
		}
		if (pps.WeightedPredFlag && h.SliceType == SliceTypeP) ||
			(pps.WeightedBipredFlag && h.SliceType == SliceTypeB) {
			if h.PredWeightTable, err = parsePredWeightTable(r, h, sps); err != nil {
				return
			}
		}
		if h.FiveMinusMaxNumMergeCand, err = r.ReadUE(); err != nil {
			return
		}
		if sps.SCCExtension != nil && sps.SCCExtension.MotionVectorResolutionControlIdc == 2 {
			if h.UseIntegerMvFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
	}

	if h.SliceQpDelta, err = r.ReadSE(); err != nil {
		return
	}
	if pps.SliceChromaQpOffsetsPresentFlag {
		if h.SliceCbQpOffset, err = r.ReadSE(); err != nil {
			return
		}
		if h.SliceCrQpOffset, err = r.ReadSE(); err != nil {
			return
		}
	}
	if pps.SCCExtension != nil && pps.SCCExtension.SliceActQpOffsetsPresentFlag {
		if h.SliceActYQpOffset, err = r.ReadSE(); err != nil {
			return
		}
		if h.SliceActCbQpOffset, err = r.ReadSE(); err != nil {
			return
		}
		if h.SliceActCrQpOffset, err = r.ReadSE(); err != nil {
			return
		}
	}
	if pps.RangeExtension != nil && pps.RangeExtension.ChromaQpOffsetListEnabledFlag {
		if h.CuChromaQpOffsetEnabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if pps.DeblockingFilterOverrideEnabledFlag {
		if h.DeblockingFilterOverrideFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if h.DeblockingFilterOverrideFlag {
		if h.SliceDeblockingFilterDisabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if !h.SliceDeblockingFilterDisabledFlag {
			if h.SliceBetaOffsetDiv2, err = r.ReadSE(); err != nil {
				return
			}
			if h.SliceTcOffsetDiv2, err = r.ReadSE(); err != nil {
				return
			}
		}
	}
	if pps.LoopFilterAcrossSlicesEnabledFlag &&
		(h.SaoLumaFlag || h.SaoChromaFlag || !h.SliceDeblockingFilterDisabledFlag) {
		if h.SliceLoopFilterAcrossSlicesEnabledFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}

	return parseSliceSegmentTail(r, h, sps, pps)
}

// parseSliceSegmentTail reads entry-point offsets, the header extension
// and the byte-alignment trailing bits shared by dependent and
// independent segments.
func parseSliceSegmentTail(r *bits.Reader, h *SliceSegmentHeader, sps *SPS, pps *PPS) (*SliceSegmentHeader, error) {
	var err error
	if pps.TilesEnabledFlag || pps.EntropyCodingSyncEnabledFlag {
		if h.NumEntryPointOffsets, err = r.ReadUE(); err != nil {
			return h, err
		}
		if h.NumEntryPointOffsets > 0 {
			if h.OffsetLenMinus1, err = r.ReadUE(); err != nil {
				return h, err
			}
			if h.OffsetLenMinus1 > 31 {
				return h, bits.ErrMalformed
			}
			if h.NumEntryPointOffsets > 1000 {
				return h, bits.ErrMalformed
			}
			for i := uint(0); i < h.NumEntryPointOffsets; i++ {
				var off uint
				if off, err = readUint(r, int(h.OffsetLenMinus1)+1); err != nil {
					return h, err
				}
				h.EntryPointOffsetMinus1 = append(h.EntryPointOffsetMinus1, off)
			}
		}
	}
	if pps.SliceSegmentHeaderExtensionPresentFlag {
		if h.ExtensionLength, err = r.ReadUE(); err != nil {
			return h, err
		}
		if h.ExtensionLength > 256 {
			return h, bits.ErrMalformed
		}
		for i := uint(0); i < h.ExtensionLength; i++ {
			var b uint
			if b, err = readUint(r, 8); err != nil {
				return h, err
			}
			h.ExtensionDataByte = append(h.ExtensionDataByte, b)
		}
	}
	// byte_alignment(): a 1 bit followed by zeros up to the boundary.
	r.AlignToByte()
	return h, nil
}

// numPocTotalCurr approximates NumPocTotalCurr (7.4.7.2) from the
// decoded RPS and long-term flags, as the original analyzer does.
func (h *SliceSegmentHeader) numPocTotalCurr(sps *SPS) uint {
	var n uint
	rps := h.ShortTermRefPicSet
	if rps == nil && h.ShortTermRefPicSetSpsFlag && int(h.ShortTermRefPicSetIdx) < len(sps.ShortTermRefPicSets) {
		rps = sps.ShortTermRefPicSets[h.ShortTermRefPicSetIdx]
	}
	if rps != nil {
		for _, used := range rps.UsedByCurrPicS0Flag {
			if used {
				n++
			}
		}
		for _, used := range rps.UsedByCurrPicS1Flag {
			if used {
				n++
			}
		}
		for _, used := range rps.UsedByCurrPicFlag {
			if used {
				n++
			}
		}
	}
	if h.LongTerm != nil {
		for _, used := range h.LongTerm.UsedByCurrPicLtFlag {
			if used {
				n++
			}
		}
	}
	return n
}

func parseRefPicListsModification(r *bits.Reader, h *SliceSegmentHeader, numPocTotalCurr uint) (m *RefPicListsModification, err error) {
	m = &RefPicListsModification{}
	entryBits := int(math.Ceil(math.Log2(float64(numPocTotalCurr))))
	if entryBits < 1 {
		entryBits = 1
	}
	if m.FlagL0, err = r.ReadFlag(); err != nil {
		return
	}
	if m.FlagL0 {
		for i := uint(0); i <= h.NumRefIdxL0ActiveMinus1; i++ {
			var e uint
			if e, err = readUint(r, entryBits); err != nil {
				return
			}
			m.ListEntryL0 = append(m.ListEntryL0, e)
		}
	}
	if h.SliceType == SliceTypeB {
		if m.FlagL1, err = r.ReadFlag(); err != nil {
			return
		}
		if m.FlagL1 {
			for i := uint(0); i <= h.NumRefIdxL1ActiveMinus1; i++ {
				var e uint
				if e, err = readUint(r, entryBits); err != nil {
					return
				}
				m.ListEntryL1 = append(m.ListEntryL1, e)
			}
		}
	}
	return m, nil
}

func parsePredWeightTable(r *bits.Reader, h *SliceSegmentHeader, sps *SPS) (t *PredWeightTable, err error) {
	t = &PredWeightTable{}
	chroma := sps.ChromaArrayType() != 0
	if t.LumaLog2WeightDenom, err = r.ReadUE(); err != nil {
		return
	}
	if chroma {
		if t.DeltaChromaLog2WeightDenom, err = r.ReadSE(); err != nil {
			return
		}
	}

	numL0 := h.NumRefIdxL0ActiveMinus1 + 1
	for i := uint(0); i < numL0; i++ {
		var f bool
		if f, err = r.ReadFlag(); err != nil {
			return
		}
		t.LumaWeightL0Flag = append(t.LumaWeightL0Flag, f)
	}
	if chroma {
		for i := uint(0); i < numL0; i++ {
			var f bool
			if f, err = r.ReadFlag(); err != nil {
				return
			}
			t.ChromaWeightL0Flag = append(t.ChromaWeightL0Flag, f)
		}
	}
	for i := uint(0); i < numL0; i++ {
		if t.LumaWeightL0Flag[i] {
			var dw, off int
			if dw, err = r.ReadSE(); err != nil {
				return
			}
			if off, err = r.ReadSE(); err != nil {
				return
			}
			t.DeltaLumaWeightL0 = append(t.DeltaLumaWeightL0, dw)
			t.LumaOffsetL0 = append(t.LumaOffsetL0, off)
		} else {
			t.DeltaLumaWeightL0 = append(t.DeltaLumaWeightL0, 0)
			t.LumaOffsetL0 = append(t.LumaOffsetL0, 0)
		}
		if chroma && t.ChromaWeightL0Flag[i] {
			var w, o [2]int
			for j := 0; j < 2; j++ {
				if w[j], err = r.ReadSE(); err != nil {
					return
				}
				if o[j], err = r.ReadSE(); err != nil {
					return
				}
			}
			t.DeltaChromaWeightL0 = append(t.DeltaChromaWeightL0, w)
			t.DeltaChromaOffsetL0 = append(t.DeltaChromaOffsetL0, o)
		}
	}

	if h.SliceType != SliceTypeB {
		return t, nil
	}

	numL1 := h.NumRefIdxL1ActiveMinus1 + 1
	for i := uint(0); i < numL1; i++ {
		var f bool
		if f, err = r.ReadFlag(); err != nil {
			return
		}
		t.LumaWeightL1Flag = append(t.LumaWeightL1Flag, f)
	}
	if chroma {
		for i := uint(0); i < numL1; i++ {
			var f bool
			if f, err = r.ReadFlag(); err != nil {
				return
			}
			t.ChromaWeightL1Flag = append(t.ChromaWeightL1Flag, f)
		}
	}
	for i := uint(0); i < numL1; i++ {
		if t.LumaWeightL1Flag[i] {
			var dw, off int
			if dw, err = r.ReadSE(); err != nil {
				return
			}
			if off, err = r.ReadSE(); err != nil {
				return
			}
			t.DeltaLumaWeightL1 = append(t.DeltaLumaWeightL1, dw)
			t.LumaOffsetL1 = append(t.LumaOffsetL1, off)
		} else {
			t.DeltaLumaWeightL1 = append(t.DeltaLumaWeightL1, 0)
			t.LumaOffsetL1 = append(t.LumaOffsetL1, 0)
		}
		if chroma && t.ChromaWeightL1Flag[i] {
			var w, o [2]int
			for j := 0; j < 2; j++ {
				if w[j], err = r.ReadSE(); err != nil {
					return
				}
				if o[j], err = r.ReadSE(); err != nil {
					return
				}
			}
			t.DeltaChromaWeightL1 = append(t.DeltaChromaWeightL1, w)
			t.DeltaChromaOffsetL1 = append(t.DeltaChromaOffsetL1, o)
		}
	}
	return t, nil
}
