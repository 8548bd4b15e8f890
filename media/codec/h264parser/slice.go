package h264parser

import (
	"math"

	"github.com/KimVegetable/miat/utils/bits"
)

// Slice coding types (Table 7-6); the raw slice_type mod 5 selects one.
const (
	SliceTypeP = iota
	SliceTypeB
	SliceTypeI
	SliceTypeSP
	SliceTypeSI
)

// RefPicListModification holds the ref_pic_list_modification() syntax
// (7.3.3.1) for one list.
type RefPicListModification struct {
	Flag bool
	Ops  []RefPicListModOp
}

// RefPicListModOp is one modification operation.
type RefPicListModOp struct {
	ModificationOfPicNumsIdc uint
	AbsDiffPicNumMinus1      uint // idc 0, 1
	LongTermPicNum           uint // idc 2
}

// PredWeightEntry is one per-reference weight entry of the
// pred_weight_table() (7.3.3.2).
type PredWeightEntry struct {
	LumaWeightFlag   bool
	LumaWeight       int
	LumaOffset       int
	ChromaWeightFlag bool
	ChromaWeight     [2]int
	ChromaOffset     [2]int
}

// PredWeightTable holds the weighted-prediction table.
type PredWeightTable struct {
	LumaLog2WeightDenom   uint
	ChromaLog2WeightDenom uint
	L0                    []PredWeightEntry
	L1                    []PredWeightEntry
}

// MemoryManagementOp is one adaptive dec_ref_pic_marking operation.
type MemoryManagementOp struct {
	ControlOperation          uint
	DifferenceOfPicNumsMinus1 uint
	LongTermPicNum            uint
	LongTermFrameIdx          uint
	MaxLongTermFrameIdxPlus1  uint
}

// DecRefPicMarking holds the dec_ref_pic_marking() syntax (7.3.3.3).
type DecRefPicMarking struct {
	IdrPic                    bool
	NoOutputOfPriorPicsFlag   bool
	LongTermReferenceFlag     bool
	AdaptiveRefPicMarkingFlag bool
	Ops                       []MemoryManagementOp
}

// SliceHeader is a parsed slice header (7.3.3). Optional blocks are nil
// when their presence condition did not hold.
type SliceHeader struct {
	FirstMbInSlice    uint
	SliceType         uint
	PicParameterSetID uint
	ColourPlaneID     uint
	FrameNum          uint

	FieldPicFlag    bool
	BottomFieldFlag bool

	IdrPicID        uint
	IdrPicIDPresent bool

	PicOrderCntLsb         uint
	PicOrderCntLsbPresent  bool
	DeltaPicOrderCntBottom int
	DeltaPicOrderCnt       []int
	RedundantPicCnt        uint
	RedundantPicCntPresent bool

	DirectSpatialMvPredFlag     bool
	NumRefIdxActiveOverrideFlag bool
	NumRefIdxL0ActiveMinus1     uint
	NumRefIdxL1ActiveMinus1     uint

	RefPicListModificationL0 *RefPicListModification
	RefPicListModificationL1 *RefPicListModification
	PredWeightTable          *PredWeightTable
	DecRefPicMarking         *DecRefPicMarking

	CabacInitIdc        uint
	CabacInitIdcPresent bool
	SliceQpDelta        int
	SpForSwitchFlag     bool
	SliceQsDelta        int

	DisableDeblockingFilterIdc uint
	SliceAlphaC0OffsetDiv2     int
	SliceBetaOffsetDiv2        int

	SliceGroupChangeCycle uint
}

// CodingType returns the slice coding type (SliceType mod 5).
func (h *SliceHeader) CodingType() uint {
	return h.SliceType % 5
}

// SliceSegment pairs a parsed header with its undecoded body. The
// entropy-coded macroblock data stays opaque.
type SliceSegment struct {
	Header *SliceHeader
	Data   []byte
}

// ParseSliceHeader decodes a slice header against its active parameter
// sets. nalUnitType distinguishes IDR slices; nalRefIdc gates the
// dec_ref_pic_marking block.
func ParseSliceHeader(r *bits.Reader, sps *SPS, pps *PPS, nalUnitType, nalRefIdc uint) (h *SliceHeader, err error) {
	h = &SliceHeader{}

	if h.FirstMbInSlice, err = r.ReadUE(); err != nil {
		return
	}
	if h.SliceType, err = r.ReadUE(); err != nil {
		return
	}
	stMod := h.SliceType % 5
	if h.PicParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if sps.SeparateColourPlaneFlag {
		if h.ColourPlaneID, err = readUint(r, 2); err != nil {
			return
		}
	}
	if h.FrameNum, err = readUint(r, int(sps.Log2MaxFrameNumMinus4)+4); err != nil {
		return
	}
	if !sps.FrameMbsOnlyFlag {
		if h.FieldPicFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if h.FieldPicFlag {
			if h.BottomFieldFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
	}

	idrPic := nalUnitType == NALTypeIDR
	if idrPic {
		if h.IdrPicID, err = r.ReadUE(); err != nil {
			return
		}
		h.IdrPicIDPresent = true
	}

	switch {
	case sps.PicOrderCntType == 0:
		if sps.Poc0 == nil {
			return h, bits.ErrMalformed
		}
		if h.PicOrderCntLsb, err = readUint(r, int(sps.Poc0.Log2MaxPicOrderCntLsbMinus4)+4); err != nil {
			return
		}
		h.PicOrderCntLsbPresent = true
		if pps.BottomFieldPicOrderInFramePresentFlag && !h.FieldPicFlag {
			if h.DeltaPicOrderCntBottom, err = r.ReadSE(); err != nil {
				return
			}
		}
	case sps.PicOrderCntType == 1 && sps.Poc1 != nil && !sps.Poc1.DeltaPicOrderAlwaysZeroFlag:
		var d int
		if d, err = r.ReadSE(); err != nil {
			return
		}
		h.DeltaPicOrderCnt = append(h.DeltaPicOrderCnt, d)
		if pps.BottomFieldPicOrderInFramePresentFlag && !h.FieldPicFlag {
			if d, err = r.ReadSE(); err != nil {
				return
			}
			h.DeltaPicOrderCnt = append(h.DeltaPicOrderCnt, d)
		}
	}

	if pps.RedundantPicCntPresentFlag {
		if h.RedundantPicCnt, err = r.ReadUE(); err != nil {
			return
		}
		h.RedundantPicCntPresent = true
	}

	if stMod == SliceTypeB {
		if h.DirectSpatialMvPredFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if stMod == SliceTypeP || stMod == SliceTypeB || stMod == SliceTypeSP {
		if h.NumRefIdxActiveOverrideFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if h.NumRefIdxActiveOverrideFlag {
			if h.NumRefIdxL0ActiveMinus1, err = r.ReadUE(); err != nil {
				return
			}
			if stMod == SliceTypeB {
				if h.NumRefIdxL1ActiveMinus1, err = r.ReadUE(); err != nil {
					return
				}
			}
		} else {
			h.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
			h.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
		}
	}

	// ref_pic_list_modification: L0 for P/B/SP, L1 for B.
	if stMod != SliceTypeI && stMod != SliceTypeSI {
		if h.RefPicListModificationL0, err = parseRefPicListModification(r); err != nil {
			return
		}
	}
	if stMod == SliceTypeB {
		if h.RefPicListModificationL1, err = parseRefPicListModification(r); err != nil {
			return
		}
	}

	if (pps.WeightedPredFlag && (stMod == SliceTypeP || stMod == SliceTypeSP)) ||
		(pps.WeightedBipredIdc == 1 && stMod == SliceTypeB) {
		if h.PredWeightTable, err = parsePredWeightTable(r, sps, h, stMod); err != nil {
			return
		}
	}

	if nalRefIdc != 0 {
		if h.DecRefPicMarking, err = parseDecRefPicMarking(r, idrPic); err != nil {
			return
		}
	}

	if pps.EntropyCodingModeFlag && stMod != SliceTypeI && stMod != SliceTypeSI {
		if h.CabacInitIdc, err = r.ReadUE(); err != nil {
			return
		}
		h.CabacInitIdcPresent = true
	}
	if h.SliceQpDelta, err = r.ReadSE(); err != nil {
		return
	}
	if stMod == SliceTypeSP || stMod == SliceTypeSI {
		if stMod == SliceTypeSP {
			if h.SpForSwitchFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if h.SliceQsDelta, err = r.ReadSE(); err != nil {
			return
		}
	}
	if pps.DeblockingFilterControlPresentFlag {
		if h.DisableDeblockingFilterIdc, err = r.ReadUE(); err != nil {
			return
		}
		if h.DisableDeblockingFilterIdc != 1 {
			if h.SliceAlphaC0OffsetDiv2, err = r.ReadSE(); err != nil {
				return
			}
			if h.SliceBetaOffsetDiv2, err = r.ReadSE(); err != nil {
				return
			}
		}
	}
	if pps.NumSliceGroupsMinus1 > 0 && pps.SliceGroup != nil &&
		pps.SliceGroup.MapType >= 3 && pps.SliceGroup.MapType <= 5 {
		picSizeInMapUnits := (sps.PicWidthInMbsMinus1 + 1) * (sps.PicHeightInMapUnitsMinus1 + 1)
		rate := pps.SliceGroup.ChangeRateMinus1 + 1
		n := int(math.Ceil(math.Log2(float64(picSizeInMapUnits/rate + 1))))
		if n < 1 {
			n = 1
		}
		if h.SliceGroupChangeCycle, err = readUint(r, n); err != nil {
			return
		}
	}
	return h, nil
}

func parseRefPicListModification(r *bits.Reader) (m *RefPicListModification, err error) {
	m = &RefPicListModification{}
	if m.Flag, err = r.ReadFlag(); err != nil {
		return
	}
	if !m.Flag {
		return m, nil
	}
	for {
		var idc uint
		if idc, err = r.ReadUE(); err != nil {
			return
		}
		if idc == 3 {
			return m, nil
		}
		op := RefPicListModOp{ModificationOfPicNumsIdc: idc}
		switch idc {
		case 0, 1:
			if op.AbsDiffPicNumMinus1, err = r.ReadUE(); err != nil {
				return
			}
		case 2:
			if op.LongTermPicNum, err = r.ReadUE(); err != nil {
				return
			}
		default:
			return m, bits.ErrMalformed
		}
		m.Ops = append(m.Ops, op)
		if len(m.Ops) > 64 {
			return m, bits.ErrMalformed
		}
	}
}

func parsePredWeightTable(r *bits.Reader, sps *SPS, h *SliceHeader, stMod uint) (t *PredWeightTable, err error) {
	t = &PredWeightTable{}
	if t.LumaLog2WeightDenom, err = r.ReadUE(); err != nil {
		return
	}
	chromaArrayType := sps.chromaArrayType()
	if chromaArrayType != 0 {
		if t.ChromaLog2WeightDenom, err = r.ReadUE(); err != nil {
			return
		}
	}
	if t.L0, err = parsePredWeightEntries(r, chromaArrayType, h.NumRefIdxL0ActiveMinus1); err != nil {
		return
	}
	if stMod == SliceTypeB {
		if t.L1, err = parsePredWeightEntries(r, chromaArrayType, h.NumRefIdxL1ActiveMinus1); err != nil {
			return
		}
	}
	return t, nil
}

func parsePredWeightEntries(r *bits.Reader, chromaArrayType, numRefIdxActiveMinus1 uint) (entries []PredWeightEntry, err error) {
	for i := uint(0); i <= numRefIdxActiveMinus1; i++ {
		var e PredWeightEntry
		if e.LumaWeightFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if e.LumaWeightFlag {
			if e.LumaWeight, err = r.ReadSE(); err != nil {
				return
			}
			if e.LumaOffset, err = r.ReadSE(); err != nil {
				return
			}
		}
		if chromaArrayType != 0 {
			if e.ChromaWeightFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if e.ChromaWeightFlag {
				for j := 0; j < 2; j++ {
					if e.ChromaWeight[j], err = r.ReadSE(); err != nil {
						return
					}
					if e.ChromaOffset[j], err = r.ReadSE(); err != nil {
						return
					}
				}
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseDecRefPicMarking(r *bits.Reader, idrPic bool) (m *DecRefPicMarking, err error) {
	m = &DecRefPicMarking{IdrPic: idrPic}
	if idrPic {
		if m.NoOutputOfPriorPicsFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if m.LongTermReferenceFlag, err = r.ReadFlag(); err != nil {
			return
		}
		return m, nil
	}
	if m.AdaptiveRefPicMarkingFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if !m.AdaptiveRefPicMarkingFlag {
		return m, nil
	}
	for {
		var op MemoryManagementOp
		if op.ControlOperation, err = r.ReadUE(); err != nil {
			return
		}
		if op.ControlOperation == 0 {
			return m, nil
		}
		switch op.ControlOperation {
		case 1, 3:
			if op.DifferenceOfPicNumsMinus1, err = r.ReadUE(); err != nil {
				return
			}
			if op.ControlOperation == 3 {
				if op.LongTermFrameIdx, err = r.ReadUE(); err != nil {
					return
				}
			}
		case 2:
			if op.LongTermPicNum, err = r.ReadUE(); err != nil {
				return
			}
		case 4:
			if op.MaxLongTermFrameIdxPlus1, err = r.ReadUE(); err != nil {
				return
			}
		case 6:
			if op.LongTermFrameIdx, err = r.ReadUE(); err != nil {
				return
			}
		}
		m.Ops = append(m.Ops, op)
		if len(m.Ops) > 64 {
			return m, bits.ErrMalformed
		}
	}
}
