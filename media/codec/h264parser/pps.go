package h264parser

import (
	"math"

	"github.com/KimVegetable/miat/utils/bits"
)

// SliceGroupMap carries the slice-group map sub-syntax of the PPS
// (7.3.2.2). Only the fields for the declared map type are populated.
type SliceGroupMap struct {
	MapType                 uint
	RunLengthMinus1         []uint // type 0
	TopLeft                 []uint // type 2
	BottomRight             []uint // type 2
	ChangeDirectionFlag     bool   // types 3..5
	ChangeRateMinus1        uint   // types 3..5
	PicSizeInMapUnitsMinus1 uint   // type 6
	SliceGroupID            []uint // type 6
	SliceGroupIDBits        int    // bit width used per id entry
}

// PPS is a parsed picture parameter set (7.3.2.2).
type PPS struct {
	PicParameterSetID                     uint
	SeqParameterSetID                     uint
	EntropyCodingModeFlag                 bool
	BottomFieldPicOrderInFramePresentFlag bool
	NumSliceGroupsMinus1                  uint
	SliceGroup                            *SliceGroupMap
	NumRefIdxL0DefaultActiveMinus1        uint
	NumRefIdxL1DefaultActiveMinus1        uint
	WeightedPredFlag                      bool
	WeightedBipredIdc                     uint
	PicInitQpMinus26                      int
	PicInitQsMinus26                      int
	ChromaQpIndexOffset                   int
	DeblockingFilterControlPresentFlag    bool
	ConstrainedIntraPredFlag              bool
	RedundantPicCntPresentFlag            bool

	// Trailing fields, present only when more_rbsp_data() holds.
	Transform8x8ModeFlag        bool
	PicScalingMatrixPresentFlag bool
	ScalingList4x4              [][]int
	ScalingList8x8              [][]int
	SecondChromaQpIndexOffset   int
	HasTrailingFields           bool
}

// ParsePPS decodes a PPS RBSP. The referenced SPS supplies the chroma
// format for scaling-matrix counting; a nil SPS assumes 4:2:0.
func ParsePPS(data []byte, sps *SPS) (pps *PPS, err error) {
	r := bits.NewReader(data)
	pps = &PPS{}

	if pps.PicParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if pps.SeqParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if pps.EntropyCodingModeFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.BottomFieldPicOrderInFramePresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.NumSliceGroupsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if pps.NumSliceGroupsMinus1 > 7 {
		return pps, bits.ErrMalformed
	}
	if pps.NumSliceGroupsMinus1 > 0 {
		if pps.SliceGroup, err = parseSliceGroupMap(r, pps.NumSliceGroupsMinus1); err != nil {
			return
		}
	}
	if pps.NumRefIdxL0DefaultActiveMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if pps.NumRefIdxL1DefaultActiveMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if pps.WeightedPredFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.WeightedBipredIdc, err = readUint(r, 2); err != nil {
		return
	}
	if pps.PicInitQpMinus26, err = r.ReadSE(); err != nil {
		return
	}
	if pps.PicInitQsMinus26, err = r.ReadSE(); err != nil {
		return
	}
	if pps.ChromaQpIndexOffset, err = r.ReadSE(); err != nil {
		return
	}
	if pps.DeblockingFilterControlPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.ConstrainedIntraPredFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if pps.RedundantPicCntPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}

	if r.MoreRBSPData() {
		pps.HasTrailingFields = true
		if pps.Transform8x8ModeFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.PicScalingMatrixPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if pps.PicScalingMatrixPresentFlag {
			chromaFormatIdc := uint(1)
			if sps != nil {
				chromaFormatIdc = sps.ChromaFormatIdc
			}
			count := 6 + 2*boolToInt(chromaFormatIdc == 3)
			for i := 0; i < count; i++ {
				var present bool
				if present, err = r.ReadFlag(); err != nil {
					return
				}
				if !present {
					continue
				}
				size := 16
				if i >= 6 {
					size = 64
				}
				var list []int
				if list, err = readScalingList(r, size); err != nil {
					return
				}
				if i < 6 {
					pps.ScalingList4x4 = append(pps.ScalingList4x4, list)
				} else {
					pps.ScalingList8x8 = append(pps.ScalingList8x8, list)
				}
			}
		}
		if pps.SecondChromaQpIndexOffset, err = r.ReadSE(); err != nil {
			return
		}
	}
	return pps, nil
}

func parseSliceGroupMap(r *bits.Reader, numSliceGroupsMinus1 uint) (sg *SliceGroupMap, err error) {
	sg = &SliceGroupMap{}
	if sg.MapType, err = r.ReadUE(); err != nil {
		return
	}
	switch sg.MapType {
	case 0:
		for i := uint(0); i <= numSliceGroupsMinus1; i++ {
			var v uint
			if v, err = r.ReadUE(); err != nil {
				return
			}
			sg.RunLengthMinus1 = append(sg.RunLengthMinus1, v)
		}
	case 2:
		for i := uint(0); i <= numSliceGroupsMinus1; i++ {
			var tl, br uint
			if tl, err = r.ReadUE(); err != nil {
				return
			}
			if br, err = r.ReadUE(); err != nil {
				return
			}
			sg.TopLeft = append(sg.TopLeft, tl)
			sg.BottomRight = append(sg.BottomRight, br)
		}
	case 3, 4, 5:
		if sg.ChangeDirectionFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sg.ChangeRateMinus1, err = r.ReadUE(); err != nil {
			return
		}
	case 6:
		if sg.PicSizeInMapUnitsMinus1, err = r.ReadUE(); err != nil {
			return
		}
		if sg.PicSizeInMapUnitsMinus1 > 1<<22 {
			return sg, bits.ErrMalformed
		}
		// Each id takes ceil(log2(num_slice_groups)) bits.
		sg.SliceGroupIDBits = int(math.Ceil(math.Log2(float64(numSliceGroupsMinus1 + 1))))
		if sg.SliceGroupIDBits < 1 {
			sg.SliceGroupIDBits = 1
		}
		for i := uint(0); i <= sg.PicSizeInMapUnitsMinus1; i++ {
			var id uint
			if id, err = readUint(r, sg.SliceGroupIDBits); err != nil {
				return
			}
			sg.SliceGroupID = append(sg.SliceGroupID, id)
		}
	}
	return sg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
