package h264parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// highProfileIDC reports whether the profile carries the chroma-format /
// bit-depth / scaling-matrix block in the SPS (ITU-T H.264 7.3.2.1.1).
func highProfileIDC(profileIdc uint) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		return true
	}
	return false
}

// PocType0 carries the pic_order_cnt_type == 0 sub-syntax.
type PocType0 struct {
	Log2MaxPicOrderCntLsbMinus4 uint
}

// PocType1 carries the pic_order_cnt_type == 1 sub-syntax.
type PocType1 struct {
	DeltaPicOrderAlwaysZeroFlag bool
	OffsetForNonRefPic          int
	OffsetForTopToBottomField   int
	OffsetForRefFrame           []int
}

// HRD holds hypothetical reference decoder parameters (Annex E.1.2).
type HRD struct {
	CpbCntMinus1                       uint
	BitRateScale                       uint
	CpbSizeScale                       uint
	BitRateValueMinus1                 []uint
	CpbSizeValueMinus1                 []uint
	CbrFlag                            []bool
	InitialCpbRemovalDelayLengthMinus1 uint
	CpbRemovalDelayLengthMinus1        uint
	DpbOutputDelayLengthMinus1         uint
	TimeOffsetLength                   uint
}

// VUI holds visual usability information (Annex E.1.1).
type VUI struct {
	AspectRatioInfoPresentFlag     bool
	AspectRatioIdc                 uint
	SarWidth                       uint
	SarHeight                      uint
	OverscanInfoPresentFlag        bool
	OverscanAppropriateFlag        bool
	VideoSignalTypePresentFlag     bool
	VideoFormat                    uint
	VideoFullRangeFlag             bool
	ColourDescriptionPresentFlag   bool
	ColourPrimaries                uint
	TransferCharacteristics        uint
	MatrixCoefficients             uint
	ChromaLocInfoPresentFlag       bool
	ChromaSampleLocTypeTopField    uint
	ChromaSampleLocTypeBottomField uint
	TimingInfoPresentFlag          bool
	NumUnitsInTick                 uint
	TimeScale                      uint
	FixedFrameRateFlag             bool
	NalHrdParametersPresentFlag    bool
	VclHrdParametersPresentFlag    bool
	NalHrd                         *HRD
	VclHrd                         *HRD
	LowDelayHrdFlag                bool
	PicStructPresentFlag           bool
}

// SPS is a parsed sequence parameter set (7.3.2.1).
type SPS struct {
	ProfileIdc        uint
	ConstraintSetFlag [6]bool
	LevelIdc          uint
	SeqParameterSetID uint

	ChromaFormatIdc                 uint
	SeparateColourPlaneFlag         bool
	BitDepthLumaMinus8              uint
	BitDepthChromaMinus8            uint
	QpprimeYZeroTransformBypassFlag bool
	SeqScalingMatrixPresentFlag     bool
	ScalingList4x4                  [][]int
	ScalingList8x8                  [][]int

	Log2MaxFrameNumMinus4 uint
	PicOrderCntType       uint
	Poc0                  *PocType0
	Poc1                  *PocType1

	MaxNumRefFrames                uint
	GapsInFrameNumValueAllowedFlag bool

	PicWidthInMbsMinus1       uint
	PicHeightInMapUnitsMinus1 uint
	FrameMbsOnlyFlag          bool
	MbAdaptiveFrameFieldFlag  bool
	Direct8x8InferenceFlag    bool

	FrameCroppingFlag bool
	CropLeft          uint
	CropRight         uint
	CropTop           uint
	CropBottom        uint

	VuiParametersPresentFlag bool
	VUI                      *VUI
}

// Width returns the display width in luma samples after cropping.
func (s *SPS) Width() uint {
	w := (s.PicWidthInMbsMinus1 + 1) * 16
	crop := s.cropUnitX() * (s.CropLeft + s.CropRight)
	if crop > w {
		return w
	}
	return w - crop
}

// Height returns the display height in luma samples after cropping.
func (s *SPS) Height() uint {
	frameMbsOnly := uint(0)
	if s.FrameMbsOnlyFlag {
		frameMbsOnly = 1
	}
	h := (s.PicHeightInMapUnitsMinus1 + 1) * 16 * (2 - frameMbsOnly)
	crop := s.cropUnitY() * (s.CropTop + s.CropBottom)
	if crop > h {
		return h
	}
	return h - crop
}

func (s *SPS) chromaArrayType() uint {
	if s.SeparateColourPlaneFlag {
		return 0
	}
	return s.ChromaFormatIdc
}

func (s *SPS) cropUnitX() uint {
	switch s.chromaArrayType() {
	case 1, 2:
		return 2
	default:
		return 1
	}
}

func (s *SPS) cropUnitY() uint {
	frameMbsOnly := uint(0)
	if s.FrameMbsOnlyFlag {
		frameMbsOnly = 1
	}
	var sub uint = 1
	if s.chromaArrayType() == 1 {
		sub = 2
	}
	return sub * (2 - frameMbsOnly)
}

// ParseSPS decodes an SPS RBSP. The input is the emulation-prevention
// stripped payload after the one-byte NAL header.
func ParseSPS(data []byte) (sps *SPS, err error) {
	r := bits.NewReader(data)
	sps = &SPS{ChromaFormatIdc: 1}

	if sps.ProfileIdc, err = readUint(r, 8); err != nil {
		return
	}
	for i := 0; i < 6; i++ {
		if sps.ConstraintSetFlag[i], err = r.ReadFlag(); err != nil {
			return
		}
	}
	// reserved_zero_2bits
	if _, err = r.ReadBits(2); err != nil {
		return
	}
	if sps.LevelIdc, err = readUint(r, 8); err != nil {
		return
	}
	if sps.SeqParameterSetID, err = r.ReadUE(); err != nil {
		return
	}

	if highProfileIDC(sps.ProfileIdc) {
		if sps.ChromaFormatIdc, err = r.ReadUE(); err != nil {
			return
		}
		if sps.ChromaFormatIdc == 3 {
			if sps.SeparateColourPlaneFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if sps.BitDepthLumaMinus8, err = r.ReadUE(); err != nil {
			return
		}
		if sps.BitDepthChromaMinus8, err = r.ReadUE(); err != nil {
			return
		}
		if sps.QpprimeYZeroTransformBypassFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.SeqScalingMatrixPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if sps.SeqScalingMatrixPresentFlag {
			count := 8
			if sps.ChromaFormatIdc == 3 {
				count = 12
			}
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
					sps.ScalingList4x4 = append(sps.ScalingList4x4, list)
				} else {
					sps.ScalingList8x8 = append(sps.ScalingList8x8, list)
				}
			}
		}
	}

	if sps.Log2MaxFrameNumMinus4, err = r.ReadUE(); err != nil {
		return
	}
	if sps.PicOrderCntType, err = r.ReadUE(); err != nil {
		return
	}
	switch sps.PicOrderCntType {
	case 0:
		poc := &PocType0{}
		if poc.Log2MaxPicOrderCntLsbMinus4, err = r.ReadUE(); err != nil {
			return
		}
		sps.Poc0 = poc
	case 1:
		poc := &PocType1{}
		if poc.DeltaPicOrderAlwaysZeroFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if poc.OffsetForNonRefPic, err = r.ReadSE(); err != nil {
			return
		}
		if poc.OffsetForTopToBottomField, err = r.ReadSE(); err != nil {
			return
		}
		var numRefFrames uint
		if numRefFrames, err = r.ReadUE(); err != nil {
			return
		}
		if numRefFrames > 255 {
			return sps, bits.ErrMalformed
		}
		for i := uint(0); i < numRefFrames; i++ {
			var off int
			if off, err = r.ReadSE(); err != nil {
				return
			}
			poc.OffsetForRefFrame = append(poc.OffsetForRefFrame, off)
		}
		sps.Poc1 = poc
	}

	if sps.MaxNumRefFrames, err = r.ReadUE(); err != nil {
		return
	}
	if sps.GapsInFrameNumValueAllowedFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.PicWidthInMbsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if sps.PicHeightInMapUnitsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if sps.FrameMbsOnlyFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if !sps.FrameMbsOnlyFlag {
		if sps.MbAdaptiveFrameFieldFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if sps.Direct8x8InferenceFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.FrameCroppingFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.FrameCroppingFlag {
		if sps.CropLeft, err = r.ReadUE(); err != nil {
			return
		}
		if sps.CropRight, err = r.ReadUE(); err != nil {
			return
		}
		if sps.CropTop, err = r.ReadUE(); err != nil {
			return
		}
		if sps.CropBottom, err = r.ReadUE(); err != nil {
			return
		}
	}
	if sps.VuiParametersPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if sps.VuiParametersPresentFlag {
		if sps.VUI, err = parseVUI(r); err != nil {
			// A malformed VUI leaves the core SPS usable.
			return sps, nil
		}
	}
	return sps, nil
}

func parseVUI(r *bits.Reader) (vui *VUI, err error) {
	vui = &VUI{}
	if vui.AspectRatioInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.AspectRatioInfoPresentFlag {
		if vui.AspectRatioIdc, err = readUint(r, 8); err != nil {
			return
		}
		if vui.AspectRatioIdc == 255 { // Extended_SAR
			if vui.SarWidth, err = readUint(r, 16); err != nil {
				return
			}
			if vui.SarHeight, err = readUint(r, 16); err != nil {
				return
			}
		}
	}
	if vui.OverscanInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.OverscanInfoPresentFlag {
		if vui.OverscanAppropriateFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if vui.VideoSignalTypePresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.VideoSignalTypePresentFlag {
		if vui.VideoFormat, err = readUint(r, 3); err != nil {
			return
		}
		if vui.VideoFullRangeFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.ColourDescriptionPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.ColourDescriptionPresentFlag {
			if vui.ColourPrimaries, err = readUint(r, 8); err != nil {
				return
			}
			if vui.TransferCharacteristics, err = readUint(r, 8); err != nil {
				return
			}
			if vui.MatrixCoefficients, err = readUint(r, 8); err != nil {
				return
			}
		}
	}
	if vui.ChromaLocInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.ChromaLocInfoPresentFlag {
		if vui.ChromaSampleLocTypeTopField, err = r.ReadUE(); err != nil {
			return
		}
		if vui.ChromaSampleLocTypeBottomField, err = r.ReadUE(); err != nil {
			return
		}
	}
	if vui.TimingInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.TimingInfoPresentFlag {
		if vui.NumUnitsInTick, err = readUint(r, 32); err != nil {
			return
		}
		if vui.TimeScale, err = readUint(r, 32); err != nil {
			return
		}
		if vui.FixedFrameRateFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if vui.NalHrdParametersPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.NalHrdParametersPresentFlag {
		if vui.NalHrd, err = parseHRD(r); err != nil {
			return
		}
	}
	if vui.VclHrdParametersPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.VclHrdParametersPresentFlag {
		if vui.VclHrd, err = parseHRD(r); err != nil {
			return
		}
	}
	if vui.NalHrdParametersPresentFlag || vui.VclHrdParametersPresentFlag {
		if vui.LowDelayHrdFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if vui.PicStructPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return vui, nil
}

func parseHRD(r *bits.Reader) (hrd *HRD, err error) {
	hrd = &HRD{}
	if hrd.CpbCntMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if hrd.CpbCntMinus1 > 31 {
		return hrd, bits.ErrMalformed
	}
	if hrd.BitRateScale, err = readUint(r, 4); err != nil {
		return
	}
	if hrd.CpbSizeScale, err = readUint(r, 4); err != nil {
		return
	}
	for i := uint(0); i <= hrd.CpbCntMinus1; i++ {
		var br, cs uint
		var cbr bool
		if br, err = r.ReadUE(); err != nil {
			return
		}
		if cs, err = r.ReadUE(); err != nil {
			return
		}
		if cbr, err = r.ReadFlag(); err != nil {
			return
		}
		hrd.BitRateValueMinus1 = append(hrd.BitRateValueMinus1, br)
		hrd.CpbSizeValueMinus1 = append(hrd.CpbSizeValueMinus1, cs)
		hrd.CbrFlag = append(hrd.CbrFlag, cbr)
	}
	if hrd.InitialCpbRemovalDelayLengthMinus1, err = readUint(r, 5); err != nil {
		return
	}
	if hrd.CpbRemovalDelayLengthMinus1, err = readUint(r, 5); err != nil {
		return
	}
	if hrd.DpbOutputDelayLengthMinus1, err = readUint(r, 5); err != nil {
		return
	}
	if hrd.TimeOffsetLength, err = readUint(r, 5); err != nil {
		return
	}
	return hrd, nil
}

// readScalingList decodes a delta-coded scaling list (7.3.2.1.1.1).
func readScalingList(r *bits.Reader, size int) ([]int, error) {
	list := make([]int, 0, size)
	lastScale := 8
	nextScale := 8
	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta, err := r.ReadSE()
			if err != nil {
				return list, err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale == 0 {
			list = append(list, lastScale)
		} else {
			list = append(list, nextScale)
			lastScale = nextScale
		}
	}
	return list, nil
}

func readUint(r *bits.Reader, n int) (uint, error) {
	v, err := r.ReadBits(n)
	return uint(v), err
}
