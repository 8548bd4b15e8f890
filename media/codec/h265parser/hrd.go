package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// SubLayerHRD is the per-sub-layer CPB loop of hrd_parameters (E.2.3).
type SubLayerHRD struct {
	FixedPicRateGeneralFlag   bool
	FixedPicRateWithinCvsFlag bool
	ElementalDurationInTcMinus1 uint
	LowDelayHrdFlag           bool
	CpbCntMinus1              uint
	BitRateValueMinus1        []uint
	CpbSizeValueMinus1        []uint
	CpbSizeDuValueMinus1      []uint
	BitRateDuValueMinus1      []uint
	CbrFlag                   []bool
}

// HRD is hrd_parameters() (H.265 E.2.2).
type HRD struct {
	NalHrdParametersPresentFlag bool
	VclHrdParametersPresentFlag bool
	SubPicHrdParamsPresentFlag  bool

	TickDivisorMinus2                    uint
	DuCpbRemovalDelayIncrementLengthMinus1 uint
	SubPicCpbParamsInPicTimingSeiFlag    bool
	DpbOutputDelayDuLengthMinus1         uint

	BitRateScale uint
	CpbSizeScale uint
	CpbSizeDuScale uint

	InitialCpbRemovalDelayLengthMinus1 uint
	AuCpbRemovalDelayLengthMinus1      uint
	DpbOutputDelayLengthMinus1         uint

	SubLayers []SubLayerHRD
}

func parseHRDParameters(r *bits.Reader, commonInfPresent bool, maxNumSubLayersMinus1 uint) (hrd *HRD, err error) {
	hrd = &HRD{}

	if commonInfPresent {
		if hrd.NalHrdParametersPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if hrd.VclHrdParametersPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if hrd.NalHrdParametersPresentFlag || hrd.VclHrdParametersPresentFlag {
			if hrd.SubPicHrdParamsPresentFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if hrd.SubPicHrdParamsPresentFlag {
				if hrd.TickDivisorMinus2, err = readUint(r, 8); err != nil {
					return
				}
				if hrd.DuCpbRemovalDelayIncrementLengthMinus1, err = readUint(r, 5); err != nil {
					return
				}
				if hrd.SubPicCpbParamsInPicTimingSeiFlag, err = r.ReadFlag(); err != nil {
					return
				}
				if hrd.DpbOutputDelayDuLengthMinus1, err = readUint(r, 5); err != nil {
					return
				}
			}
			if hrd.BitRateScale, err = readUint(r, 4); err != nil {
				return
			}
			if hrd.CpbSizeScale, err = readUint(r, 4); err != nil {
				return
			}
			if hrd.SubPicHrdParamsPresentFlag {
				if hrd.CpbSizeDuScale, err = readUint(r, 4); err != nil {
					return
				}
			}
			if hrd.InitialCpbRemovalDelayLengthMinus1, err = readUint(r, 5); err != nil {
				return
			}
			if hrd.AuCpbRemovalDelayLengthMinus1, err = readUint(r, 5); err != nil {
				return
			}
			if hrd.DpbOutputDelayLengthMinus1, err = readUint(r, 5); err != nil {
				return
			}
		}
	}

	for i := uint(0); i <= maxNumSubLayersMinus1; i++ {
		var sl SubLayerHRD
		if sl.FixedPicRateGeneralFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if !sl.FixedPicRateGeneralFlag {
			if sl.FixedPicRateWithinCvsFlag, err = r.ReadFlag(); err != nil {
				return
			}
		} else {
			sl.FixedPicRateWithinCvsFlag = true
		}
		if sl.FixedPicRateWithinCvsFlag {
			if sl.ElementalDurationInTcMinus1, err = r.ReadUE(); err != nil {
				return
			}
		} else {
			if sl.LowDelayHrdFlag, err = r.ReadFlag(); err != nil {
				return
			}
		}
		if !sl.LowDelayHrdFlag {
			if sl.CpbCntMinus1, err = r.ReadUE(); err != nil {
				return
			}
		}
		readCpb := func() error {
			for j := uint(0); j <= sl.CpbCntMinus1; j++ {
				br, e := r.ReadUE()
				if e != nil {
					return e
				}
				cs, e := r.ReadUE()
				if e != nil {
					return e
				}
				sl.BitRateValueMinus1 = append(sl.BitRateValueMinus1, br)
				sl.CpbSizeValueMinus1 = append(sl.CpbSizeValueMinus1, cs)
				if hrd.SubPicHrdParamsPresentFlag {
					du, e := r.ReadUE()
					if e != nil {
						return e
					}
					bd, e := r.ReadUE()
					if e != nil {
						return e
					}
					sl.CpbSizeDuValueMinus1 = append(sl.CpbSizeDuValueMinus1, du)
					sl.BitRateDuValueMinus1 = append(sl.BitRateDuValueMinus1, bd)
				}
				cbr, e := r.ReadFlag()
				if e != nil {
					return e
				}
				sl.CbrFlag = append(sl.CbrFlag, cbr)
			}
			return nil
		}
		if hrd.NalHrdParametersPresentFlag {
			if err = readCpb(); err != nil {
				return
			}
		}
		if hrd.VclHrdParametersPresentFlag {
			if err = readCpb(); err != nil {
				return
			}
		}
		hrd.SubLayers = append(hrd.SubLayers, sl)
	}
	return hrd, nil
}

// VUI is vui_parameters() (H.265 E.2.1).
type VUI struct {
	AspectRatioInfoPresentFlag bool
	AspectRatioIdc             uint
	SarWidth                   uint
	SarHeight                  uint

	OverscanInfoPresentFlag bool
	OverscanAppropriateFlag bool

	VideoSignalTypePresentFlag   bool
	VideoFormat                  uint
	VideoFullRangeFlag           bool
	ColourDescriptionPresentFlag bool
	ColourPrimaries              uint
	TransferCharacteristics      uint
	MatrixCoeffs                 uint

	ChromaLocInfoPresentFlag       bool
	ChromaSampleLocTypeTopField    uint
	ChromaSampleLocTypeBottomField uint

	NeutralChromaIndicationFlag bool
	FieldSeqFlag                bool
	FrameFieldInfoPresentFlag   bool

	DefaultDisplayWindowFlag bool
	DefDispWinLeftOffset     uint
	DefDispWinRightOffset    uint
	DefDispWinTopOffset      uint
	DefDispWinBottomOffset   uint

	TimingInfoPresentFlag       bool
	NumUnitsInTick              uint
	TimeScale                   uint
	PocProportionalToTimingFlag bool
	NumTicksPocDiffOneMinus1    uint
	HrdParametersPresentFlag    bool
	HRD                         *HRD

	BitstreamRestrictionFlag        bool
	TilesFixedStructureFlag         bool
	MotionVectorsOverPicBoundaries  bool
	RestrictedRefPicListsFlag       bool
	MinSpatialSegmentationIdc       uint
	MaxBytesPerPicDenom             uint
	MaxBitsPerMinCuDenom            uint
	Log2MaxMvLengthHorizontal       uint
	Log2MaxMvLengthVertical         uint
}

func parseVUI(r *bits.Reader, maxNumSubLayersMinus1 uint) (vui *VUI, err error) {
	vui = &VUI{}
	if vui.AspectRatioInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.AspectRatioInfoPresentFlag {
		if vui.AspectRatioIdc, err = readUint(r, 8); err != nil {
			return
		}
		if vui.AspectRatioIdc == 255 { // EXTENDED_SAR
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
			if vui.MatrixCoeffs, err = readUint(r, 8); err != nil {
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
	if vui.NeutralChromaIndicationFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.FieldSeqFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.FrameFieldInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.DefaultDisplayWindowFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.DefaultDisplayWindowFlag {
		if vui.DefDispWinLeftOffset, err = r.ReadUE(); err != nil {
			return
		}
		if vui.DefDispWinRightOffset, err = r.ReadUE(); err != nil {
			return
		}
		if vui.DefDispWinTopOffset, err = r.ReadUE(); err != nil {
			return
		}
		if vui.DefDispWinBottomOffset, err = r.ReadUE(); err != nil {
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
		if vui.PocProportionalToTimingFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.PocProportionalToTimingFlag {
			if vui.NumTicksPocDiffOneMinus1, err = r.ReadUE(); err != nil {
				return
			}
		}
		if vui.HrdParametersPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.HrdParametersPresentFlag {
			if vui.HRD, err = parseHRDParameters(r, true, maxNumSubLayersMinus1); err != nil {
				return
			}
		}
	}
	if vui.BitstreamRestrictionFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vui.BitstreamRestrictionFlag {
		if vui.TilesFixedStructureFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.MotionVectorsOverPicBoundaries, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.RestrictedRefPicListsFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vui.MinSpatialSegmentationIdc, err = r.ReadUE(); err != nil {
			return
		}
		if vui.MaxBytesPerPicDenom, err = r.ReadUE(); err != nil {
			return
		}
		if vui.MaxBitsPerMinCuDenom, err = r.ReadUE(); err != nil {
			return
		}
		if vui.Log2MaxMvLengthHorizontal, err = r.ReadUE(); err != nil {
			return
		}
		if vui.Log2MaxMvLengthVertical, err = r.ReadUE(); err != nil {
			return
		}
	}
	return vui, nil
}
