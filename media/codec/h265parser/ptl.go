package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// ProfileTierLevel is the profile_tier_level() structure (H.265 7.3.3).
// The constraint sub-flags are gated on general_profile_idc and the
// compatibility flags; the gate groups mirror the standard's clauses.
type ProfileTierLevel struct {
	GeneralProfileSpace             uint
	GeneralTierFlag                 bool
	GeneralProfileIdc               uint
	GeneralProfileCompatibilityFlag [32]bool
	GeneralProgressiveSourceFlag    bool
	GeneralInterlacedSourceFlag     bool
	GeneralNonPackedConstraintFlag  bool
	GeneralFrameOnlyConstraintFlag  bool

	GeneralMax12bitConstraintFlag      bool
	GeneralMax10bitConstraintFlag      bool
	GeneralMax8bitConstraintFlag       bool
	GeneralMax422ChromaConstraintFlag  bool
	GeneralMax420ChromaConstraintFlag  bool
	GeneralMaxMonochromeConstraintFlag bool
	GeneralIntraConstraintFlag         bool
	GeneralOnePictureOnlyConstraintFlag bool
	GeneralLowerBitRateConstraintFlag  bool
	GeneralMax14bitConstraintFlag      bool
	GeneralInbldFlag                   bool

	GeneralLevelIdc uint

	SubLayerProfilePresentFlag []bool
	SubLayerLevelPresentFlag   []bool
	SubLayers                  []SubLayerPTL
}

// SubLayerPTL holds the per-sub-layer slice of profile_tier_level.
type SubLayerPTL struct {
	ProfilePresent           bool
	ProfileSpace             uint
	TierFlag                 bool
	ProfileIdc               uint
	ProfileCompatibilityFlag [32]bool
	ProgressiveSourceFlag    bool
	InterlacedSourceFlag     bool
	NonPackedConstraintFlag  bool
	FrameOnlyConstraintFlag  bool
	LevelPresent             bool
	LevelIdc                 uint
}

func profileInGroup(idc uint, compat [32]bool, group []uint) bool {
	for _, g := range group {
		if idc == g || compat[g] {
			return true
		}
	}
	return false
}

var (
	extendedConstraintProfiles = []uint{4, 5, 6, 7, 8, 9, 10, 11}
	fourteenBitProfiles        = []uint{5, 9, 10, 11}
	inbldProfiles              = []uint{1, 2, 3, 4, 5, 9, 11}
)

// parseProfileTierLevel decodes profile_tier_level with
// profilePresentFlag and maxNumSubLayersMinus1 as in the standard.
func parseProfileTierLevel(r *bits.Reader, profilePresent bool, maxNumSubLayersMinus1 uint) (ptl *ProfileTierLevel, err error) {
	ptl = &ProfileTierLevel{}

	if profilePresent {
		if ptl.GeneralProfileSpace, err = readUint(r, 2); err != nil {
			return
		}
		if ptl.GeneralTierFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if ptl.GeneralProfileIdc, err = readUint(r, 5); err != nil {
			return
		}
		for i := 0; i < 32; i++ {
			if ptl.GeneralProfileCompatibilityFlag[i], err = r.ReadFlag(); err != nil {
				return
			}
		}
		if ptl.GeneralProgressiveSourceFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if ptl.GeneralInterlacedSourceFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if ptl.GeneralNonPackedConstraintFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if ptl.GeneralFrameOnlyConstraintFlag, err = r.ReadFlag(); err != nil {
			return
		}

		idc := ptl.GeneralProfileIdc
		compat := ptl.GeneralProfileCompatibilityFlag
		switch {
		case profileInGroup(idc, compat, extendedConstraintProfiles):
			if ptl.GeneralMax12bitConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralMax10bitConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralMax8bitConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralMax422ChromaConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralMax420ChromaConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralMaxMonochromeConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralIntraConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralOnePictureOnlyConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if ptl.GeneralLowerBitRateConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if profileInGroup(idc, compat, fourteenBitProfiles) {
				if ptl.GeneralMax14bitConstraintFlag, err = r.ReadFlag(); err != nil {
					return
				}
				if _, err = r.ReadBits(33); err != nil { // general_reserved_zero_33bits
					return
				}
			} else {
				if _, err = r.ReadBits(34); err != nil { // general_reserved_zero_34bits
					return
				}
			}
		case idc == 2 || compat[2]:
			if _, err = r.ReadBits(7); err != nil { // general_reserved_zero_7bits
				return
			}
			if ptl.GeneralOnePictureOnlyConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if _, err = r.ReadBits(35); err != nil { // general_reserved_zero_35bits
				return
			}
		default:
			if _, err = r.ReadBits(43); err != nil { // general_reserved_zero_43bits
				return
			}
		}

		if profileInGroup(idc, compat, inbldProfiles) {
			if ptl.GeneralInbldFlag, err = r.ReadFlag(); err != nil {
				return
			}
		} else {
			if _, err = r.ReadBits(1); err != nil { // general_reserved_zero_bit
				return
			}
		}
	}

	if ptl.GeneralLevelIdc, err = readUint(r, 8); err != nil {
		return
	}

	for i := uint(0); i < maxNumSubLayersMinus1; i++ {
		var pp, lp bool
		if pp, err = r.ReadFlag(); err != nil {
			return
		}
		if lp, err = r.ReadFlag(); err != nil {
			return
		}
		ptl.SubLayerProfilePresentFlag = append(ptl.SubLayerProfilePresentFlag, pp)
		ptl.SubLayerLevelPresentFlag = append(ptl.SubLayerLevelPresentFlag, lp)
	}
	if maxNumSubLayersMinus1 > 0 {
		for i := maxNumSubLayersMinus1; i < 8; i++ {
			if _, err = r.ReadBits(2); err != nil { // reserved_zero_2bits
				return
			}
		}
	}

	for i := uint(0); i < maxNumSubLayersMinus1; i++ {
		sl := SubLayerPTL{
			ProfilePresent: ptl.SubLayerProfilePresentFlag[i],
			LevelPresent:   ptl.SubLayerLevelPresentFlag[i],
		}
		if sl.ProfilePresent {
			if sl.ProfileSpace, err = readUint(r, 2); err != nil {
				return
			}
			if sl.TierFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if sl.ProfileIdc, err = readUint(r, 5); err != nil {
				return
			}
			for j := 0; j < 32; j++ {
				if sl.ProfileCompatibilityFlag[j], err = r.ReadFlag(); err != nil {
					return
				}
			}
			if sl.ProgressiveSourceFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if sl.InterlacedSourceFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if sl.NonPackedConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if sl.FrameOnlyConstraintFlag, err = r.ReadFlag(); err != nil {
				return
			}
			// Sub-layer constraint flags share the general gate logic;
			// the reserved paddings bring the block to 43 bits + inbld.
			if profileInGroup(sl.ProfileIdc, sl.ProfileCompatibilityFlag, extendedConstraintProfiles) {
				if _, err = r.ReadBits(9); err != nil { // constraint flags
					return
				}
				if profileInGroup(sl.ProfileIdc, sl.ProfileCompatibilityFlag, fourteenBitProfiles) {
					if _, err = r.ReadBits(34); err != nil { // max_14bit + zero_33bits
						return
					}
				} else {
					if _, err = r.ReadBits(34); err != nil { // zero_34bits
						return
					}
				}
			} else if sl.ProfileIdc == 2 || sl.ProfileCompatibilityFlag[2] {
				if _, err = r.ReadBits(43); err != nil { // zero_7bits + one_pic + zero_35bits
					return
				}
			} else {
				if _, err = r.ReadBits(43); err != nil { // zero_43bits
					return
				}
			}
			if _, err = r.ReadBits(1); err != nil { // inbld or reserved bit
				return
			}
		}
		if sl.LevelPresent {
			if sl.LevelIdc, err = readUint(r, 8); err != nil {
				return
			}
		}
		ptl.SubLayers = append(ptl.SubLayers, sl)
	}
	return ptl, nil
}

func readUint(r *bits.Reader, n int) (uint, error) {
	v, err := r.ReadBits(n)
	return uint(v), err
}
