package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

const maxShortTermRefPics = 16

// ShortTermRefPicSet is short_term_ref_pic_set() (H.265 7.3.7), in
// either the inter-predicted or the explicit form.
type ShortTermRefPicSet struct {
	InterRefPicSetPredictionFlag bool

	// Inter-predicted form.
	DeltaIdxMinus1    uint
	DeltaRpsSign      uint
	AbsDeltaRpsMinus1 uint
	UsedByCurrPicFlag []bool
	UseDeltaFlag      []bool

	// Explicit form.
	NumNegativePics     uint
	NumPositivePics     uint
	DeltaPocS0Minus1    []uint
	UsedByCurrPicS0Flag []bool
	DeltaPocS1Minus1    []uint
	UsedByCurrPicS1Flag []bool

	// NumDeltaPocs per 7.4.8; for the inter-predicted form it counts
	// entries kept from the reference set.
	NumDeltaPocs uint
}

// DeltaPocsS0 returns the negative delta-POC values (explicit form).
func (s *ShortTermRefPicSet) DeltaPocsS0() []int {
	out := make([]int, 0, len(s.DeltaPocS0Minus1))
	for _, d := range s.DeltaPocS0Minus1 {
		out = append(out, -int(d+1))
	}
	return out
}

// DeltaPocsS1 returns the positive delta-POC values (explicit form).
func (s *ShortTermRefPicSet) DeltaPocsS1() []int {
	out := make([]int, 0, len(s.DeltaPocS1Minus1))
	for _, d := range s.DeltaPocS1Minus1 {
		out = append(out, int(d+1))
	}
	return out
}

// parseShortTermRefPicSet decodes the set at stRpsIdx. prior holds the
// already decoded sets of the SPS; a slice-header set passes
// stRpsIdx == numShortTermRefPicSets and may address any prior set via
// delta_idx_minus1.
func parseShortTermRefPicSet(r *bits.Reader, stRpsIdx, numShortTermRefPicSets uint, prior []*ShortTermRefPicSet) (rps *ShortTermRefPicSet, err error) {
	rps = &ShortTermRefPicSet{}

	if stRpsIdx != 0 {
		if rps.InterRefPicSetPredictionFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}

	if rps.InterRefPicSetPredictionFlag {
		deltaIdx := uint(1)
		if stRpsIdx == numShortTermRefPicSets {
			if rps.DeltaIdxMinus1, err = r.ReadUE(); err != nil {
				return
			}
			deltaIdx = rps.DeltaIdxMinus1 + 1
		}
		if deltaIdx > stRpsIdx {
			return rps, bits.ErrMalformed
		}
		if rps.DeltaRpsSign, err = readUint(r, 1); err != nil {
			return
		}
		if rps.AbsDeltaRpsMinus1, err = r.ReadUE(); err != nil {
			return
		}
		refIdx := stRpsIdx - deltaIdx
		var refNumDeltaPocs uint
		if int(refIdx) < len(prior) && prior[refIdx] != nil {
			refNumDeltaPocs = prior[refIdx].NumDeltaPocs
		}
		// Exactly NumDeltaPocs(ref) + 1 used_by_curr_pic_flag values.
		for j := uint(0); j <= refNumDeltaPocs; j++ {
			var used bool
			if used, err = r.ReadFlag(); err != nil {
				return
			}
			rps.UsedByCurrPicFlag = append(rps.UsedByCurrPicFlag, used)
			useDelta := true
			if !used {
				if useDelta, err = r.ReadFlag(); err != nil {
					return
				}
				rps.UseDeltaFlag = append(rps.UseDeltaFlag, useDelta)
			}
			if used || useDelta {
				rps.NumDeltaPocs++
			}
		}
		return rps, nil
	}

	if rps.NumNegativePics, err = r.ReadUE(); err != nil {
		return
	}
	if rps.NumPositivePics, err = r.ReadUE(); err != nil {
		return
	}
	if rps.NumNegativePics > maxShortTermRefPics || rps.NumPositivePics > maxShortTermRefPics {
		return rps, bits.ErrMalformed
	}
	for i := uint(0); i < rps.NumNegativePics; i++ {
		var d uint
		var used bool
		if d, err = r.ReadUE(); err != nil {
			return
		}
		if used, err = r.ReadFlag(); err != nil {
			return
		}
		rps.DeltaPocS0Minus1 = append(rps.DeltaPocS0Minus1, d)
		rps.UsedByCurrPicS0Flag = append(rps.UsedByCurrPicS0Flag, used)
	}
	for i := uint(0); i < rps.NumPositivePics; i++ {
		var d uint
		var used bool
		if d, err = r.ReadUE(); err != nil {
			return
		}
		if used, err = r.ReadFlag(); err != nil {
			return
		}
		rps.DeltaPocS1Minus1 = append(rps.DeltaPocS1Minus1, d)
		rps.UsedByCurrPicS1Flag = append(rps.UsedByCurrPicS1Flag, used)
	}
	rps.NumDeltaPocs = rps.NumNegativePics + rps.NumPositivePics
	return rps, nil
}
