package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// VPS is a parsed video parameter set (H.265 7.3.2.1).
type VPS struct {
	VideoParameterSetID     uint
	BaseLayerInternalFlag   bool
	BaseLayerAvailableFlag  bool
	MaxLayersMinus1         uint
	MaxSubLayersMinus1      uint
	TemporalIDNestingFlag   bool
	ProfileTierLevel        *ProfileTierLevel

	SubLayerOrderingInfoPresentFlag bool
	MaxDecPicBufferingMinus1        []uint
	MaxNumReorderPics               []uint
	MaxLatencyIncreasePlus1         []uint

	MaxLayerID          uint
	NumLayerSetsMinus1  uint
	LayerIDIncludedFlag [][]bool

	TimingInfoPresentFlag    bool
	NumUnitsInTick           uint
	TimeScale                uint
	PocProportionalToTimingFlag bool
	NumTicksPocDiffOneMinus1 uint
	NumHrdParameters         uint
	HrdLayerSetIdx           []uint
	CprmsPresentFlag         []bool
	HRD                      []*HRD

	ExtensionFlag bool
}

// ParseVPS decodes a VPS RBSP (payload after the two-byte NAL header,
// EPB-stripped).
func ParseVPS(data []byte) (vps *VPS, err error) {
	r := bits.NewReader(data)
	vps = &VPS{}

	if vps.VideoParameterSetID, err = readUint(r, 4); err != nil {
		return
	}
	if vps.BaseLayerInternalFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vps.BaseLayerAvailableFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vps.MaxLayersMinus1, err = readUint(r, 6); err != nil {
		return
	}
	if vps.MaxSubLayersMinus1, err = readUint(r, 3); err != nil {
		return
	}
	if vps.TemporalIDNestingFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if _, err = r.ReadBits(16); err != nil { // vps_reserved_0xffff_16bits
		return
	}
	if vps.ProfileTierLevel, err = parseProfileTierLevel(r, true, vps.MaxSubLayersMinus1); err != nil {
		return
	}
	if vps.SubLayerOrderingInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	start := vps.MaxSubLayersMinus1
	if vps.SubLayerOrderingInfoPresentFlag {
		start = 0
	}
	for i := start; i <= vps.MaxSubLayersMinus1; i++ {
		var dpb, reorder, latency uint
		if dpb, err = r.ReadUE(); err != nil {
			return
		}
		if reorder, err = r.ReadUE(); err != nil {
			return
		}
		if latency, err = r.ReadUE(); err != nil {
			return
		}
		vps.MaxDecPicBufferingMinus1 = append(vps.MaxDecPicBufferingMinus1, dpb)
		vps.MaxNumReorderPics = append(vps.MaxNumReorderPics, reorder)
		vps.MaxLatencyIncreasePlus1 = append(vps.MaxLatencyIncreasePlus1, latency)
	}
	if vps.MaxLayerID, err = readUint(r, 6); err != nil {
		return
	}
	if vps.NumLayerSetsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if vps.NumLayerSetsMinus1 > 1023 {
		return vps, bits.ErrMalformed
	}
	for i := uint(1); i <= vps.NumLayerSetsMinus1; i++ {
		row := make([]bool, 0, vps.MaxLayerID+1)
		for j := uint(0); j <= vps.MaxLayerID; j++ {
			var f bool
			if f, err = r.ReadFlag(); err != nil {
				return
			}
			row = append(row, f)
		}
		vps.LayerIDIncludedFlag = append(vps.LayerIDIncludedFlag, row)
	}
	if vps.TimingInfoPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if vps.TimingInfoPresentFlag {
		if vps.NumUnitsInTick, err = readUint(r, 32); err != nil {
			return
		}
		if vps.TimeScale, err = readUint(r, 32); err != nil {
			return
		}
		if vps.PocProportionalToTimingFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if vps.PocProportionalToTimingFlag {
			if vps.NumTicksPocDiffOneMinus1, err = r.ReadUE(); err != nil {
				return
			}
		}
		if vps.NumHrdParameters, err = r.ReadUE(); err != nil {
			return
		}
		if vps.NumHrdParameters > 1024 {
			return vps, bits.ErrMalformed
		}
		for i := uint(0); i < vps.NumHrdParameters; i++ {
			var idx uint
			if idx, err = r.ReadUE(); err != nil {
				return
			}
			vps.HrdLayerSetIdx = append(vps.HrdLayerSetIdx, idx)
			cprms := true
			if i > 0 {
				if cprms, err = r.ReadFlag(); err != nil {
					return
				}
			}
			vps.CprmsPresentFlag = append(vps.CprmsPresentFlag, cprms)
			var hrd *HRD
			if hrd, err = parseHRDParameters(r, cprms, vps.MaxSubLayersMinus1); err != nil {
				return
			}
			vps.HRD = append(vps.HRD, hrd)
		}
	}
	if vps.ExtensionFlag, err = r.ReadFlag(); err != nil {
		return
	}
	// vps_extension_data_flag bits, if any, are not interpreted.
	return vps, nil
}
