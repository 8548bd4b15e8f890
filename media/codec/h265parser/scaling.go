package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// ScalingListData is scaling_list_data() (H.265 7.3.4): four size
// classes (4x4 .. 32x32) with six matrices each, except two for 32x32.
// DC coefficients exist for the 16x16 and 32x32 classes.
type ScalingListData struct {
	PredModeFlag       [4][]bool
	PredMatrixIDDelta  [4][]uint
	DcCoefMinus8       [4][]int
	ScalingList        [4][][]int
}

func parseScalingListData(r *bits.Reader) (sld *ScalingListData, err error) {
	sld = &ScalingListData{}
	for sizeID := 0; sizeID < 4; sizeID++ {
		numMatrices := 6
		if sizeID == 3 {
			numMatrices = 2
		}
		for matrixID := 0; matrixID < numMatrices; matrixID++ {
			var predMode bool
			if predMode, err = r.ReadFlag(); err != nil {
				return
			}
			sld.PredModeFlag[sizeID] = append(sld.PredModeFlag[sizeID], predMode)
			if !predMode {
				var delta uint
				if delta, err = r.ReadUE(); err != nil {
					return
				}
				sld.PredMatrixIDDelta[sizeID] = append(sld.PredMatrixIDDelta[sizeID], delta)
				continue
			}

			coefNum := 1 << uint(4+(sizeID<<1))
			if coefNum > 64 {
				coefNum = 64
			}
			nextCoef := 8
			if sizeID > 1 {
				var dc int
				if dc, err = r.ReadSE(); err != nil {
					return
				}
				sld.DcCoefMinus8[sizeID] = append(sld.DcCoefMinus8[sizeID], dc)
				nextCoef = dc + 8
			}
			list := make([]int, 0, coefNum)
			for i := 0; i < coefNum; i++ {
				var delta int
				if delta, err = r.ReadSE(); err != nil {
					return
				}
				nextCoef = (nextCoef + delta + 256) % 256
				list = append(list, nextCoef)
			}
			sld.ScalingList[sizeID] = append(sld.ScalingList[sizeID], list)
		}
	}
	return sld, nil
}
