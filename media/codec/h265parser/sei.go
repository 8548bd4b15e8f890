package h265parser

import (
	"github.com/KimVegetable/miat/utils/bits"
)

// SEI payload types (Annex D) the dispatcher recognizes. Most are decoded
// to fields; filler (3) and scalable nesting (133) keep their raw payload
// bytes in Parsed. Every other type is retained raw with its exact length.
const (
	SEIBufferingPeriod                    = 0
	SEIPicTiming                          = 1
	SEIPanScanRect                        = 2
	SEIFillerPayload                      = 3
	SEIUserDataRegisteredItuTT35          = 4
	SEIUserDataUnregistered               = 5
	SEIRecoveryPoint                      = 6
	SEIFramePackingArrangement            = 45
	SEIDisplayOrientation                 = 47
	SEIStructureOfPicturesInfo            = 128
	SEIActiveParameterSets                = 129
	SEIDecodingUnitInfo                   = 130
	SEITemporalSubLayerZeroIndex          = 131
	SEIDecodedPictureHash                 = 132
	SEIScalableNesting                    = 133
	SEIRegionRefreshInfo                  = 134
	SEINoDisplay                          = 135
	SEITimeCode                           = 136
	SEIMasteringDisplayColourVolume       = 137
	SEIContentLightLevelInfo              = 144
	SEIAlternativeTransferCharacteristics = 147
	SEIAmbientViewingEnvironment          = 148
	SEIContentColourVolume                = 149
)

// SEIMessage is one SEI message with the raw payload bytes and, for
// recognized types, the decoded body in Parsed.
type SEIMessage struct {
	PayloadType uint
	PayloadSize uint
	Payload     []byte
	Parsed      any
}

// BufferingPeriod is the buffering_period payload (D.2.2), decodable
// only when the active SPS carries HRD parameters.
type BufferingPeriod struct {
	SeqParameterSetID          uint
	IrapCpbParamsPresentFlag   bool
	CpbDelayOffset             uint
	DpbDelayOffset             uint
	ConcatenationFlag          bool
	AuCpbRemovalDelayDeltaMinus1 uint
	NalInitialCpbRemovalDelay  []uint
	NalInitialCpbRemovalOffset []uint
	VclInitialCpbRemovalDelay  []uint
	VclInitialCpbRemovalOffset []uint
}

// PicTiming is the pic_timing payload (D.2.3).
type PicTiming struct {
	PicStruct               uint
	SourceScanType          uint
	DuplicateFlag           bool
	AuCpbRemovalDelayMinus1 uint
	PicDpbOutputDelay       uint
}

// PanScanRect is the pan_scan_rect payload (D.2.4).
type PanScanRect struct {
	ID              uint
	CancelFlag      bool
	CntMinus1       uint
	LeftOffset      []int
	RightOffset     []int
	TopOffset       []int
	BottomOffset    []int
	PersistenceFlag bool
}

// UserDataRegisteredItuTT35 is the itu_t_t35 payload (D.2.6).
type UserDataRegisteredItuTT35 struct {
	CountryCode          uint
	CountryCodeExtension uint
	Payload              []byte
}

// UserDataUnregistered is the user_data_unregistered payload (D.2.7).
type UserDataUnregistered struct {
	UUID []byte
	Data []byte
}

// RecoveryPoint is the recovery_point payload (D.2.8).
type RecoveryPoint struct {
	RecoveryPocCnt int
	ExactMatchFlag bool
	BrokenLinkFlag bool
}

// FramePackingArrangement is payload type 45 (D.2.16).
type FramePackingArrangement struct {
	ID                        uint
	CancelFlag                bool
	ArrangementType           uint
	QuincunxSamplingFlag      bool
	ContentInterpretationType uint
	SpatialFlippingFlag       bool
	Frame0FlippedFlag         bool
	FieldViewsFlag            bool
	CurrentFrameIsFrame0Flag  bool
	Frame0SelfContainedFlag   bool
	Frame1SelfContainedFlag   bool
	Frame0GridPositionX       uint
	Frame0GridPositionY      uint
	Frame1GridPositionX       uint
	Frame1GridPositionY       uint
	PersistenceFlag           bool
	UpsampledAspectRatioFlag  bool
}

// DisplayOrientation is payload type 47 (D.2.17).
type DisplayOrientation struct {
	CancelFlag            bool
	HorFlip               bool
	VerFlip               bool
	AnticlockwiseRotation uint
	PersistenceFlag       bool
}

// SOPEntry is one entry of structure_of_pictures_info.
type SOPEntry struct {
	VclNut          uint
	TemporalID      uint
	ShortTermRpsIdx uint
	PocDelta        int
}

// StructureOfPicturesInfo is payload type 128 (D.2.23).
type StructureOfPicturesInfo struct {
	SeqParameterSetID  uint
	NumEntriesInSopMinus1 uint
	Entries            []SOPEntry
}

// ActiveParameterSets is payload type 129 (D.2.24).
type ActiveParameterSets struct {
	ActiveVideoParameterSetID uint
	SelfContainedCvsFlag      bool
	NoParameterSetUpdateFlag  bool
	NumSpsIdsMinus1           uint
	ActiveSeqParameterSetID   []uint
}

// TemporalSubLayerZeroIndex is payload type 131 (D.2.26).
type TemporalSubLayerZeroIndex struct {
	TemporalSubLayerZeroIdx uint
	IrapPicID               uint
}

// DecodedPictureHash is payload type 132 (D.2.27).
type DecodedPictureHash struct {
	HashType        uint
	PictureMD5      [][]byte
	PictureCRC      []uint
	PictureChecksum []uint
}

// RegionRefreshInfo is payload type 134 (D.2.29).
type RegionRefreshInfo struct {
	RefreshedRegionFlag bool
}

// ClockTimestamp is one clock timestamp of the time_code payload.
type ClockTimestamp struct {
	ClockTimestampFlag  bool
	UnitsFieldBasedFlag bool
	CountingType        uint
	FullTimestampFlag   bool
	DiscontinuityFlag   bool
	CntDroppedFlag      bool
	NFrames             uint
	SecondsValue        uint
	MinutesValue        uint
	HoursValue          uint
	TimeOffsetLength    uint
	TimeOffsetValue     uint
}

// TimeCode is payload type 136 (D.2.30).
type TimeCode struct {
	NumClockTs      uint
	ClockTimestamps []ClockTimestamp
}

// MasteringDisplayColourVolume is payload type 137 (D.2.31).
type MasteringDisplayColourVolume struct {
	DisplayPrimariesX            [3]uint
	DisplayPrimariesY            [3]uint
	WhitePointX                  uint
	WhitePointY                  uint
	MaxDisplayMasteringLuminance uint
	MinDisplayMasteringLuminance uint
}

// ContentLightLevelInfo is payload type 144 (D.2.35).
type ContentLightLevelInfo struct {
	MaxContentLightLevel    uint
	MaxPicAverageLightLevel uint
}

// AlternativeTransferCharacteristics is payload type 147 (D.2.38).
type AlternativeTransferCharacteristics struct {
	PreferredTransferCharacteristics uint
}

// AmbientViewingEnvironment is payload type 148 (D.2.39).
type AmbientViewingEnvironment struct {
	AmbientIlluminance uint
	AmbientLightX      uint
	AmbientLightY      uint
}

// ContentColourVolume is payload type 149 (D.2.40).
type ContentColourVolume struct {
	CancelFlag               bool
	PersistenceFlag          bool
	PrimariesPresentFlag     bool
	MinLuminancePresentFlag  bool
	MaxLuminancePresentFlag  bool
	AvgLuminancePresentFlag  bool
	PrimariesX               [3]uint
	PrimariesY               [3]uint
	MinLuminanceValue        uint
	MaxLuminanceValue        uint
	AvgLuminanceValue        uint
}

// ParseSEI splits an SEI RBSP into messages and decodes the recognized
// payload types. data is the EPB-stripped payload after the two-byte
// NAL header; the active SPS (may be nil) supplies HRD field widths.
func ParseSEI(data []byte, sps *SPS) []*SEIMessage {
	var messages []*SEIMessage
	i := 0
	for i < len(data) {
		if data[i] == 0x80 { // rbsp trailing bits
			break
		}
		payloadType := 0
		for i < len(data) && data[i] == 0xFF {
			payloadType += 255
			i++
		}
		if i >= len(data) {
			break
		}
		payloadType += int(data[i])
		i++

		payloadSize := 0
		for i < len(data) && data[i] == 0xFF {
			payloadSize += 255
			i++
		}
		if i >= len(data) {
			break
		}
		payloadSize += int(data[i])
		i++

		if i+payloadSize > len(data) {
			break
		}
		payload := data[i : i+payloadSize]
		i += payloadSize

		msg := &SEIMessage{
			PayloadType: uint(payloadType),
			PayloadSize: uint(payloadSize),
			Payload:     payload,
		}
		msg.Parsed = parseSEIPayload(uint(payloadType), payload, sps)
		messages = append(messages, msg)
	}
	return messages
}

// parseSEIPayload decodes one payload; nil means the type stays raw.
// A payload that runs short is kept raw rather than partially typed,
// except decoded_picture_hash, which keeps the hash entries read before
// the payload ran out.
func parseSEIPayload(payloadType uint, payload []byte, sps *SPS) any {
	r := bits.NewReader(payload)
	var parsed any
	var err error
	switch payloadType {
	case SEIBufferingPeriod:
		parsed, err = parseBufferingPeriod(r, sps)
	case SEIPicTiming:
		parsed, err = parsePicTiming(r, sps)
	case SEIPanScanRect:
		parsed, err = parsePanScanRect(r)
	case SEIFillerPayload:
		return payload
	case SEIUserDataRegisteredItuTT35:
		parsed, err = parseUserDataRegistered(r, payload)
	case SEIUserDataUnregistered:
		if len(payload) < 16 {
			return nil
		}
		return &UserDataUnregistered{UUID: payload[:16], Data: payload[16:]}
	case SEIRecoveryPoint:
		parsed, err = parseRecoveryPoint(r)
	case SEIFramePackingArrangement:
		parsed, err = parseFramePackingArrangement(r)
	case SEIDisplayOrientation:
		parsed, err = parseDisplayOrientation(r)
	case SEIStructureOfPicturesInfo:
		parsed, err = parseStructureOfPicturesInfo(r)
	case SEIActiveParameterSets:
		parsed, err = parseActiveParameterSets(r)
	case SEIDecodingUnitInfo:
		parsed, err = parseDecodingUnitInfo(r, sps)
	case SEITemporalSubLayerZeroIndex:
		parsed, err = parseTemporalSubLayerZeroIndex(r)
	case SEIDecodedPictureHash:
		parsed, err = parseDecodedPictureHash(r, payload)
	case SEIScalableNesting:
		return payload
	case SEIRegionRefreshInfo:
		parsed, err = parseRegionRefreshInfo(r)
	case SEINoDisplay:
		return &struct{}{}
	case SEITimeCode:
		parsed, err = parseTimeCode(r)
	case SEIMasteringDisplayColourVolume:
		parsed, err = parseMasteringDisplay(r)
	case SEIContentLightLevelInfo:
		parsed, err = parseContentLightLevel(r)
	case SEIAlternativeTransferCharacteristics:
		parsed, err = parseAlternativeTransfer(r)
	case SEIAmbientViewingEnvironment:
		parsed, err = parseAmbientViewing(r)
	case SEIContentColourVolume:
		parsed, err = parseContentColourVolume(r)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return parsed
}

func activeHRD(sps *SPS) *HRD {
	if sps == nil || sps.VUI == nil || !sps.VUI.HrdParametersPresentFlag {
		return nil
	}
	return sps.VUI.HRD
}

func parseBufferingPeriod(r *bits.Reader, sps *SPS) (bp *BufferingPeriod, err error) {
	hrd := activeHRD(sps)
	if hrd == nil {
		return nil, bits.ErrMalformed
	}
	bp = &BufferingPeriod{}
	if bp.SeqParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if !hrd.SubPicHrdParamsPresentFlag {
		if bp.IrapCpbParamsPresentFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if bp.IrapCpbParamsPresentFlag {
		if bp.CpbDelayOffset, err = readUint(r, int(hrd.AuCpbRemovalDelayLengthMinus1)+1); err != nil {
			return
		}
		if bp.DpbDelayOffset, err = readUint(r, int(hrd.DpbOutputDelayLengthMinus1)+1); err != nil {
			return
		}
	}
	if bp.ConcatenationFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if bp.AuCpbRemovalDelayDeltaMinus1, err = readUint(r, int(hrd.AuCpbRemovalDelayLengthMinus1)+1); err != nil {
		return
	}
	cpbCnt := uint(0)
	if len(hrd.SubLayers) > 0 {
		cpbCnt = hrd.SubLayers[0].CpbCntMinus1
	}
	delayLen := int(hrd.InitialCpbRemovalDelayLengthMinus1) + 1
	if hrd.NalHrdParametersPresentFlag {
		for i := uint(0); i <= cpbCnt; i++ {
			var d, o uint
			if d, err = readUint(r, delayLen); err != nil {
				return
			}
			if o, err = readUint(r, delayLen); err != nil {
				return
			}
			bp.NalInitialCpbRemovalDelay = append(bp.NalInitialCpbRemovalDelay, d)
			bp.NalInitialCpbRemovalOffset = append(bp.NalInitialCpbRemovalOffset, o)
			if hrd.SubPicHrdParamsPresentFlag || bp.IrapCpbParamsPresentFlag {
				if _, err = r.ReadBits(delayLen); err != nil { // alt delay
					return
				}
				if _, err = r.ReadBits(delayLen); err != nil { // alt offset
					return
				}
			}
		}
	}
	if hrd.VclHrdParametersPresentFlag {
		for i := uint(0); i <= cpbCnt; i++ {
			var d, o uint
			if d, err = readUint(r, delayLen); err != nil {
				return
			}
			if o, err = readUint(r, delayLen); err != nil {
				return
			}
			bp.VclInitialCpbRemovalDelay = append(bp.VclInitialCpbRemovalDelay, d)
			bp.VclInitialCpbRemovalOffset = append(bp.VclInitialCpbRemovalOffset, o)
			if hrd.SubPicHrdParamsPresentFlag || bp.IrapCpbParamsPresentFlag {
				if _, err = r.ReadBits(delayLen); err != nil {
					return
				}
				if _, err = r.ReadBits(delayLen); err != nil {
					return
				}
			}
		}
	}
	return bp, nil
}

func parsePicTiming(r *bits.Reader, sps *SPS) (pt *PicTiming, err error) {
	if sps == nil || sps.VUI == nil {
		return nil, bits.ErrMalformed
	}
	pt = &PicTiming{}
	vui := sps.VUI
	if vui.FrameFieldInfoPresentFlag {
		if pt.PicStruct, err = readUint(r, 4); err != nil {
			return
		}
		if pt.SourceScanType, err = readUint(r, 2); err != nil {
			return
		}
		if pt.DuplicateFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	hrd := activeHRD(sps)
	if hrd != nil {
		if pt.AuCpbRemovalDelayMinus1, err = readUint(r, int(hrd.AuCpbRemovalDelayLengthMinus1)+1); err != nil {
			return
		}
		if pt.PicDpbOutputDelay, err = readUint(r, int(hrd.DpbOutputDelayLengthMinus1)+1); err != nil {
			return
		}
	}
	return pt, nil
}

func parsePanScanRect(r *bits.Reader) (psr *PanScanRect, err error) {
	psr = &PanScanRect{}
	if psr.ID, err = r.ReadUE(); err != nil {
		return
	}
	if psr.CancelFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if psr.CancelFlag {
		return psr, nil
	}
	if psr.CntMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if psr.CntMinus1 > 2 {
		return psr, bits.ErrMalformed
	}
	for i := uint(0); i <= psr.CntMinus1; i++ {
		var l, rt, t, b int
		if l, err = r.ReadSE(); err != nil {
			return
		}
		if rt, err = r.ReadSE(); err != nil {
			return
		}
		if t, err = r.ReadSE(); err != nil {
			return
		}
		if b, err = r.ReadSE(); err != nil {
			return
		}
		psr.LeftOffset = append(psr.LeftOffset, l)
		psr.RightOffset = append(psr.RightOffset, rt)
		psr.TopOffset = append(psr.TopOffset, t)
		psr.BottomOffset = append(psr.BottomOffset, b)
	}
	if psr.PersistenceFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return psr, nil
}

func parseUserDataRegistered(r *bits.Reader, payload []byte) (ud *UserDataRegisteredItuTT35, err error) {
	ud = &UserDataRegisteredItuTT35{}
	if ud.CountryCode, err = readUint(r, 8); err != nil {
		return
	}
	consumed := 1
	if ud.CountryCode == 0xFF {
		if ud.CountryCodeExtension, err = readUint(r, 8); err != nil {
			return
		}
		consumed = 2
	}
	ud.Payload = payload[consumed:]
	return ud, nil
}

func parseRecoveryPoint(r *bits.Reader) (rp *RecoveryPoint, err error) {
	rp = &RecoveryPoint{}
	if rp.RecoveryPocCnt, err = r.ReadSE(); err != nil {
		return
	}
	if rp.ExactMatchFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if rp.BrokenLinkFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return rp, nil
}

func parseFramePackingArrangement(r *bits.Reader) (fpa *FramePackingArrangement, err error) {
	fpa = &FramePackingArrangement{}
	if fpa.ID, err = r.ReadUE(); err != nil {
		return
	}
	if fpa.CancelFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if !fpa.CancelFlag {
		if fpa.ArrangementType, err = readUint(r, 7); err != nil {
			return
		}
		if fpa.QuincunxSamplingFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if fpa.ContentInterpretationType, err = readUint(r, 6); err != nil {
			return
		}
		if fpa.SpatialFlippingFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if fpa.Frame0FlippedFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if fpa.FieldViewsFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if fpa.CurrentFrameIsFrame0Flag, err = r.ReadFlag(); err != nil {
			return
		}
		if fpa.Frame0SelfContainedFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if fpa.Frame1SelfContainedFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if !fpa.QuincunxSamplingFlag && fpa.ArrangementType != 5 {
			if fpa.Frame0GridPositionX, err = readUint(r, 4); err != nil {
				return
			}
			if fpa.Frame0GridPositionY, err = readUint(r, 4); err != nil {
				return
			}
			if fpa.Frame1GridPositionX, err = readUint(r, 4); err != nil {
				return
			}
			if fpa.Frame1GridPositionY, err = readUint(r, 4); err != nil {
				return
			}
		}
		if _, err = r.ReadBits(8); err != nil { // reserved byte
			return
		}
		if fpa.PersistenceFlag, err = r.ReadFlag(); err != nil {
			return
		}
	}
	if fpa.UpsampledAspectRatioFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return fpa, nil
}

func parseDisplayOrientation(r *bits.Reader) (do *DisplayOrientation, err error) {
	do = &DisplayOrientation{}
	if do.CancelFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if do.CancelFlag {
		return do, nil
	}
	if do.HorFlip, err = r.ReadFlag(); err != nil {
		return
	}
	if do.VerFlip, err = r.ReadFlag(); err != nil {
		return
	}
	if do.AnticlockwiseRotation, err = readUint(r, 16); err != nil {
		return
	}
	if do.PersistenceFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return do, nil
}

func parseStructureOfPicturesInfo(r *bits.Reader) (sop *StructureOfPicturesInfo, err error) {
	sop = &StructureOfPicturesInfo{}
	if sop.SeqParameterSetID, err = r.ReadUE(); err != nil {
		return
	}
	if sop.NumEntriesInSopMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if sop.NumEntriesInSopMinus1 > 1023 {
		return sop, bits.ErrMalformed
	}
	for i := uint(0); i <= sop.NumEntriesInSopMinus1; i++ {
		var e SOPEntry
		if e.VclNut, err = readUint(r, 6); err != nil {
			return
		}
		if e.TemporalID, err = readUint(r, 3); err != nil {
			return
		}
		if e.VclNut != NALTypeIDRWRadl && e.VclNut != NALTypeIDRNLP {
			if e.ShortTermRpsIdx, err = r.ReadUE(); err != nil {
				return
			}
			if i > 0 {
				if e.PocDelta, err = r.ReadSE(); err != nil {
					return
				}
			}
		}
		sop.Entries = append(sop.Entries, e)
	}
	return sop, nil
}

func parseActiveParameterSets(r *bits.Reader) (aps *ActiveParameterSets, err error) {
	aps = &ActiveParameterSets{}
	if aps.ActiveVideoParameterSetID, err = readUint(r, 4); err != nil {
		return
	}
	if aps.SelfContainedCvsFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if aps.NoParameterSetUpdateFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if aps.NumSpsIdsMinus1, err = r.ReadUE(); err != nil {
		return
	}
	if aps.NumSpsIdsMinus1 > 15 {
		return aps, bits.ErrMalformed
	}
	for i := uint(0); i <= aps.NumSpsIdsMinus1; i++ {
		var id uint
		if id, err = r.ReadUE(); err != nil {
			return
		}
		aps.ActiveSeqParameterSetID = append(aps.ActiveSeqParameterSetID, id)
	}
	return aps, nil
}

// DecodingUnitInfo is payload type 130 (D.2.25).
type DecodingUnitInfo struct {
	DecodingUnitIdx              uint
	DuSptCpbRemovalDelayIncrement uint
	DpbOutputDuDelayPresentFlag  bool
	PicSptDpbOutputDuDelay       uint
}

func parseDecodingUnitInfo(r *bits.Reader, sps *SPS) (dui *DecodingUnitInfo, err error) {
	hrd := activeHRD(sps)
	if hrd == nil {
		return nil, bits.ErrMalformed
	}
	dui = &DecodingUnitInfo{}
	if dui.DecodingUnitIdx, err = r.ReadUE(); err != nil {
		return
	}
	if !hrd.SubPicCpbParamsInPicTimingSeiFlag {
		if dui.DuSptCpbRemovalDelayIncrement, err = readUint(r, int(hrd.DuCpbRemovalDelayIncrementLengthMinus1)+1); err != nil {
			return
		}
	}
	if dui.DpbOutputDuDelayPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if dui.DpbOutputDuDelayPresentFlag {
		if dui.PicSptDpbOutputDuDelay, err = readUint(r, int(hrd.DpbOutputDelayDuLengthMinus1)+1); err != nil {
			return
		}
	}
	return dui, nil
}

func parseTemporalSubLayerZeroIndex(r *bits.Reader) (t *TemporalSubLayerZeroIndex, err error) {
	t = &TemporalSubLayerZeroIndex{}
	if t.TemporalSubLayerZeroIdx, err = readUint(r, 8); err != nil {
		return
	}
	if t.IrapPicID, err = readUint(r, 8); err != nil {
		return
	}
	return t, nil
}

func parseDecodedPictureHash(r *bits.Reader, payload []byte) (dph *DecodedPictureHash, err error) {
	dph = &DecodedPictureHash{}
	if dph.HashType, err = readUint(r, 8); err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		switch dph.HashType {
		case 0:
			start := 1 + i*16
			if start+16 > len(payload) {
				return dph, nil
			}
			dph.PictureMD5 = append(dph.PictureMD5, payload[start:start+16])
		case 1:
			var v uint
			if v, err = readUint(r, 16); err != nil {
				return dph, nil
			}
			dph.PictureCRC = append(dph.PictureCRC, v)
		case 2:
			var v uint
			if v, err = readUint(r, 32); err != nil {
				return dph, nil
			}
			dph.PictureChecksum = append(dph.PictureChecksum, v)
		}
	}
	return dph, nil
}

func parseRegionRefreshInfo(r *bits.Reader) (rri *RegionRefreshInfo, err error) {
	rri = &RegionRefreshInfo{}
	if rri.RefreshedRegionFlag, err = r.ReadFlag(); err != nil {
		return
	}
	return rri, nil
}

func parseTimeCode(r *bits.Reader) (tc *TimeCode, err error) {
	tc = &TimeCode{}
	if tc.NumClockTs, err = readUint(r, 2); err != nil {
		return
	}
	for i := uint(0); i < tc.NumClockTs; i++ {
		var cts ClockTimestamp
		if cts.ClockTimestampFlag, err = r.ReadFlag(); err != nil {
			return
		}
		if cts.ClockTimestampFlag {
			if cts.UnitsFieldBasedFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if cts.CountingType, err = readUint(r, 5); err != nil {
				return
			}
			if cts.FullTimestampFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if cts.DiscontinuityFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if cts.CntDroppedFlag, err = r.ReadFlag(); err != nil {
				return
			}
			if cts.NFrames, err = readUint(r, 9); err != nil {
				return
			}
			if cts.FullTimestampFlag {
				if cts.SecondsValue, err = readUint(r, 6); err != nil {
					return
				}
				if cts.MinutesValue, err = readUint(r, 6); err != nil {
					return
				}
				if cts.HoursValue, err = readUint(r, 5); err != nil {
					return
				}
			} else {
				var f bool
				if f, err = r.ReadFlag(); err != nil {
					return
				}
				if f {
					if cts.SecondsValue, err = readUint(r, 6); err != nil {
						return
					}
					if f, err = r.ReadFlag(); err != nil {
						return
					}
					if f {
						if cts.MinutesValue, err = readUint(r, 6); err != nil {
							return
						}
						if f, err = r.ReadFlag(); err != nil {
							return
						}
						if f {
							if cts.HoursValue, err = readUint(r, 5); err != nil {
								return
							}
						}
					}
				}
			}
			if cts.TimeOffsetLength, err = readUint(r, 5); err != nil {
				return
			}
			if cts.TimeOffsetLength > 0 {
				if cts.TimeOffsetValue, err = readUint(r, int(cts.TimeOffsetLength)); err != nil {
					return
				}
			}
		}
		tc.ClockTimestamps = append(tc.ClockTimestamps, cts)
	}
	return tc, nil
}

func parseMasteringDisplay(r *bits.Reader) (m *MasteringDisplayColourVolume, err error) {
	m = &MasteringDisplayColourVolume{}
	for i := 0; i < 3; i++ {
		if m.DisplayPrimariesX[i], err = readUint(r, 16); err != nil {
			return
		}
	}
	for i := 0; i < 3; i++ {
		if m.DisplayPrimariesY[i], err = readUint(r, 16); err != nil {
			return
		}
	}
	if m.WhitePointX, err = readUint(r, 16); err != nil {
		return
	}
	if m.WhitePointY, err = readUint(r, 16); err != nil {
		return
	}
	if m.MaxDisplayMasteringLuminance, err = readUint(r, 32); err != nil {
		return
	}
	if m.MinDisplayMasteringLuminance, err = readUint(r, 32); err != nil {
		return
	}
	return m, nil
}

func parseContentLightLevel(r *bits.Reader) (c *ContentLightLevelInfo, err error) {
	c = &ContentLightLevelInfo{}
	if c.MaxContentLightLevel, err = readUint(r, 16); err != nil {
		return
	}
	if c.MaxPicAverageLightLevel, err = readUint(r, 16); err != nil {
		return
	}
	return c, nil
}

func parseAlternativeTransfer(r *bits.Reader) (a *AlternativeTransferCharacteristics, err error) {
	a = &AlternativeTransferCharacteristics{}
	if a.PreferredTransferCharacteristics, err = readUint(r, 8); err != nil {
		return
	}
	return a, nil
}

func parseAmbientViewing(r *bits.Reader) (a *AmbientViewingEnvironment, err error) {
	a = &AmbientViewingEnvironment{}
	if a.AmbientIlluminance, err = readUint(r, 32); err != nil {
		return
	}
	if a.AmbientLightX, err = readUint(r, 16); err != nil {
		return
	}
	if a.AmbientLightY, err = readUint(r, 16); err != nil {
		return
	}
	return a, nil
}

func parseContentColourVolume(r *bits.Reader) (ccv *ContentColourVolume, err error) {
	ccv = &ContentColourVolume{}
	if ccv.CancelFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ccv.CancelFlag {
		return ccv, nil
	}
	if ccv.PersistenceFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ccv.PrimariesPresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ccv.MinLuminancePresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ccv.MaxLuminancePresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if ccv.AvgLuminancePresentFlag, err = r.ReadFlag(); err != nil {
		return
	}
	if _, err = r.ReadBits(2); err != nil { // reserved
		return
	}
	if ccv.PrimariesPresentFlag {
		for i := 0; i < 3; i++ {
			if ccv.PrimariesX[i], err = readUint(r, 32); err != nil {
				return
			}
			if ccv.PrimariesY[i], err = readUint(r, 32); err != nil {
				return
			}
		}
	}
	if ccv.MinLuminancePresentFlag {
		if ccv.MinLuminanceValue, err = readUint(r, 32); err != nil {
			return
		}
	}
	if ccv.MaxLuminancePresentFlag {
		if ccv.MaxLuminanceValue, err = readUint(r, 32); err != nil {
			return
		}
	}
	if ccv.AvgLuminancePresentFlag {
		if ccv.AvgLuminanceValue, err = readUint(r, 32); err != nil {
			return
		}
	}
	return ccv, nil
}
