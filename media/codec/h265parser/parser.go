// Package h265parser reconstructs the syntax of an H.265 (ITU-T H.265)
// Annex B elementary stream: VPS, SPS, PPS, SEI prefix/suffix and slice
// segment headers, including the profile_tier_level, scaling-list,
// short-term RPS and extension sub-structures. Slice data is opaque.
package h265parser

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/KimVegetable/miat/media/nal"
	"github.com/KimVegetable/miat/utils/bits"
)

// H.265 NAL unit type constants (ITU-T H.265 Table 7-1).
const (
	NALTypeTrailN        = 0
	NALTypeTrailR        = 1
	NALTypeBlaWLP        = 16
	NALTypeIDRWRadl      = 19
	NALTypeIDRNLP        = 20
	NALTypeCraNut        = 21
	NALTypeRsvIRAPVcl23  = 23
	NALTypeVPS           = 32
	NALTypeSPS           = 33
	NALTypePPS           = 34
	NALTypeAUD           = 35
	NALTypeEOS           = 36
	NALTypeEOB           = 37
	NALTypeFillerData    = 38
	NALTypeSEIPrefix     = 39
	NALTypeSEISuffix     = 40
)

// IsVCL reports whether the NAL type carries coded slice data.
func IsVCL(nalType uint) bool {
	return nalType < NALTypeVPS
}

// IsIRAP reports whether the NAL type is a random access point.
func IsIRAP(nalType uint) bool {
	return nalType >= NALTypeBlaWLP && nalType <= NALTypeRsvIRAPVcl23
}

// NALUnit is one framed H.265 NAL unit. The two-byte header decodes to
// type, layer id and temporal id.
type NALUnit struct {
	ForbiddenZeroBit   uint
	NalUnitType        uint
	NuhLayerID         uint
	NuhTemporalIDPlus1 uint
	StartOffset        int
	Length             int
	Data               []byte
	RawData            []byte
	Parsed             any
}

// AUD is an access unit delimiter body.
type AUD struct {
	PicType uint
}

// Stream is the parsed record of one H.265 elementary stream.
type Stream struct {
	NALUnits      []*NALUnit
	VPS           []*VPS
	SPS           []*SPS
	PPS           []*PPS
	SEIPrefix     []*SEIMessage
	SEISuffix     []*SEIMessage
	SliceSegments []*SliceSegment
	AUD           []*AUD
	FillerData    [][]byte
	Warnings      []string

	VPSByID map[uint]*VPS
	SPSByID map[uint]*SPS
	PPSByID map[uint]*PPS
}

func newStream() *Stream {
	return &Stream{
		VPSByID: make(map[uint]*VPS),
		SPSByID: make(map[uint]*SPS),
		PPSByID: make(map[uint]*PPS),
	}
}

func (s *Stream) warnf(format string, args ...any) {
	log.Warn().Str("codec", "h265").Msgf(format, args...)
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Options carries out-of-band parameter sets from the container (hvcC
// or a HEIF hvcC property). Entries are complete NAL units without
// start codes.
type Options struct {
	VPS [][]byte
	SPS [][]byte
	PPS [][]byte
}

// ParseStream frames data into NAL units and decodes everything this
// parser understands. Out-of-band parameter sets are installed before
// any in-band NAL so slices can resolve their references.
func ParseStream(data []byte, opts Options) *Stream {
	s := newStream()

	for _, raw := range opts.VPS {
		s.addOutOfBandNAL(raw)
	}
	for _, raw := range opts.SPS {
		s.addOutOfBandNAL(raw)
	}
	for _, raw := range opts.PPS {
		s.addOutOfBandNAL(raw)
	}

	for _, u := range nal.Split(data) {
		if len(u.Payload) < 2 {
			continue
		}
		n := s.newNALUnit(u.Payload, u.StartOffset, u.Length, u.Data)
		s.NALUnits = append(s.NALUnits, n)
		s.dispatch(n)
	}
	return s
}

func (s *Stream) newNALUnit(payload []byte, offset, length int, data []byte) *NALUnit {
	header := uint(payload[0])<<8 | uint(payload[1])
	return &NALUnit{
		ForbiddenZeroBit:   (header >> 15) & 0x01,
		NalUnitType:        (header >> 9) & 0x3F,
		NuhLayerID:         (header >> 3) & 0x3F,
		NuhTemporalIDPlus1: header & 0x07,
		StartOffset:        offset,
		Length:             length,
		Data:               data,
		RawData:            nal.StripEmulationPrevention(payload[2:]),
	}
}

func (s *Stream) addOutOfBandNAL(raw []byte) {
	if len(raw) < 2 {
		return
	}
	data := append(append([]byte{}, nal.StartCode4...), raw...)
	n := s.newNALUnit(raw, -1, len(raw), data)
	s.dispatch(n)
}

func (s *Stream) dispatch(n *NALUnit) {
	switch {
	case n.NalUnitType == NALTypeVPS:
		vps, err := ParseVPS(n.RawData)
		if err != nil {
			s.warnf("vps parse failed: %v", err)
		}
		if vps != nil {
			s.VPS = append(s.VPS, vps)
			s.VPSByID[vps.VideoParameterSetID] = vps
			n.Parsed = vps
		}
	case n.NalUnitType == NALTypeSPS:
		sps, err := ParseSPS(n.RawData)
		if err != nil {
			s.warnf("sps parse failed: %v", err)
		}
		if sps != nil {
			s.SPS = append(s.SPS, sps)
			s.SPSByID[sps.SeqParameterSetID] = sps
			n.Parsed = sps
		}
	case n.NalUnitType == NALTypePPS:
		pps, err := ParsePPS(n.RawData)
		if err != nil {
			s.warnf("pps parse failed: %v", err)
		}
		if pps != nil {
			s.PPS = append(s.PPS, pps)
			s.PPSByID[pps.PicParameterSetID] = pps
			n.Parsed = pps
		}
	case n.NalUnitType == NALTypeSEIPrefix:
		messages := ParseSEI(n.RawData, s.latestSPS())
		s.SEIPrefix = append(s.SEIPrefix, messages...)
		n.Parsed = messages
	case n.NalUnitType == NALTypeSEISuffix:
		messages := ParseSEI(n.RawData, s.latestSPS())
		s.SEISuffix = append(s.SEISuffix, messages...)
		n.Parsed = messages
	case n.NalUnitType == NALTypeAUD:
		aud := &AUD{}
		r := bits.NewReader(n.RawData)
		if v, err := r.ReadBits(3); err == nil {
			aud.PicType = uint(v)
		}
		s.AUD = append(s.AUD, aud)
		n.Parsed = aud
	case n.NalUnitType == NALTypeFillerData:
		s.FillerData = append(s.FillerData, n.RawData)
	case IsVCL(n.NalUnitType):
		seg := s.parseSliceSegment(n)
		if seg != nil {
			s.SliceSegments = append(s.SliceSegments, seg)
			n.Parsed = seg
		}
	}
}

func (s *Stream) latestSPS() *SPS {
	if len(s.SPS) == 0 {
		return nil
	}
	return s.SPS[len(s.SPS)-1]
}

func (s *Stream) parseSliceSegment(n *NALUnit) *SliceSegment {
	// The pps id follows first_slice_segment_in_pic_flag and, for IRAP
	// types, no_output_of_prior_pics_flag; peek it to resolve the sets.
	peek := bits.NewReader(n.RawData)
	if _, err := peek.ReadBit(); err != nil {
		s.warnf("slice segment truncated at first flag")
		return nil
	}
	if IsIRAP(n.NalUnitType) {
		if _, err := peek.ReadBit(); err != nil {
			s.warnf("slice segment truncated at no_output flag")
			return nil
		}
	}
	ppsID, err := peek.ReadUE()
	if err != nil {
		s.warnf("slice segment truncated at pps id")
		return nil
	}

	pps, ok := s.PPSByID[ppsID]
	if !ok {
		s.warnf("slice references missing pps %d", ppsID)
		return &SliceSegment{NalUnitType: n.NalUnitType, Data: n.RawData}
	}
	sps, ok := s.SPSByID[pps.SeqParameterSetID]
	if !ok {
		s.warnf("slice references missing sps %d", pps.SeqParameterSetID)
		return &SliceSegment{NalUnitType: n.NalUnitType, Data: n.RawData}
	}

	r := bits.NewReader(n.RawData)
	header, err := ParseSliceSegmentHeader(r, n.NalUnitType, sps, pps)
	if err != nil {
		s.warnf("slice segment header parse failed: %v", err)
	}
	return &SliceSegment{NalUnitType: n.NalUnitType, Header: header, Data: n.RawData}
}
