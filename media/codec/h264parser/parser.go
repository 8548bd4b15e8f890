// Package h264parser reconstructs the syntax of an H.264 (ITU-T H.264)
// Annex B elementary stream down to the slice-header level. Slice data
// (CAVLC/CABAC residuals) is kept opaque; only the header fields needed
// for structural and forensic analysis are decoded.
package h264parser

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/KimVegetable/miat/media/nal"
	"github.com/KimVegetable/miat/utils/bits"
)

// H.264 NAL unit type constants as defined in ITU-T H.264 Table 7-1.
const (
	NALTypeSlice       = 1
	NALTypeIDR         = 5
	NALTypeSEI         = 6
	NALTypeSPS         = 7
	NALTypePPS         = 8
	NALTypeAUD         = 9
	NALTypeEndOfSeq    = 10
	NALTypeEndOfStream = 11
	NALTypeFillerData  = 12
	NALTypeSPSExt      = 13
	NALTypeAuxSlice    = 19
)

// NALUnit is one framed H.264 NAL unit. Data keeps the start code;
// RawData is the EPB-stripped payload after the one-byte header. Parsed
// carries the decoded body (type depends on NalUnitType) or nil when the
// unit could not be decoded.
type NALUnit struct {
	ForbiddenZeroBit uint
	NalRefIdc        uint
	NalUnitType      uint
	StartOffset      int
	Length           int
	Data             []byte
	RawData          []byte
	Parsed           any
}

// AUD is an access unit delimiter body.
type AUD struct {
	PrimaryPicType uint
}

// Stream is the parsed record of one H.264 elementary stream. Lists keep
// source order; SPSByID/PPSByID hold the active (most recently seen)
// parameter set per id.
type Stream struct {
	NALUnits      []*NALUnit
	SPS           []*SPS
	PPS           []*PPS
	SEI           []*SEIMessage
	SliceSegments []*SliceSegment
	AUD           []*AUD
	EndOfSeq      int
	EndOfStream   int
	FillerData    [][]byte
	SPSExt        [][]byte
	AuxSlices     []*SliceSegment
	Warnings      []string

	SPSByID map[uint]*SPS
	PPSByID map[uint]*PPS
}

func newStream() *Stream {
	return &Stream{
		SPSByID: make(map[uint]*SPS),
		PPSByID: make(map[uint]*PPS),
	}
}

func (s *Stream) warnf(format string, args ...any) {
	log.Warn().Str("codec", "h264").Msgf(format, args...)
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Options selects out-of-band parameter sets delivered by the container
// (avcC). Each entry is a complete NAL unit without start code.
type Options struct {
	SPS [][]byte
	PPS [][]byte
}

// ParseStream frames data into NAL units and decodes every unit this
// parser understands. Malformed units degrade to warnings; the function
// never fails on media content.
func ParseStream(data []byte, opts Options) *Stream {
	s := newStream()

	for _, raw := range opts.SPS {
		s.addOutOfBandNAL(raw)
	}
	for _, raw := range opts.PPS {
		s.addOutOfBandNAL(raw)
	}

	for _, u := range nal.Split(data) {
		if len(u.Payload) < 1 {
			continue
		}
		header := u.Payload[0]
		n := &NALUnit{
			ForbiddenZeroBit: uint(header>>7) & 0x01,
			NalRefIdc:        uint(header>>5) & 0x03,
			NalUnitType:      uint(header) & 0x1F,
			StartOffset:      u.StartOffset,
			Length:           u.Length,
			Data:             u.Data,
			RawData:          nal.StripEmulationPrevention(u.Payload[1:]),
		}
		s.NALUnits = append(s.NALUnits, n)
		s.dispatch(n)
	}
	return s
}

func (s *Stream) addOutOfBandNAL(raw []byte) {
	if len(raw) < 1 {
		return
	}
	header := raw[0]
	n := &NALUnit{
		ForbiddenZeroBit: uint(header>>7) & 0x01,
		NalRefIdc:        uint(header>>5) & 0x03,
		NalUnitType:      uint(header) & 0x1F,
		StartOffset:      -1,
		Length:           len(raw),
		Data:             append(append([]byte{}, nal.StartCode4...), raw...),
		RawData:          nal.StripEmulationPrevention(raw[1:]),
	}
	s.dispatch(n)
}

func (s *Stream) dispatch(n *NALUnit) {
	switch n.NalUnitType {
	case NALTypeSPS:
		sps, err := ParseSPS(n.RawData)
		if err != nil {
			s.warnf("sps parse failed: %v", err)
		}
		if sps != nil {
			s.SPS = append(s.SPS, sps)
			s.SPSByID[sps.SeqParameterSetID] = sps
			n.Parsed = sps
		}
	case NALTypePPS:
		var refSPS *SPS
		if len(s.SPS) > 0 {
			refSPS = s.SPS[len(s.SPS)-1]
		}
		pps, err := ParsePPS(n.RawData, refSPS)
		if err != nil {
			s.warnf("pps parse failed: %v", err)
		}
		if pps != nil {
			s.PPS = append(s.PPS, pps)
			s.PPSByID[pps.PicParameterSetID] = pps
			n.Parsed = pps
		}
	case NALTypeSEI:
		var sps *SPS
		if len(s.SPS) > 0 {
			sps = s.SPS[len(s.SPS)-1]
		}
		messages := ParseSEI(n.RawData, sps)
		s.SEI = append(s.SEI, messages...)
		n.Parsed = messages
	case NALTypeSlice, NALTypeIDR, NALTypeAuxSlice:
		seg := s.parseSlice(n)
		if seg == nil {
			return
		}
		if n.NalUnitType == NALTypeAuxSlice {
			s.AuxSlices = append(s.AuxSlices, seg)
		} else {
			s.SliceSegments = append(s.SliceSegments, seg)
		}
		n.Parsed = seg
	case NALTypeAUD:
		aud := &AUD{}
		r := bits.NewReader(n.RawData)
		if v, err := r.ReadBits(3); err == nil {
			aud.PrimaryPicType = uint(v)
		}
		s.AUD = append(s.AUD, aud)
		n.Parsed = aud
	case NALTypeEndOfSeq:
		s.EndOfSeq++
	case NALTypeEndOfStream:
		s.EndOfStream++
	case NALTypeFillerData:
		s.FillerData = append(s.FillerData, n.RawData)
	case NALTypeSPSExt:
		s.SPSExt = append(s.SPSExt, n.RawData)
	}
}

// parseSlice decodes the slice header against the active parameter sets.
// A slice whose referenced sets are missing stays unparsed; that is an
// expected condition, not a failure.
func (s *Stream) parseSlice(n *NALUnit) *SliceSegment {
	// The header parse needs first_mb_in_slice and slice_type before the
	// pic_parameter_set_id, so peek the id with a throwaway reader.
	peek := bits.NewReader(n.RawData)
	if _, err := peek.ReadUE(); err != nil {
		s.warnf("slice header truncated at first_mb_in_slice")
		return nil
	}
	if _, err := peek.ReadUE(); err != nil {
		s.warnf("slice header truncated at slice_type")
		return nil
	}
	ppsID, err := peek.ReadUE()
	if err != nil {
		s.warnf("slice header truncated at pic_parameter_set_id")
		return nil
	}

	pps, ok := s.PPSByID[ppsID]
	if !ok {
		s.warnf("slice references missing pps %d", ppsID)
		return &SliceSegment{Data: n.RawData}
	}
	sps, ok := s.SPSByID[pps.SeqParameterSetID]
	if !ok {
		s.warnf("slice references missing sps %d", pps.SeqParameterSetID)
		return &SliceSegment{Data: n.RawData}
	}

	r := bits.NewReader(n.RawData)
	header, err := ParseSliceHeader(r, sps, pps, n.NalUnitType, n.NalRefIdc)
	if err != nil {
		s.warnf("slice header parse failed: %v", err)
	}
	return &SliceSegment{Header: header, Data: n.RawData}
}
