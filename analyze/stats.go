package analyze

import (
	"fmt"

	"github.com/KimVegetable/miat/media/codec/h264parser"
	"github.com/KimVegetable/miat/media/codec/h265parser"
	"github.com/KimVegetable/miat/media/record"
)

// StreamStats summarizes the coded structure of one video stream.
// GOP lengths are distances between successive random access points in
// decode order; irregular GOPs are themselves an editing signal.
type StreamStats struct {
	Codec          string `json:"codec"`
	NALCount       int    `json:"nal_count"`
	SliceCount     int    `json:"slice_count"`
	KeyframeCount  int    `json:"keyframe_count"`
	SEICount       int    `json:"sei_count"`
	GOPLengths     []int  `json:"gop_lengths,omitempty"`
	ISlices        int    `json:"i_slices"`
	PSlices        int    `json:"p_slices"`
	BSlices        int    `json:"b_slices"`
	ParameterSets  int    `json:"parameter_sets"`
	WarningCount   int    `json:"warning_count"`
}

// CollectStreamStats computes structural statistics for every video
// stream of a record.
func CollectStreamStats(rec *record.Record) []*StreamStats {
	var out []*StreamStats
	for _, vs := range rec.VideoStreams {
		switch vs.Codec {
		case record.CodecH264:
			if vs.H264 != nil {
				out = append(out, h264Stats(vs.H264))
			}
		case record.CodecH265:
			if vs.H265 != nil {
				out = append(out, h265Stats(vs.H265))
			}
		}
	}
	return out
}

func h264Stats(stream *h264parser.Stream) *StreamStats {
	stats := &StreamStats{
		Codec:         record.CodecH264,
		NALCount:      len(stream.NALUnits),
		SliceCount:    len(stream.SliceSegments),
		SEICount:      len(stream.SEI),
		ParameterSets: len(stream.SPS) + len(stream.PPS),
		WarningCount:  len(stream.Warnings),
	}
	sliceIdx := 0
	lastKey := -1
	for _, n := range stream.NALUnits {
		switch n.NalUnitType {
		case h264parser.NALTypeIDR:
			stats.KeyframeCount++
			if lastKey >= 0 {
				stats.GOPLengths = append(stats.GOPLengths, sliceIdx-lastKey)
			}
			lastKey = sliceIdx
			sliceIdx++
		case h264parser.NALTypeSlice:
			sliceIdx++
		}
	}
	for _, seg := range stream.SliceSegments {
		if seg.Header == nil {
			continue
		}
		switch seg.Header.CodingType() {
		case h264parser.SliceTypeI, h264parser.SliceTypeSI:
			stats.ISlices++
		case h264parser.SliceTypeP, h264parser.SliceTypeSP:
			stats.PSlices++
		case h264parser.SliceTypeB:
			stats.BSlices++
		}
	}
	return stats
}

func h265Stats(stream *h265parser.Stream) *StreamStats {
	stats := &StreamStats{
		Codec:         record.CodecH265,
		NALCount:      len(stream.NALUnits),
		SliceCount:    len(stream.SliceSegments),
		SEICount:      len(stream.SEIPrefix) + len(stream.SEISuffix),
		ParameterSets: len(stream.VPS) + len(stream.SPS) + len(stream.PPS),
		WarningCount:  len(stream.Warnings),
	}
	sliceIdx := 0
	lastKey := -1
	for _, n := range stream.NALUnits {
		if !h265parser.IsVCL(n.NalUnitType) {
			continue
		}
		if h265parser.IsIRAP(n.NalUnitType) {
			stats.KeyframeCount++
			if lastKey >= 0 {
				stats.GOPLengths = append(stats.GOPLengths, sliceIdx-lastKey)
			}
			lastKey = sliceIdx
		}
		sliceIdx++
	}
	for _, seg := range stream.SliceSegments {
		if seg.Header == nil {
			continue
		}
		switch seg.Header.SliceType {
		case h265parser.SliceTypeI:
			stats.ISlices++
		case h265parser.SliceTypeP:
			stats.PSlices++
		case h265parser.SliceTypeB:
			stats.BSlices++
		}
	}
	return stats
}

// AppendStatsFindings converts stream statistics into report findings.
func AppendStatsFindings(report *Report, statsList []*StreamStats) {
	for i, stats := range statsList {
		report.Findings = append(report.Findings, Finding{
			Item:     fmt.Sprintf("stream_%d.structure", i),
			Value:    stats,
			Severity: SeverityInfo,
			Comment: fmt.Sprintf("%s: %d NALs, %d slices (%d I / %d P / %d B), %d keyframes",
				stats.Codec, stats.NALCount, stats.SliceCount,
				stats.ISlices, stats.PSlices, stats.BSlices, stats.KeyframeCount),
		})
	}
}
