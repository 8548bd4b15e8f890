package analyze

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/KimVegetable/miat/media/codec/h264parser"
	"github.com/KimVegetable/miat/media/codec/h265parser"
	"github.com/KimVegetable/miat/media/container/mp4"
	"github.com/KimVegetable/miat/media/demux"
	"github.com/KimVegetable/miat/media/record"
)

// Apple analyzes edits made through Apple Photos lineage tooling:
// non-destructive trims via edit lists, rotations and flips via the
// track matrix, crops via track dimensions, plus metadata and geotags.
type Apple struct {
	demuxer   demux.Demuxer
	outputDir string
}

// NewApple returns the analyzer. The demuxer may be nil; frame
// extraction is then skipped but every verdict is still produced.
func NewApple(d demux.Demuxer, outputDir string) *Apple {
	return &Apple{demuxer: d, outputDir: outputDir}
}

// Analyze runs the full engine over one record, using the first video
// trak or, failing that, the first trak. Records without a container
// or without any trak return an empty report.
func (a *Apple) Analyze(ctx context.Context, rec *record.Record) *Report {
	report := &Report{FilePath: rec.FilePath}
	if rec.Container == nil {
		return report
	}
	trak, ok := rec.Container.FirstVideoTrak()
	if !ok {
		traks := rec.Container.Traks()
		if len(traks) == 0 {
			return report
		}
		trak = traks[0]
	}

	a.analyzeTrim(ctx, rec, trak, report)
	a.analyzeOrientation(trak, report)
	a.analyzeCropAndLocation(rec, trak, report)
	return report
}

// analyzeTrim implements the edit-list trim decision: the last
// non-empty media_time, adjusted by the first ctts offset, either
// classifies off codec picture-order state (no leading trim) or marks
// the file edited and locates the unreferenced lead-in frames.
func (a *Apple) analyzeTrim(ctx context.Context, rec *record.Record, trak *mp4.Box, report *Report) {
	elst, ok := mp4.TrakElst(trak)
	if !ok {
		return
	}

	var mediaTime int64
	for _, entry := range elst.Entries {
		if entry.Empty() {
			continue
		}
		mediaTime = entry.MediaTime()
	}

	if ctts, ok := mp4.TrakCtts(trak); ok && len(ctts.Entries) > 0 {
		mediaTime -= ctts.Entries[0].SampleOffset
	}

	if mediaTime == 0 {
		report.Trim = a.classifyNoTrim(rec)
		a.appendTrimFinding(report)
		return
	}

	result := &TrimResult{Verdict: VerdictEdited}
	report.Trim = result

	if stts, ok := mp4.TrakStts(trak); ok && len(stts.Entries) > 0 {
		if mediaTime > int64(stts.Entries[0].SampleDelta) {
			deltas := stts.ExpandDeltas()
			startOffset := scanPrefixSum(deltas, mediaTime)
			if startOffset <= 0 {
				// A zero offset means the edit point falls inside the
				// second sample (or the scan never passed it); report
				// edited with no extractable frames.
				a.appendTrimFinding(report)
				return
			}
			result.HasUnrefFrames = true
			result.UnrefRange = [2]int{0, startOffset}
			a.extractUnreferencedFrames(ctx, rec, result)
		}
		a.appendTrimFinding(report)
		return
	}

	// No stts: fragmented files carry per-sample composition offsets in
	// the first traf's trun.
	if samples := firstFragmentSamples(rec.Container); len(samples) > 0 {
		startOffset := scanFragmentOffsets(samples, mediaTime)
		if startOffset > 0 {
			result.HasUnrefFrames = true
			result.UnrefRange = [2]int{0, startOffset}
			a.extractUnreferencedFrames(ctx, rec, result)
		}
	}
	a.appendTrimFinding(report)
}

// scanPrefixSum accumulates deltas until the running sum passes
// target and returns the index before the sample that crossed it; the
// samples up to that index lie entirely inside the trimmed lead-in.
func scanPrefixSum(deltas []uint32, target int64) int {
	var startTime int64
	for i, delta := range deltas {
		startTime += int64(delta)
		if startTime > target {
			return i - 1
		}
	}
	return 0
}

func scanFragmentOffsets(samples []mp4.TrunSample, target int64) int {
	var startTime int64
	for i, s := range samples {
		startTime += s.CompositionTimeOffset
		if startTime > target {
			return i - 1
		}
	}
	return 0
}

// firstFragmentSamples returns the samples of the first moof's traf
// trun, or nil.
func firstFragmentSamples(tree *mp4.Tree) []mp4.TrunSample {
	moofs := tree.ChildAll("moof")
	if len(moofs) == 0 {
		return nil
	}
	trunBox, ok := moofs[0].Path("traf", "trun")
	if !ok {
		return nil
	}
	trun, ok := trunBox.Body.(*mp4.Trun)
	if !ok {
		return nil
	}
	return trun.Samples
}

// classifyNoTrim classifies a file without leading trim using codec
// picture-order state of the first slice.
func (a *Apple) classifyNoTrim(rec *record.Record) *TrimResult {
	video := rec.FirstVideo()
	if video == nil {
		return &TrimResult{Verdict: VerdictUnknown}
	}
	switch video.Codec {
	case record.CodecH264:
		return classifyH264NoTrim(video.H264)
	case record.CodecH265:
		return classifyH265NoTrim(video.H265)
	}
	return &TrimResult{Verdict: VerdictUnknown}
}

func classifyH264NoTrim(stream *h264parser.Stream) *TrimResult {
	if stream == nil || len(stream.SPS) == 0 || len(stream.SliceSegments) == 0 {
		return &TrimResult{Verdict: VerdictUnknown}
	}
	sps := stream.SPS[0]
	header := stream.SliceSegments[0].Header
	if header == nil {
		return &TrimResult{Verdict: VerdictUnknown}
	}
	switch sps.PicOrderCntType {
	case 0:
		if header.PicOrderCntLsb == 0 {
			return &TrimResult{Verdict: VerdictUnknown}
		}
		return &TrimResult{Verdict: VerdictEdited}
	case 1:
		if ct := header.CodingType(); ct == h264parser.SliceTypeI || ct == h264parser.SliceTypeSI {
			return &TrimResult{Verdict: VerdictUnknown}
		}
		return &TrimResult{Verdict: VerdictEdited}
	case 2:
		if header.FrameNum == 0 {
			return &TrimResult{Verdict: VerdictUnknown}
		}
		return &TrimResult{Verdict: VerdictEdited}
	}
	return &TrimResult{Verdict: VerdictUnknown}
}

func classifyH265NoTrim(stream *h265parser.Stream) *TrimResult {
	if stream == nil || len(stream.SliceSegments) == 0 {
		return &TrimResult{Verdict: VerdictUnknown}
	}
	header := stream.SliceSegments[0].Header
	if header == nil {
		return &TrimResult{Verdict: VerdictUnknown}
	}
	if header.PicOrderCntLsb == 0 {
		return &TrimResult{Verdict: VerdictUnknown}
	}
	return &TrimResult{Verdict: VerdictEdited}
}

// extractUnreferencedFrames renders the unreferenced lead-in range as
// PNGs. A demuxer failure skips extraction only; the verdict stands.
func (a *Apple) extractUnreferencedFrames(ctx context.Context, rec *record.Record, result *TrimResult) {
	if a.demuxer == nil {
		result.ExtractionSkipped = true
		return
	}
	base := filepath.Base(rec.FilePath)
	outPattern := filepath.Join(a.outputDir, "unreferenced_frame", base, "extracted_frame_%04d.png")
	err := a.demuxer.ExtractFrames(ctx, rec.FilePath, result.UnrefRange[0], result.UnrefRange[1], outPattern)
	if err != nil {
		log.Warn().Err(err).Str("file", rec.FilePath).Msg("unreferenced frame extraction failed")
		result.ExtractionSkipped = true
		result.ExtractionError = err.Error()
	}
}

func (a *Apple) appendTrimFinding(report *Report) {
	if report.Trim == nil {
		return
	}
	severity := SeverityInfo
	comment := "no unreferenced frames"
	if report.Trim.Verdict == VerdictEdited {
		severity = SeverityWarn
	}
	if report.Trim.HasUnrefFrames {
		severity = SeverityCritical
		comment = fmt.Sprintf("unreferenced frames in range [%d, %d]",
			report.Trim.UnrefRange[0], report.Trim.UnrefRange[1])
	}
	report.Findings = append(report.Findings, Finding{
		Item:     "edit.trim",
		Value:    string(report.Trim.Verdict),
		Severity: severity,
		Comment:  comment,
	})
}

// analyzeOrientation emits the (a, b, c, d) entries of the track
// matrix, which encode rotation and flips.
func (a *Apple) analyzeOrientation(trak *mp4.Box, report *Report) {
	tkhd, ok := mp4.TrakTkhd(trak)
	if !ok {
		return
	}
	ma, mb, mc, md := tkhd.RotationMatrix()
	report.Findings = append(report.Findings, Finding{
		Item:     "orientation.matrix",
		Value:    []int32{ma, mb, mc, md},
		Severity: SeverityInfo,
		Comment:  fmt.Sprintf("a=%d b=%d c=%d d=%d", ma, mb, mc, md),
	})
}

// analyzeCropAndLocation emits track dimensions, movie metadata pairs
// and the geotag.
func (a *Apple) analyzeCropAndLocation(rec *record.Record, trak *mp4.Box, report *Report) {
	if tkhd, ok := mp4.TrakTkhd(trak); ok {
		report.Findings = append(report.Findings, Finding{
			Item:     "crop.dimensions",
			Value:    []float64{tkhd.Width(), tkhd.Height()},
			Severity: SeverityInfo,
			Comment:  fmt.Sprintf("width=%.0f height=%.0f", tkhd.Width(), tkhd.Height()),
		})
	}

	moov, ok := rec.Container.Child("moov")
	if !ok {
		return
	}
	if meta, ok := moov.Child("meta"); ok {
		for _, kv := range mp4.MetaKeyValues(meta) {
			report.Findings = append(report.Findings, Finding{
				Item:     "metadata." + kv.Key,
				Value:    kv.Value,
				Severity: SeverityInfo,
				Comment:  "moov.meta key/value",
			})
		}
	}
	if udta, ok := moov.Child("udta"); ok {
		if meta, ok := udta.Child("meta"); ok {
			for _, kv := range mp4.MetaKeyValues(meta) {
				report.Findings = append(report.Findings, Finding{
					Item:     "metadata." + kv.Key,
					Value:    kv.Value,
					Severity: SeverityInfo,
					Comment:  "moov.udta.meta key/value",
				})
			}
		}
		if xyzBox, ok := udta.Child("\xa9xyz"); ok {
			if xyz, ok := xyzBox.Body.(*mp4.Xyz); ok {
				report.Findings = append(report.Findings, Finding{
					Item:     "location.geotag",
					Value:    xyz.Value,
					Severity: SeverityWarn,
					Comment:  "ISO 6709 coordinate from udta",
				})
			}
		}
	}
}
