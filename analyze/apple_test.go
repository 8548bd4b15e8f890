package analyze

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/KimVegetable/miat/media/codec/h264parser"
	"github.com/KimVegetable/miat/media/codec/h265parser"
	"github.com/KimVegetable/miat/media/container/mp4"
	"github.com/KimVegetable/miat/media/demux"
	"github.com/KimVegetable/miat/media/record"
)

func leaf(typ string, body any) *mp4.Box {
	return &mp4.Box{Type: typ, Body: body}
}

func container(typ string, children ...*mp4.Box) *mp4.Box {
	return &mp4.Box{Type: typ, Children: children}
}

// videoTrak builds a trak with the given edit list, time tables and a
// vide handler.
func videoTrak(elst *mp4.Elst, stts *mp4.Stts, ctts *mp4.Ctts, tkhd *mp4.Tkhd) *mp4.Box {
	stblChildren := []*mp4.Box{}
	if stts != nil {
		stblChildren = append(stblChildren, leaf("stts", stts))
	}
	if ctts != nil {
		stblChildren = append(stblChildren, leaf("ctts", ctts))
	}
	trakChildren := []*mp4.Box{}
	if tkhd != nil {
		trakChildren = append(trakChildren, leaf("tkhd", tkhd))
	}
	if elst != nil {
		trakChildren = append(trakChildren, container("edts", leaf("elst", elst)))
	}
	trakChildren = append(trakChildren,
		container("mdia",
			leaf("hdlr", &mp4.Hdlr{HandlerType: mp4.HandlerVideo}),
			container("minf", container("stbl", stblChildren...)),
		),
	)
	return container("trak", trakChildren...)
}

func treeWith(boxes ...*mp4.Box) *mp4.Tree {
	return &mp4.Tree{Boxes: boxes}
}

func elstEntries(entries ...mp4.ElstEntry) *mp4.Elst {
	return &mp4.Elst{Entries: entries}
}

func emptyEdit(duration uint64) mp4.ElstEntry {
	return mp4.ElstEntry{SegmentDuration: duration, MediaTimeRaw: 0xFFFFFFFF}
}

func edit(duration uint64, mediaTime uint32) mp4.ElstEntry {
	return mp4.ElstEntry{SegmentDuration: duration, MediaTimeRaw: uint64(mediaTime)}
}

// h264RecordPocZero builds a record whose first H.264 slice has POC
// type 0 and the given pic_order_cnt_lsb.
func h264RecordPocZero(tree *mp4.Tree, pocLsb uint) *record.Record {
	stream := &h264parser.Stream{
		SPS: []*h264parser.SPS{{
			PicOrderCntType: 0,
			Poc0:            &h264parser.PocType0{},
		}},
		SliceSegments: []*h264parser.SliceSegment{{
			Header: &h264parser.SliceHeader{
				SliceType:             7,
				PicOrderCntLsb:        pocLsb,
				PicOrderCntLsbPresent: true,
			},
		}},
	}
	return &record.Record{
		FilePath:     "/media/sample.mp4",
		Container:    tree,
		VideoStreams: []*record.VideoStream{{Codec: record.CodecH264, H264: stream}},
	}
}

func TestTrimNoTrimUnknown(t *testing.T) {
	t.Parallel()
	// Scenario: single edit with media_time 0, no ctts, first slice POC
	// lsb 0 -> unknown.
	tree := treeWith(container("moov",
		videoTrak(elstEntries(edit(9000, 0)), nil, nil, nil),
	))
	rec := h264RecordPocZero(tree, 0)

	engine := NewApple(nil, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.NotNil(t, report.Trim)
	require.Equal(t, VerdictUnknown, report.Trim.Verdict)
	require.False(t, report.Trim.HasUnrefFrames)
}

func TestTrimNoTrimEditedByPoc(t *testing.T) {
	t.Parallel()
	tree := treeWith(container("moov",
		videoTrak(elstEntries(edit(9000, 0)), nil, nil, nil),
	))
	rec := h264RecordPocZero(tree, 4)

	engine := NewApple(nil, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.Equal(t, VerdictEdited, report.Trim.Verdict)
	require.False(t, report.Trim.HasUnrefFrames)
}

func TestTrimAppleEditListExtractsRange(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// elst: empty edit then media_time 1200; stts 30 x delta 100.
	tree := treeWith(container("moov",
		videoTrak(
			elstEntries(emptyEdit(1000), edit(9000, 1200)),
			&mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 30, SampleDelta: 100}}},
			nil, nil,
		),
	))
	rec := h264RecordPocZero(tree, 0)

	mock := demux.NewMockDemuxer(ctrl)
	mock.EXPECT().
		ExtractFrames(gomock.Any(), rec.FilePath, 0, 11, gomock.Any()).
		Return(nil)

	engine := NewApple(mock, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.Equal(t, VerdictEdited, report.Trim.Verdict)
	require.True(t, report.Trim.HasUnrefFrames)
	require.Equal(t, [2]int{0, 11}, report.Trim.UnrefRange)
	require.False(t, report.Trim.ExtractionSkipped)
}

func TestTrimCttsLeadInAdjustment(t *testing.T) {
	t.Parallel()
	// media_time 400 minus first ctts offset 400 -> treated as no trim.
	tree := treeWith(container("moov",
		videoTrak(
			elstEntries(edit(9000, 400)),
			&mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 30, SampleDelta: 100}}},
			&mp4.Ctts{Entries: []mp4.CttsEntry{{SampleCount: 1, SampleOffset: 400}}},
			nil,
		),
	))
	rec := h264RecordPocZero(tree, 0)

	engine := NewApple(nil, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.Equal(t, VerdictUnknown, report.Trim.Verdict)
}

func TestTrimFragmentedLeadIn(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No stts; first moof's trun carries composition offsets of 200;
	// media_time 500 after ctts subtraction -> range [0, 1].
	tree := treeWith(
		container("moov",
			videoTrak(elstEntries(edit(9000, 700)), nil,
				&mp4.Ctts{Entries: []mp4.CttsEntry{{SampleCount: 1, SampleOffset: 200}}},
				nil),
		),
		container("moof",
			container("traf",
				leaf("trun", &mp4.Trun{
					SampleCount: 4,
					Samples: []mp4.TrunSample{
						{CompositionTimeOffset: 200},
						{CompositionTimeOffset: 200},
						{CompositionTimeOffset: 200},
						{CompositionTimeOffset: 200},
					},
				}),
			),
		),
	)
	rec := h264RecordPocZero(tree, 0)

	mock := demux.NewMockDemuxer(ctrl)
	mock.EXPECT().
		ExtractFrames(gomock.Any(), rec.FilePath, 0, 1, gomock.Any()).
		Return(nil)

	engine := NewApple(mock, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.Equal(t, VerdictEdited, report.Trim.Verdict)
	require.True(t, report.Trim.HasUnrefFrames)
	require.Equal(t, [2]int{0, 1}, report.Trim.UnrefRange)
}

func TestTrimEditInsideFirstSample(t *testing.T) {
	t.Parallel()
	// media_time larger than the first delta but inside the lead-in in
	// a way that yields offset zero: edited, no extractable frames,
	// and no failure.
	tree := treeWith(container("moov",
		videoTrak(
			elstEntries(edit(9000, 150)),
			&mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 30, SampleDelta: 100}}},
			nil, nil,
		),
	))
	rec := h264RecordPocZero(tree, 0)

	engine := NewApple(nil, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.Equal(t, VerdictEdited, report.Trim.Verdict)
	require.False(t, report.Trim.HasUnrefFrames)
}

func TestTrimDemuxerFailureNonFatal(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tree := treeWith(container("moov",
		videoTrak(
			elstEntries(edit(9000, 1200)),
			&mp4.Stts{Entries: []mp4.SttsEntry{{SampleCount: 30, SampleDelta: 100}}},
			nil, nil,
		),
	))
	rec := h264RecordPocZero(tree, 0)

	mock := demux.NewMockDemuxer(ctrl)
	mock.EXPECT().
		ExtractFrames(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(context.DeadlineExceeded)

	engine := NewApple(mock, t.TempDir())
	report := engine.Analyze(context.Background(), rec)
	require.Equal(t, VerdictEdited, report.Trim.Verdict)
	require.True(t, report.Trim.HasUnrefFrames)
	require.True(t, report.Trim.ExtractionSkipped)
}

func TestClassifyH264PocTypes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		sps     *h264parser.SPS
		header  *h264parser.SliceHeader
		verdict Verdict
	}{
		{
			"poc0 zero lsb",
			&h264parser.SPS{PicOrderCntType: 0, Poc0: &h264parser.PocType0{}},
			&h264parser.SliceHeader{PicOrderCntLsb: 0},
			VerdictUnknown,
		},
		{
			"poc0 nonzero lsb",
			&h264parser.SPS{PicOrderCntType: 0, Poc0: &h264parser.PocType0{}},
			&h264parser.SliceHeader{PicOrderCntLsb: 3},
			VerdictEdited,
		},
		{
			"poc1 I slice",
			&h264parser.SPS{PicOrderCntType: 1, Poc1: &h264parser.PocType1{}},
			&h264parser.SliceHeader{SliceType: 2},
			VerdictUnknown,
		},
		{
			"poc2 frame_num zero",
			&h264parser.SPS{PicOrderCntType: 2},
			&h264parser.SliceHeader{FrameNum: 0},
			VerdictUnknown,
		},
		{
			"poc2 frame_num nonzero",
			&h264parser.SPS{PicOrderCntType: 2},
			&h264parser.SliceHeader{FrameNum: 2},
			VerdictEdited,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stream := &h264parser.Stream{
				SPS:           []*h264parser.SPS{tc.sps},
				SliceSegments: []*h264parser.SliceSegment{{Header: tc.header}},
			}
			result := classifyH264NoTrim(stream)
			require.Equal(t, tc.verdict, result.Verdict)
		})
	}
}

func TestClassifyH265(t *testing.T) {
	t.Parallel()
	zero := &h265parser.Stream{
		SliceSegments: []*h265parser.SliceSegment{{
			Header: &h265parser.SliceSegmentHeader{PicOrderCntLsb: 0},
		}},
	}
	require.Equal(t, VerdictUnknown, classifyH265NoTrim(zero).Verdict)

	nonzero := &h265parser.Stream{
		SliceSegments: []*h265parser.SliceSegment{{
			Header: &h265parser.SliceSegmentHeader{PicOrderCntLsb: 7},
		}},
	}
	require.Equal(t, VerdictEdited, classifyH265NoTrim(nonzero).Verdict)
}

func TestOrientationAndLocationFindings(t *testing.T) {
	t.Parallel()
	tkhd := &mp4.Tkhd{
		Matrix: [9]uint32{
			0, 0x00010000, 0,
			0xFFFF0000, 0, 0,
			0, 0, 0x40000000,
		},
		WidthFixed:  1920 << 16,
		HeightFixed: 1080 << 16,
	}
	trak := videoTrak(nil, nil, nil, tkhd)
	udta := container("udta",
		leaf("\xa9xyz", &mp4.Xyz{Value: "+37.3349-122.0090/"}),
	)
	tree := treeWith(container("moov", trak, udta))
	rec := &record.Record{FilePath: "/media/geo.mov", Container: tree}

	engine := NewApple(nil, t.TempDir())
	report := engine.Analyze(context.Background(), rec)

	var items []string
	for _, f := range report.Findings {
		items = append(items, f.Item)
	}
	require.Contains(t, items, "orientation.matrix")
	require.Contains(t, items, "crop.dimensions")
	require.Contains(t, items, "location.geotag")
}
