// Package record defines the per-file parsed media record: the joined
// output of the container walker and the codec parsers, consumed by the
// forensic analyzers and the exporters.
package record

import (
	"github.com/KimVegetable/miat/media/codec/h264parser"
	"github.com/KimVegetable/miat/media/codec/h265parser"
	"github.com/KimVegetable/miat/media/container/mp4"
)

// Codec names as reported in records and exports.
const (
	CodecH264 = "H.264"
	CodecH265 = "H.265"
	CodecAAC  = "AAC"
	CodecAC3  = "AC-3"
)

// VideoStream is one bound video elementary stream. Exactly one of
// H264/H265 is set, matching Codec.
type VideoStream struct {
	Codec string              `json:"codec"`
	H264  *h264parser.Stream  `json:"h264,omitempty"`
	H265  *h265parser.Stream  `json:"h265,omitempty"`
}

// AudioStream records a recognized audio track. Audio bitstreams are a
// collaborator concern; only the container-level description is kept.
type AudioStream struct {
	Codec     string `json:"codec"`
	CodecData []byte `json:"codec_data,omitempty"`
}

// Record is the root of the per-file output.
type Record struct {
	FilePath     string         `json:"file_path"`
	Container    *mp4.Tree      `json:"container,omitempty"`
	RawCodec     string         `json:"raw_codec,omitempty"`
	VideoStreams []*VideoStream `json:"video_streams"`
	AudioStreams []*AudioStream `json:"audio_streams"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// FirstVideo returns the first video stream, or nil.
func (r *Record) FirstVideo() *VideoStream {
	if len(r.VideoStreams) == 0 {
		return nil
	}
	return r.VideoStreams[0]
}
