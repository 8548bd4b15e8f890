// Package demux defines the external demuxer collaborator used to
// separate elementary streams from containers and to extract frame
// ranges. The concrete implementation shells out to ffmpeg; tests
// substitute the generated mock.
package demux

import (
	"context"
)

//go:generate mockgen -source=demux.go -destination=mock_demux.go -package=demux

// Demuxer extracts media from container files. Implementations must be
// safe for sequential reuse across files; no state is kept per call.
type Demuxer interface {
	// Demux writes the video elementary stream of inputPath as a raw
	// Annex B byte stream and returns its bytes. codec is "h264" or
	// "h265".
	Demux(ctx context.Context, inputPath, codec string) ([]byte, error)

	// ExtractFrames renders frames lo..hi (inclusive, by decode index)
	// of inputPath as PNGs following outPattern (printf-style with one
	// %04d slot).
	ExtractFrames(ctx context.Context, inputPath string, lo, hi int, outPattern string) error
}
