// Package binder joins the container tree to the codec parsers: it
// selects the right parser per track, seeds it with out-of-band
// parameter sets from avcC/hvcC (or a HEIF hvcC property), and obtains
// the elementary stream through the demuxer collaborator.
package binder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/KimVegetable/miat/common/errs"
	"github.com/KimVegetable/miat/media/codec/h264parser"
	"github.com/KimVegetable/miat/media/codec/h265parser"
	"github.com/KimVegetable/miat/media/container/mp4"
	"github.com/KimVegetable/miat/media/demux"
	"github.com/KimVegetable/miat/media/nal"
	"github.com/KimVegetable/miat/media/record"
)

// containerExtensions route through the box walker; rawExtensions are
// bare elementary streams.
var containerExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".heic": true, ".m4a": true,
	".aac": true, ".3gp": true, ".mkv": true, ".avi": true,
}

var rawExtensions = map[string]bool{
	".h264": true,
	".h265": true,
}

// Binder parses one file into a Record. The demuxer is injected so
// tests can substitute a double.
type Binder struct {
	demuxer demux.Demuxer
}

// New returns a Binder using the given demuxer collaborator.
func New(d demux.Demuxer) *Binder {
	return &Binder{demuxer: d}
}

// Parse reads and parses filePath into a Record. I/O errors surface to
// the caller; malformed media degrades to a partial record.
func (b *Binder) Parse(ctx context.Context, filePath string) (*record.Record, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errs.Wrapf(err, "read %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	rec := &record.Record{FilePath: filePath}

	switch {
	case rawExtensions[ext]:
		b.bindRaw(rec, ext, data)
	case containerExtensions[ext]:
		rec.Container = mp4.Parse(data)
		b.bindContainer(ctx, rec, data)
	default:
		return nil, errs.ErrUnsupportedFormat
	}
	return rec, nil
}

// bindRaw parses a bare .h264/.h265 elementary stream; every parameter
// set arrives in-band.
func (b *Binder) bindRaw(rec *record.Record, ext string, data []byte) {
	switch ext {
	case ".h264":
		rec.RawCodec = "h264"
		rec.VideoStreams = append(rec.VideoStreams, &record.VideoStream{
			Codec: record.CodecH264,
			H264:  h264parser.ParseStream(data, h264parser.Options{}),
		})
	case ".h265":
		rec.RawCodec = "h265"
		rec.VideoStreams = append(rec.VideoStreams, &record.VideoStream{
			Codec: record.CodecH265,
			H265:  h265parser.ParseStream(data, h265parser.Options{}),
		})
	}
}

func (b *Binder) bindContainer(ctx context.Context, rec *record.Record, data []byte) {
	if _, ok := rec.Container.Child("moov"); ok {
		b.bindMoov(ctx, rec)
		return
	}
	if meta, ok := rec.Container.Child("meta"); ok {
		b.bindHeif(rec, meta, data)
		return
	}
	rec.Warnings = append(rec.Warnings, "no moov or meta box; container kept raw")
}

// bindMoov binds every trak of a movie box: video traks run through
// the demuxer and a codec parser, audio traks keep their codec
// description.
func (b *Binder) bindMoov(ctx context.Context, rec *record.Record) {
	for _, trak := range rec.Container.Traks() {
		switch mp4.TrakHandler(trak) {
		case mp4.HandlerVideo:
			b.bindVideoTrak(ctx, rec, trak)
		case mp4.HandlerSound:
			b.bindAudioTrak(rec, trak)
		}
	}
}

func (b *Binder) bindVideoTrak(ctx context.Context, rec *record.Record, trak *mp4.Box) {
	stsd, ok := mp4.TrakStsd(trak)
	if !ok {
		rec.Warnings = append(rec.Warnings, "video trak without stsd")
		return
	}
	for _, entry := range stsd.Entries {
		if !entry.IsVideo() {
			continue
		}
		switch entry.Type {
		case "avc1", "avc3":
			stream, err := b.demuxStream(ctx, rec.FilePath, "h264")
			if err != nil {
				rec.Warnings = append(rec.Warnings, fmt.Sprintf("demux h264: %v", err))
				continue
			}
			opts := h264parser.Options{}
			if entry.AvcC != nil {
				opts.SPS = entry.AvcC.SPS
				opts.PPS = entry.AvcC.PPS
			}
			rec.VideoStreams = append(rec.VideoStreams, &record.VideoStream{
				Codec: record.CodecH264,
				H264:  h264parser.ParseStream(stream, opts),
			})
		case "hvc1", "hev1":
			stream, err := b.demuxStream(ctx, rec.FilePath, "h265")
			if err != nil {
				rec.Warnings = append(rec.Warnings, fmt.Sprintf("demux h265: %v", err))
				continue
			}
			opts := h265parser.Options{}
			if entry.HvcC != nil {
				opts.VPS = entry.HvcC.VPS
				opts.SPS = entry.HvcC.SPS
				opts.PPS = entry.HvcC.PPS
			}
			rec.VideoStreams = append(rec.VideoStreams, &record.VideoStream{
				Codec: record.CodecH265,
				H265:  h265parser.ParseStream(stream, opts),
			})
		}
	}
	if !rec.Container.SampleTableConsistent(trak) {
		rec.Warnings = append(rec.Warnings, "sample table inconsistent with mdat payload")
	}
}

func (b *Binder) bindAudioTrak(rec *record.Record, trak *mp4.Box) {
	stsd, ok := mp4.TrakStsd(trak)
	if !ok {
		return
	}
	for _, entry := range stsd.Entries {
		switch entry.Type {
		case "mp4a":
			rec.AudioStreams = append(rec.AudioStreams, &record.AudioStream{
				Codec:     record.CodecAAC,
				CodecData: entry.Esds,
			})
		case "ac-3":
			rec.AudioStreams = append(rec.AudioStreams, &record.AudioStream{
				Codec:     record.CodecAC3,
				CodecData: entry.Dac3,
			})
		}
	}
}

// bindHeif reconstructs the HEVC elementary stream of a HEIF still:
// parameter sets come from the first hvcC property, and each iloc
// extent contributes one start-coded NAL unit (the item payload keeps
// a 4-byte length prefix that the start code replaces).
func (b *Binder) bindHeif(rec *record.Record, meta *mp4.Box, data []byte) {
	hvcc := findHeifHvcC(meta)
	if hvcc == nil {
		rec.Warnings = append(rec.Warnings, "heif meta without hvcC property")
		return
	}

	var stream []byte
	ilocBox, ok := meta.Child("iloc")
	if ok {
		iloc, _ := ilocBox.Body.(*mp4.Iloc)
		if iloc != nil {
			for _, item := range iloc.Items {
				for _, ext := range item.Extents {
					offset := int64(item.BaseOffset + ext.Offset)
					length := int64(ext.Length)
					if offset+4 > int64(len(data)) || length < 4 {
						continue
					}
					end := offset + length
					if end > int64(len(data)) {
						end = int64(len(data))
					}
					stream = append(stream, nal.StartCode4...)
					stream = append(stream, data[offset+4:end]...)
				}
			}
		}
	}

	opts := h265parser.Options{
		VPS: hvcc.VPS,
		SPS: hvcc.SPS,
		PPS: hvcc.PPS,
	}
	rec.VideoStreams = append(rec.VideoStreams, &record.VideoStream{
		Codec: record.CodecH265,
		H265:  h265parser.ParseStream(stream, opts),
	})
}

// findHeifHvcC locates the first hvcC property under meta.iprp.
func findHeifHvcC(meta *mp4.Box) *mp4.HvcC {
	iprp, ok := meta.Child("iprp")
	if !ok {
		return nil
	}
	ipco, ok := iprp.Child("ipco")
	if !ok {
		// Some writers place properties directly under iprp.
		ipco = iprp
	}
	for _, prop := range ipco.Children {
		if prop.Type == "hvcC" {
			if hvcc, ok := prop.Body.(*mp4.HvcC); ok {
				return hvcc
			}
		}
	}
	return nil
}

func (b *Binder) demuxStream(ctx context.Context, filePath, codec string) ([]byte, error) {
	if b.demuxer == nil {
		return nil, errs.ErrDemuxerFailed
	}
	log.Debug().Str("file", filePath).Str("codec", codec).Msg("demuxing elementary stream")
	return b.demuxer.Demux(ctx, filePath, codec)
}
