package demux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/KimVegetable/miat/common/errs"
)

// ffmpegBinary is the bundled binary name. The distribution ships it
// under utils/ffmpeg next to the executable.
const ffmpegBinary = "ffmpeg.exe"

// FFmpeg runs the bundled ffmpeg binary as the demuxer collaborator.
type FFmpeg struct {
	// Path overrides binary resolution; empty means resolve relative
	// to the executable.
	Path string
}

// NewFFmpeg returns an FFmpeg demuxer resolving the bundled binary.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{}
}

// binaryPath looks for utils/ffmpeg/ffmpeg.exe beside the executable,
// then one directory up, mirroring how the tool is distributed.
func (f *FFmpeg) binaryPath() (string, error) {
	if f.Path != "" {
		return f.Path, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", errors.Wrap(err, "resolve executable path")
	}
	base := filepath.Dir(exe)
	candidates := []string{
		filepath.Join(base, "utils", "ffmpeg", ffmpegBinary),
		filepath.Join(filepath.Dir(base), "utils", "ffmpeg", ffmpegBinary),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", errs.ErrDemuxerFailed
}

// Demux copies the video elementary stream of inputPath into a scoped
// temporary file and returns its bytes. The temp directory is removed
// on every path.
func (f *FFmpeg) Demux(ctx context.Context, inputPath, codec string) ([]byte, error) {
	bin, err := f.binaryPath()
	if err != nil {
		return nil, err
	}
	tempDir, err := os.MkdirTemp("", "miat-demux-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(tempDir)

	tempOutput := filepath.Join(tempDir, "ffmpeg_temp."+codec)
	args := []string{"-i", inputPath, "-c:v", "copy", "-an", tempOutput}

	if err := f.run(ctx, bin, args); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(tempOutput)
	if err != nil {
		return nil, errors.Wrap(err, "read demuxed stream")
	}
	return data, nil
}

// ExtractFrames renders the inclusive frame range lo..hi of inputPath
// as PNGs following outPattern.
func (f *FFmpeg) ExtractFrames(ctx context.Context, inputPath string, lo, hi int, outPattern string) error {
	bin, err := f.binaryPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPattern), 0o755); err != nil {
		return errors.Wrap(err, "create output dir")
	}
	args := []string{
		"-i", inputPath,
		"-vf", fmt.Sprintf("select='between(n,%d,%d)'", lo, hi),
		"-vsync", "0",
		outPattern,
	}
	return f.run(ctx, bin, args)
}

func (f *FFmpeg) run(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.Debug().Str("bin", bin).Strs("args", args).Msg("invoking demuxer")
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(errs.ErrDemuxerFailed, "ffmpeg: %v: %s", err, stderr.String())
	}
	return nil
}
