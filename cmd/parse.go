package cmd

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/KimVegetable/miat/analyze"
	"github.com/KimVegetable/miat/common/errs"
	"github.com/KimVegetable/miat/export"
	"github.com/KimVegetable/miat/media/binder"
	"github.com/KimVegetable/miat/media/demux"
	"github.com/KimVegetable/miat/media/record"
)

// parseWorkers bounds file-level parallelism. Parsers hold no
// cross-file state, so files only share the demuxer binary.
const parseWorkers = 4

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".heic": true,
	".h264": true, ".h265": true, ".m4a": true, ".aac": true, ".3gp": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".dng": true, ".tiff": true,
	".png": true, ".gif": true, ".webp": true,
}

func runAnalysis(ctx context.Context) error {
	if !parseMode && !slackCarver {
		return errors.Wrap(errs.ErrInvalidArgs, "one of --parse or --slack_carver is required")
	}
	if inputDir == "" {
		return errors.Wrap(errs.ErrInvalidArgs, "--input is required")
	}
	info, err := os.Stat(inputDir)
	if err != nil || !info.IsDir() {
		return errors.Wrapf(errs.ErrInvalidArgs, "input directory %s not accessible", inputDir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", outputDir)
	}

	videoFiles, imageFiles, err := collectFiles(inputDir)
	if err != nil {
		return err
	}
	log.Info().Int("video", len(videoFiles)).Int("image", len(imageFiles)).Msg("input files collected")

	if slackCarver && !parseMode {
		// Slack carving shares only the directory walk with parse mode;
		// the carver itself is a separate tool stage.
		return nil
	}

	ffmpeg := demux.NewFFmpeg()
	records := parseVideos(ctx, videoFiles, ffmpeg)

	for _, img := range imageFiles {
		log.Info().Str("file", img).Msg("image file recorded; image parsing handled by image pipeline")
	}

	if appleMode {
		reports, _ := analyze.Run(ctx, records, analyze.Options{
			Apple:     true,
			OutputDir: outputDir,
			Demuxer:   ffmpeg,
		})
		for _, report := range reports {
			logReport(report)
		}
		if exportFormat != "" {
			if err := exportReports(reports); err != nil {
				return err
			}
		}
	}

	if exportFormat != "" {
		if err := exportRecords(records); err != nil {
			return err
		}
	}
	return nil
}

// collectFiles walks the input tree and routes files by extension.
// Both lists come back sorted so output order is deterministic.
func collectFiles(root string) (videos, images []string, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Warn().Err(walkErr).Str("path", path).Msg("walk error; skipping")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case videoExtensions[ext]:
			videos = append(videos, path)
		case imageExtensions[ext]:
			images = append(images, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "walk input directory")
	}
	sort.Strings(videos)
	sort.Strings(images)
	return videos, images, nil
}

// parseVideos parses files concurrently with a bounded worker count;
// results keep the input order. A file that fails to read is skipped
// with a logged error.
func parseVideos(ctx context.Context, files []string, d demux.Demuxer) []*record.Record {
	results := make([]*record.Record, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)

	b := binder.New(d)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			log.Info().Str("file", file).Msg("parsing video file")
			rec, err := b.Parse(ctx, file)
			if err != nil {
				log.Error().Err(err).Str("file", file).Msg("parse failed; file skipped")
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	g.Wait()

	records := make([]*record.Record, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records
}

func logReport(report *analyze.Report) {
	if report.Trim != nil {
		event := log.Info().Str("file", report.FilePath).Str("verdict", string(report.Trim.Verdict))
		if report.Trim.HasUnrefFrames {
			event = event.Ints("unreferenced_range", []int{report.Trim.UnrefRange[0], report.Trim.UnrefRange[1]})
		}
		event.Msg("trim analysis")
	}
	for _, f := range report.Findings {
		log.Info().
			Str("file", report.FilePath).
			Str("item", f.Item).
			Str("severity", string(f.Severity)).
			Str("comment", f.Comment).
			Msg("finding")
	}
}

func exportRecords(records []*record.Record) error {
	sanitized := make([]any, 0, len(records))
	for _, rec := range records {
		m, err := export.RecordToMap(rec)
		if err != nil {
			return err
		}
		export.TrimPayloads(m)
		sanitized = append(sanitized, m)
	}

	switch exportFormat {
	case "json":
		return export.ToJSON(sanitized, filepath.Join(outputDir, "parsed_data.json"))
	case "csv":
		return export.ToCSV(sanitized, filepath.Join(outputDir, "parsed_data.csv"))
	default:
		return errors.Wrapf(errs.ErrInvalidArgs, "unknown export format %q", exportFormat)
	}
}

func exportReports(reports []*analyze.Report) error {
	switch exportFormat {
	case "json":
		return export.ToJSON(reports, filepath.Join(outputDir, "analysis_report.json"))
	case "csv":
		rows := make([]any, 0, len(reports))
		for _, report := range reports {
			rows = append(rows, report)
		}
		return export.ToCSV(rows, filepath.Join(outputDir, "analysis_report.csv"))
	default:
		return errors.Wrapf(errs.ErrInvalidArgs, "unknown export format %q", exportFormat)
	}
}
