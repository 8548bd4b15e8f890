package analyze

import (
	"context"

	"github.com/KimVegetable/miat/media/demux"
	"github.com/KimVegetable/miat/media/record"
)

// Options selects which engines run.
type Options struct {
	Apple     bool
	OutputDir string
	Demuxer   demux.Demuxer
}

// Run executes the enabled engines over every record and aggregates
// the scoring report.
func Run(ctx context.Context, records []*record.Record, opts Options) ([]*Report, *CDASReport) {
	var reports []*Report
	if opts.Apple {
		engine := NewApple(opts.Demuxer, opts.OutputDir)
		for _, rec := range records {
			report := engine.Analyze(ctx, rec)
			AppendStatsFindings(report, CollectStreamStats(rec))
			reports = append(reports, report)
		}
	}
	return reports, ComputeCDAS(reports)
}
