// Package analyze runs forensic inferences over parsed media records:
// trim detection against Apple Photos edit lists, orientation and crop
// evidence from track headers, and metadata/location extraction.
package analyze

// Severity grades a finding.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
	SeverityWarn     Severity = "Warn"
	SeverityCritical Severity = "Critical"
)

// Finding is one emitted observation.
type Finding struct {
	Item     string   `json:"item"`
	Value    any      `json:"value"`
	Severity Severity `json:"severity"`
	Comment  string   `json:"comment"`
}

// Verdict classifies a file's editing state.
type Verdict string

const (
	VerdictUnknown Verdict = "unknown"
	VerdictEdited  Verdict = "edited"
)

// TrimResult is the outcome of trim analysis for one file.
type TrimResult struct {
	Verdict            Verdict `json:"verdict"`
	HasUnrefFrames     bool    `json:"has_unreferenced_frames"`
	UnrefRange         [2]int  `json:"unreferenced_range,omitempty"`
	ExtractionSkipped  bool    `json:"extraction_skipped,omitempty"`
	ExtractionError    string  `json:"extraction_error,omitempty"`
}

// Report aggregates every finding for one file.
type Report struct {
	FilePath string     `json:"file_path"`
	Trim     *TrimResult `json:"trim,omitempty"`
	Findings []Finding  `json:"findings"`
}
