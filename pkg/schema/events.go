// pkg/schema/events.go
package schema

// SourceKind tells whether a run reads a folder in place or stages an archive.
type SourceKind string

const (
	SourceFolder  SourceKind = "folder"
	SourceArchive SourceKind = "archive"
)

// Stage is a step of the batch state machine.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageDiscovering Stage = "discovering"
	StageProcessing  Stage = "processing"
	StageRepackaging Stage = "repackaging"
	StageCleanup     Stage = "cleanup"
	StageDone        Stage = "done"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Event is one progress line emitted while a run advances.
type Event struct {
	RunID      string `json:"run_id"`
	Stage      Stage  `json:"stage"`
	Level      Level  `json:"level"`
	Message    string `json:"message"`
	Path       string `json:"path,omitempty"`
	Error      string `json:"error,omitempty"`
	HappenedAt int64  `json:"happened_at"`
}

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome records what happened to one candidate file.
type Outcome struct {
	Path             string        `json:"path"`
	Status           OutcomeStatus `json:"status"`
	Error            string        `json:"error,omitempty"`
	Outputs          []string      `json:"outputs,omitempty"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}

// Report is the JSON summary of a finished run.
type Report struct {
	RunID            string     `json:"run_id"`
	Mode             string     `json:"mode"`
	Source           string     `json:"source"`
	SourceKind       SourceKind `json:"source_kind"`
	DPI              int        `json:"dpi"`
	Status           string     `json:"status"`
	Success          bool       `json:"success"`
	Detail           string     `json:"detail,omitempty"`
	TotalFound       int        `json:"total_found"`
	TotalSucceeded   int        `json:"total_succeeded"`
	TotalFailed      int        `json:"total_failed"`
	OutputArchive    string     `json:"output_archive,omitempty"`
	OutputEntries    int        `json:"output_entries,omitempty"`
	Outcomes         []Outcome  `json:"outcomes,omitempty"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	StartedAt        int64      `json:"started_at"`
	FinishedAt       int64      `json:"finished_at"`
}
