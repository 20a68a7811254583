package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/tendant/simple-rasterizer/internal/archive"
	"github.com/tendant/simple-rasterizer/internal/process"
	"github.com/tendant/simple-rasterizer/pkg/schema"
)

// Options tune a Pipeline. The zero value is usable.
type Options struct {
	// StagingDir holds extracted archives. Empty means the OS temp dir.
	StagingDir string
	// PackageFolders repackages folder sources too, not just archives.
	PackageFolders bool
	Reporter       Reporter
	Logger         *slog.Logger
}

// Pipeline runs batches for one Mode. Runs are sequential; a Pipeline keeps
// no state between them.
type Pipeline struct {
	mode Mode
	opts Options
}

func New(mode Mode, opts Options) *Pipeline {
	if opts.Reporter == nil {
		opts.Reporter = Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{mode: mode, opts: opts}
}

// Result is the outcome of one run.
type Result struct {
	Run           *process.Run
	Mode          string
	DPI           int
	Source        Source
	Found         int
	Outcomes      []schema.Outcome
	OutputArchive string
	OutputEntries int
}

// Success is true only when candidates were found and none failed.
func (r *Result) Success() bool { return r.Run.Success() }

func (r *Result) Succeeded() int { return r.count(schema.OutcomeSucceeded) }

func (r *Result) Failed() int { return r.count(schema.OutcomeFailed) }

func (r *Result) count(status schema.OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Report flattens the result into its JSON form.
func (r *Result) Report() schema.Report {
	return schema.Report{
		RunID:            r.Run.ID,
		Mode:             r.Mode,
		Source:           r.Source.Path,
		SourceKind:       r.Source.Kind,
		DPI:              r.DPI,
		Status:           string(r.Run.Status),
		Success:          r.Success(),
		Detail:           r.Run.Detail,
		TotalFound:       r.Found,
		TotalSucceeded:   r.Succeeded(),
		TotalFailed:      r.Failed(),
		OutputArchive:    r.OutputArchive,
		OutputEntries:    r.OutputEntries,
		Outcomes:         r.Outcomes,
		ProcessingTimeMs: r.Run.Duration().Milliseconds(),
		StartedAt:        r.Run.StartedAt.Unix(),
		FinishedAt:       r.Run.FinishedAt.Unix(),
	}
}

// Run processes src to completion. Per-file failures are recorded in the
// result; an error is returned only when the run itself could not proceed
// (unreadable archive, walk failure, repackaging failure, cancellation).
// The staging area is removed on every path.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	if abs, err := filepath.Abs(src.Path); err == nil {
		src.Path = abs
	}
	runID := uuid.NewString()
	res := &Result{
		Run:    process.NewRun(p.mode.Name, runID, src.Path),
		Mode:   p.mode.Name,
		DPI:    p.mode.DPI,
		Source: src,
	}
	ev := emitter{runID: runID, report: p.opts.Reporter}

	process.MarkRunning(res.Run)
	ev.info(schema.StageIdle, fmt.Sprintf("starting %s of %s", p.mode.Name, src.Path), src.Path)

	if err := p.run(ctx, src, res, ev); err != nil {
		process.MarkFailed(res.Run, err)
		ev.emit(schema.StageDone, schema.LevelError, "run failed", src.Path, err)
		return res, err
	}

	level := schema.LevelSuccess
	switch res.Run.Status {
	case process.StatusPartial:
		level = schema.LevelWarn
	case process.StatusFailed:
		level = schema.LevelError
	}
	msg := fmt.Sprintf("%s: %d of %d succeeded", res.Run.Status, res.Succeeded(), res.Found)
	if res.Found == 0 {
		msg = res.Run.Detail
	}
	ev.emit(schema.StageDone, level, msg, res.OutputArchive, nil)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, src Source, res *Result, ev emitter) error {
	root := filepath.Clean(src.Path)
	if src.IsArchive() {
		ev.info(schema.StageDiscovering, "extracting archive", src.Path)
		staging, err := os.MkdirTemp(p.opts.StagingDir, "rasterizer-"+res.Run.ID+"-*")
		if err != nil {
			return fmt.Errorf("create staging area: %w", err)
		}
		defer func() {
			ev.info(schema.StageCleanup, "removing staging area", staging)
			if err := os.RemoveAll(staging); err != nil {
				p.opts.Logger.Warn("remove staging area", "run_id", res.Run.ID, "dir", staging, "err", err)
			}
		}()

		if err := archive.Extract(src.Path, staging); err != nil {
			return err
		}
		root = staging
	}

	ev.info(schema.StageDiscovering, "searching for candidate files", src.Path)
	files, err := archive.ListCandidates(root, p.mode.Match)
	if err != nil {
		return err
	}
	res.Found = len(files)
	if len(files) == 0 {
		process.Settle(res.Run, 0, 0, 0)
		return nil
	}
	ev.info(schema.StageDiscovering, fmt.Sprintf("found %d files", len(files)), src.Path)

	produced := make(map[string]bool)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted: %w", err)
		}
		outcome := p.convert(ctx, root, file, src.IsArchive(), ev)
		res.Outcomes = append(res.Outcomes, outcome)
		// Outputs written before a failure are still valid images.
		for _, out := range outcome.Outputs {
			produced[out] = true
		}
	}

	if (src.IsArchive() || p.opts.PackageFolders) && len(produced) > 0 {
		output := p.mode.ArchiveName(src.Path)
		ev.info(schema.StageRepackaging, "creating output archive", output)
		n, err := archive.CreateArchive(output, root, func(rel string) bool {
			if src.IsArchive() {
				return produced[rel]
			}
			return produced[filepath.Join(root, filepath.FromSlash(rel))]
		})
		if err != nil {
			return err
		}
		res.OutputArchive = output
		res.OutputEntries = n

		size := "unknown size"
		if info, err := os.Stat(output); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
		ev.emit(schema.StageRepackaging, schema.LevelSuccess,
			fmt.Sprintf("created %s with %d entries (%s)", filepath.Base(output), n, size), output, nil)
	}

	process.Settle(res.Run, res.Found, res.Succeeded(), res.Failed())
	return nil
}

// convert runs the mode's converter on one file. Paths inside a staging area
// are reported relative to it so they match the archive entry names.
func (p *Pipeline) convert(ctx context.Context, root, file string, staged bool, ev emitter) schema.Outcome {
	display := func(path string) string {
		if !staged {
			return path
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			return filepath.ToSlash(rel)
		}
		return path
	}

	name := display(file)
	ev.info(schema.StageProcessing, "processing "+name, name)

	start := time.Now()
	outputs, err := p.mode.Converter.Convert(ctx, file)
	outcome := schema.Outcome{
		Path:             name,
		Status:           schema.OutcomeSucceeded,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	for _, out := range outputs {
		shown := display(out)
		outcome.Outputs = append(outcome.Outputs, shown)
		ev.emit(schema.StageProcessing, schema.LevelSuccess, "saved "+shown, shown, nil)
	}
	if err != nil {
		outcome.Status = schema.OutcomeFailed
		outcome.Error = err.Error()
		ev.emit(schema.StageProcessing, schema.LevelError, "failed "+name, name, err)
	}
	return outcome
}
