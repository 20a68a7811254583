package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tendant/simple-rasterizer/pkg/schema"
)

// Reporter receives progress events in the order a run produces them.
type Reporter func(schema.Event)

// Discard drops every event.
func Discard(schema.Event) {}

// LogReporter writes each event to logger at a level matching the event.
func LogReporter(logger *slog.Logger) Reporter {
	return func(ev schema.Event) {
		attrs := []any{"run_id", ev.RunID, "stage", ev.Stage}
		if ev.Path != "" {
			attrs = append(attrs, "path", ev.Path)
		}
		if ev.Error != "" {
			attrs = append(attrs, "err", ev.Error)
		}
		logger.Log(context.Background(), slogLevel(ev.Level), ev.Message, attrs...)
	}
}

func slogLevel(l schema.Level) slog.Level {
	switch l {
	case schema.LevelWarn:
		return slog.LevelWarn
	case schema.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type emitter struct {
	runID  string
	report Reporter
}

func (e emitter) emit(stage schema.Stage, level schema.Level, msg, path string, err error) {
	ev := schema.Event{
		RunID:      e.runID,
		Stage:      stage,
		Level:      level,
		Message:    msg,
		Path:       path,
		HappenedAt: time.Now().Unix(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.report(ev)
}

func (e emitter) info(stage schema.Stage, msg, path string) {
	e.emit(stage, schema.LevelInfo, msg, path, nil)
}
