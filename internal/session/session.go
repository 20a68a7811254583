// Package session runs a batch off the caller's goroutine and streams its
// progress as an ordered sequence of messages ending in one final status.
package session

import (
	"context"
	"fmt"

	"github.com/tendant/simple-rasterizer/internal/pipeline"
	"github.com/tendant/simple-rasterizer/internal/process"
	"github.com/tendant/simple-rasterizer/pkg/schema"
)

// Runner performs one batch over src, passing each progress event to report.
type Runner func(ctx context.Context, src pipeline.Source, report pipeline.Reporter) (*pipeline.Result, error)

// PipelineRunner builds a Runner over a pipeline for mode. Any Reporter set in
// opts still receives every event.
func PipelineRunner(mode pipeline.Mode, opts pipeline.Options) Runner {
	return func(ctx context.Context, src pipeline.Source, report pipeline.Reporter) (*pipeline.Result, error) {
		o := opts
		if prev := opts.Reporter; prev != nil {
			o.Reporter = func(ev schema.Event) {
				prev(ev)
				report(ev)
			}
		} else {
			o.Reporter = report
		}
		return pipeline.New(mode, o).Run(ctx, src)
	}
}

// Message is one line of session output. The last message of every session
// has Final set and carries the run result.
type Message struct {
	Text    string
	Level   schema.Level
	Final   bool
	Success bool
	Result  *pipeline.Result
	Err     error
}

// Session is a single batch running on its own goroutine.
type Session struct {
	messages chan Message
}

// Start launches run on one worker goroutine. The caller must drain
// Messages until it is closed.
func Start(ctx context.Context, run Runner, src pipeline.Source) *Session {
	s := &Session{messages: make(chan Message, 16)}
	go s.work(ctx, run, src)
	return s
}

// Messages delivers progress in the order it was produced, then exactly one
// Final message, then closes.
func (s *Session) Messages() <-chan Message { return s.messages }

// Wait drains the session and returns its final message.
func (s *Session) Wait() Message {
	var final Message
	for msg := range s.messages {
		if msg.Final {
			final = msg
		}
	}
	return final
}

func (s *Session) work(ctx context.Context, run Runner, src pipeline.Source) {
	defer close(s.messages)

	res, err := run(ctx, src, func(ev schema.Event) {
		s.messages <- Message{Text: eventText(ev), Level: ev.Level}
	})

	final := Message{Final: true, Result: res, Err: err}
	final.Success = err == nil && res != nil && res.Success()
	final.Text, final.Level = summary(res, err)
	s.messages <- final
}

func eventText(ev schema.Event) string {
	if ev.Error != "" {
		return fmt.Sprintf("%s: %s", ev.Message, ev.Error)
	}
	return ev.Message
}

func summary(res *pipeline.Result, err error) (string, schema.Level) {
	switch {
	case err != nil:
		return fmt.Sprintf("Processing failed: %v", err), schema.LevelError
	case res == nil:
		return "Processing failed: no result", schema.LevelError
	}

	switch res.Run.Status {
	case process.StatusSucceeded:
		text := fmt.Sprintf("Processing completed successfully: %d of %d files converted", res.Succeeded(), res.Found)
		if res.OutputArchive != "" {
			text += ", output " + res.OutputArchive
		}
		return text, schema.LevelSuccess
	case process.StatusPartial:
		return fmt.Sprintf("Processing completed with failures: %d of %d files failed", res.Failed(), res.Found), schema.LevelWarn
	default:
		return "Processing failed: " + res.Run.Detail, schema.LevelError
	}
}
