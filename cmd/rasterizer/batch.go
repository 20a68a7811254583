package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-rasterizer/internal/config"
	"github.com/tendant/simple-rasterizer/internal/pipeline"
	"github.com/tendant/simple-rasterizer/pkg/schema"
)

// runBatch executes one pipeline run over path and prints a summary. A run
// that did not fully succeed is returned as an error so the exit code is
// non-zero.
func runBatch(cmd *cobra.Command, cfg config.Config, logger *slog.Logger, mode pipeline.Mode, path string) error {
	src, err := pipeline.DetectSource(path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(mode, pipeline.Options{
		StagingDir:     cfg.StagingDir,
		PackageFolders: cfg.PackageFolders,
		Reporter:       pipeline.LogReporter(logger),
		Logger:         logger,
	})

	logger.Info("run starting", "mode", mode.Name, "converter", mode.Converter.Name(), "source", src.Path, "kind", src.Kind, "dpi", mode.DPI)
	res, runErr := p.Run(ctx, src)

	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath == "" {
		reportPath = cfg.Report
	}
	if reportPath != "" {
		if err := writeReport(reportPath, res.Report()); err != nil {
			logger.Error("write report", "path", reportPath, "err", err)
		} else {
			logger.Info("wrote report", "path", reportPath)
		}
	}

	printSummary(cmd.OutOrStdout(), res)

	if runErr != nil {
		return runErr
	}
	if !res.Success() {
		return fmt.Errorf("run %s: %s", res.Run.Status, res.Run.Detail)
	}
	return nil
}

func printSummary(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "Status:    %s\n", res.Run.Status)
	fmt.Fprintf(w, "Files:     %d found, %d succeeded, %d failed\n", res.Found, res.Succeeded(), res.Failed())
	if res.OutputArchive != "" {
		size := ""
		if info, err := os.Stat(res.OutputArchive); err == nil {
			size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
		}
		fmt.Fprintf(w, "Archive:   %s, %d entries%s\n", res.OutputArchive, res.OutputEntries, size)
	}
	if res.Run.Detail != "" {
		fmt.Fprintf(w, "Detail:    %s\n", res.Run.Detail)
	}
	fmt.Fprintf(w, "Elapsed:   %s\n", res.Run.Duration().Round(time.Millisecond))
}

func writeReport(path string, report schema.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// commandContext returns cmd's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
