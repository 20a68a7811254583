package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-rasterizer/internal/config"
	"github.com/tendant/simple-rasterizer/internal/converters"
	"github.com/tendant/simple-rasterizer/internal/pipeline"
	"github.com/tendant/simple-rasterizer/internal/session"
	"github.com/tendant/simple-rasterizer/pkg/schema"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Prompt for a source and DPI, then rasterize with live progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		r, err := converters.GetRasterizer(cfg.Backend)
		if err != nil {
			return err
		}
		return runInteractive(commandContext(cmd), cmd.InOrStdin(), cmd.OutOrStdout(), cfg, logger, r)
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// runInteractive asks for a source and a DPI, runs one batch on a session
// and prints its messages as they arrive. It repeats until the input ends or
// an empty path is entered.
func runInteractive(ctx context.Context, in io.Reader, out io.Writer, cfg config.Config, logger *slog.Logger, r converters.Rasterizer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "PDF to PNG rasterizer. Enter an empty path to quit.")

	for {
		path, ok := prompt(scanner, out, "\nSource folder or .zip archive: ")
		if !ok || path == "" {
			return scanner.Err()
		}
		src, err := pipeline.DetectSource(strings.Trim(path, `"'`))
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}

		dpi, ok := askDPI(scanner, out)
		if !ok {
			return scanner.Err()
		}

		runner := session.PipelineRunner(pipeline.RasterizeMode(r, dpi), pipeline.Options{
			StagingDir:     cfg.StagingDir,
			PackageFolders: cfg.PackageFolders,
			Logger:         logger,
		})
		fmt.Fprintf(out, "Rasterizing %s at %d dpi\n", src.Path, dpi)
		for msg := range session.Start(ctx, runner, src).Messages() {
			if msg.Final {
				fmt.Fprintf(out, "%s %s\n", levelTag(msg.Level), msg.Text)
				continue
			}
			fmt.Fprintf(out, "  %s %s\n", levelTag(msg.Level), msg.Text)
		}
	}
}

func askDPI(scanner *bufio.Scanner, out io.Writer) (int, bool) {
	label := fmt.Sprintf("Resolution in DPI (%d-%d) [%d]: ", config.MinInteractiveDPI, config.MaxInteractiveDPI, config.DefaultDPI)
	for {
		answer, ok := prompt(scanner, out, label)
		if !ok {
			return 0, false
		}
		dpi, err := config.ParseInteractiveDPI(answer)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			continue
		}
		return dpi, true
	}
}

func prompt(scanner *bufio.Scanner, out io.Writer, label string) (string, bool) {
	fmt.Fprint(out, label)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}

func levelTag(level schema.Level) string {
	switch level {
	case schema.LevelSuccess:
		return "[ok]"
	case schema.LevelWarn:
		return "[warn]"
	case schema.LevelError:
		return "[error]"
	default:
		return "[..]"
	}
}
