package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-rasterizer/internal/img"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image>...",
	Short: "Show the pixel size and stored DPI of PNG or JPEG images",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		var failed int
		for _, path := range args {
			if err := inspectImage(cmd, path); err != nil {
				fmt.Fprintf(out, "%s: %v\n", path, err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images could not be inspected", failed, len(args))
		}
		return nil
	},
}

func inspectImage(cmd *cobra.Command, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	w, h, err := img.ImageSize(path)
	if err != nil {
		return err
	}
	hDPI, vDPI, err := img.ReadResolution(path)
	if err != nil {
		return err
	}

	dpi := "not set"
	if hDPI > 0 || vDPI > 0 {
		dpi = fmt.Sprintf("%dx%d", hDPI, vDPI)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d px, %s dpi, %s\n", path, w, h, dpi, humanize.Bytes(uint64(info.Size())))
	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
