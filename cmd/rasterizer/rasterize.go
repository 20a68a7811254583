package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/simple-rasterizer/internal/config"
	"github.com/tendant/simple-rasterizer/internal/converters"
	"github.com/tendant/simple-rasterizer/internal/pipeline"
)

var rasterizeCmd = &cobra.Command{
	Use:   "rasterize <folder|archive.zip>",
	Short: "Render every page of every PDF to PNG",
	Long: `Rasterize finds every PDF under a folder or inside a zip archive and writes
one PNG per page, named <document>__page<N>.png, beside the document.

For a zip archive the pages are collected into <archive>_processed.zip next to
the original; with --package-folders the same happens for folders.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		r, err := converters.GetRasterizer(cfg.Backend)
		if err != nil {
			return err
		}
		return runBatch(cmd, cfg, logger, pipeline.RasterizeMode(r, cfg.DPI), args[0])
	},
}

func init() {
	flags := rasterizeCmd.Flags()
	flags.Int("dpi", config.DefaultDPI, "render resolution in dots per inch")
	flags.String("backend", converters.BackendFitz, "rasterization backend: fitz or poppler")
	flags.Bool("package-folders", false, "also zip the pages of folder sources")
	flags.String("report", "", "write a JSON run report to this file")

	_ = viper.BindPFlag(config.KeyDPI, flags.Lookup("dpi"))
	_ = viper.BindPFlag(config.KeyBackend, flags.Lookup("backend"))
	_ = viper.BindPFlag(config.KeyPackageFolders, flags.Lookup("package-folders"))

	rootCmd.AddCommand(rasterizeCmd)
}
