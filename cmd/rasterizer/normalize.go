package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tendant/simple-rasterizer/internal/config"
	"github.com/tendant/simple-rasterizer/internal/pipeline"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <folder|archive.zip>",
	Short: "Set the stored DPI of the images inside nested zip archives",
	Long: `Normalize finds every zip archive under a folder (or inside a zip), extracts
its PNG and JPEG images, rewrites their resolution metadata to --dpi without
touching pixel data, and bundles them into <archive>_<dpi>DPI_PNG.zip beside
the original.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		return runBatch(cmd, cfg, logger, pipeline.NormalizeMode(cfg.NormalizeDPI, cfg.StagingDir), args[0])
	},
}

func init() {
	flags := normalizeCmd.Flags()
	flags.Int("dpi", config.DefaultNormalizeDPI, "resolution to record in each image")
	flags.String("report", "", "write a JSON run report to this file")

	_ = viper.BindPFlag(config.KeyNormalizeDPI, flags.Lookup("dpi"))

	rootCmd.AddCommand(normalizeCmd)
}
