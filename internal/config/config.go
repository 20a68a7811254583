// Package config resolves rasterizer settings from defaults, an optional
// config file, RASTERIZER_* environment variables and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tendant/simple-rasterizer/internal/converters"
)

const EnvPrefix = "RASTERIZER"

const (
	KeyDPI            = "dpi"
	KeyNormalizeDPI   = "normalize_dpi"
	KeyBackend        = "backend"
	KeyStagingDir     = "staging_dir"
	KeyPackageFolders = "package_folders"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeyReport         = "report"
)

const (
	DefaultDPI          = 100
	DefaultNormalizeDPI = 600

	// Bounds offered by the interactive session.
	MinInteractiveDPI = 72
	MaxInteractiveDPI = 600
)

const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	DPI            int
	NormalizeDPI   int
	Backend        string
	StagingDir     string
	PackageFolders bool
	LogLevel       slog.Level
	LogFormat      string
	Report         string
}

// Bind registers defaults and environment lookup on v.
func Bind(v *viper.Viper) {
	v.SetDefault(KeyDPI, DefaultDPI)
	v.SetDefault(KeyNormalizeDPI, DefaultNormalizeDPI)
	v.SetDefault(KeyBackend, converters.BackendFitz)
	v.SetDefault(KeyStagingDir, "")
	v.SetDefault(KeyPackageFolders, false)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, LogFormatAuto)
	v.SetDefault(KeyReport, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		StagingDir:     v.GetString(KeyStagingDir),
		PackageFolders: v.GetBool(KeyPackageFolders),
		Report:         v.GetString(KeyReport),
	}

	dpi, err := parsePositiveInt(v.GetString(KeyDPI), KeyDPI)
	if err != nil {
		return Config{}, err
	}
	cfg.DPI = dpi

	normalizeDPI, err := parsePositiveInt(v.GetString(KeyNormalizeDPI), KeyNormalizeDPI)
	if err != nil {
		return Config{}, err
	}
	cfg.NormalizeDPI = normalizeDPI

	cfg.Backend = strings.ToLower(strings.TrimSpace(v.GetString(KeyBackend)))
	if _, err := converters.GetRasterizer(cfg.Backend); err != nil {
		return Config{}, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	cfg.LogFormat = strings.ToLower(v.GetString(KeyLogFormat))
	switch cfg.LogFormat {
	case LogFormatAuto, LogFormatText, LogFormatJSON:
	default:
		return Config{}, fmt.Errorf("invalid %s: %q (supported: auto, text, json)", KeyLogFormat, cfg.LogFormat)
	}

	return cfg, nil
}

// ParseInteractiveDPI parses a DPI typed at the prompt. Blank input selects
// the default.
func ParseInteractiveDPI(input string) (int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return DefaultDPI, nil
	}
	dpi, err := strconv.Atoi(input)
	if err != nil {
		return 0, fmt.Errorf("invalid dpi %q: enter a whole number", input)
	}
	if err := ValidateInteractiveDPI(dpi); err != nil {
		return 0, err
	}
	return dpi, nil
}

func ValidateInteractiveDPI(dpi int) error {
	if dpi < MinInteractiveDPI || dpi > MaxInteractiveDPI {
		return fmt.Errorf("dpi must be between %d and %d (got %d)", MinInteractiveDPI, MaxInteractiveDPI, dpi)
	}
	return nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}
