// Package config provides configuration management for azint.
//
// Configuration is loaded from two sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (AZINT_ prefix)
//
// azint deliberately has no config file; every setting is a flag.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/azint/internal/integrate"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Pipeline defaults.
const (
	DefaultImageSuffix   = ".tif"
	DefaultPatternSuffix = ".dat"
	DefaultBins          = 1000
	DefaultPolarization  = 0.95
	DefaultUnit          = string(integrate.UnitQA)
)

// Config represents the global configuration for azint.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	Pipeline `mapstructure:",squash"`
}

// Pipeline holds the settings shared by the run, batch and convert commands.
type Pipeline struct {
	// Source is the directory scanned and watched for detector images.
	Source string `mapstructure:"source" json:"source"`

	// Dest is the directory pattern files are written to. Created if absent.
	Dest string `mapstructure:"dest" json:"dest"`

	// Calibration is the PONI geometry file.
	Calibration string `mapstructure:"calibration" json:"calibration"`

	// Mask is an optional image whose non-zero pixels are excluded.
	Mask string `mapstructure:"mask" json:"mask,omitempty"`

	ImageSuffix   string `mapstructure:"image-suffix" json:"imageSuffix"`
	PatternSuffix string `mapstructure:"pattern-suffix" json:"patternSuffix"`

	// Bins is the number of points in each integrated pattern.
	Bins int `mapstructure:"bins" json:"bins"`

	// Polarization is the beam polarization factor in [-1, 1].
	Polarization float64 `mapstructure:"polarization" json:"polarization"`

	// Unit selects the radial axis of the pattern.
	Unit string `mapstructure:"unit" json:"unit"`

	// Settle delays live conversion until a new file has been quiet this long.
	Settle time.Duration `mapstructure:"settle" json:"settle"`

	// Preview additionally renders a PNG plot next to every pattern.
	Preview bool `mapstructure:"preview" json:"preview"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
		Pipeline: Pipeline{
			ImageSuffix:   DefaultImageSuffix,
			PatternSuffix: DefaultPatternSuffix,
			Bins:          DefaultBins,
			Polarization:  DefaultPolarization,
			Unit:          DefaultUnit,
		},
	}
}

// Validate checks that all global config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	return nil
}

// Validate checks the pipeline settings. needSource is false for commands
// that take image paths as arguments instead of scanning a directory.
func (p *Pipeline) Validate(needSource bool) error {
	if needSource && p.Source == "" {
		return fmt.Errorf("--source is required")
	}

	if p.Dest == "" {
		return fmt.Errorf("--dest is required")
	}

	if p.Calibration == "" {
		return fmt.Errorf("--calibration is required")
	}

	if p.ImageSuffix == "" || p.PatternSuffix == "" {
		return fmt.Errorf("image and pattern suffixes must not be empty")
	}

	if p.ImageSuffix == p.PatternSuffix {
		return fmt.Errorf("image suffix and pattern suffix must differ (both %q)", p.ImageSuffix)
	}

	if p.Bins < 2 {
		return fmt.Errorf("invalid bin count %d: must be at least 2", p.Bins)
	}

	if p.Polarization < -1 || p.Polarization > 1 {
		return fmt.Errorf("invalid polarization factor %g: must be within [-1, 1]", p.Polarization)
	}

	if _, err := integrate.ParseUnit(p.Unit); err != nil {
		return err
	}

	if p.Settle < 0 {
		return fmt.Errorf("invalid settle duration %s: must not be negative", p.Settle)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Load initialises configuration from flags and environment variables. A
// fresh viper instance is used on every call so that Load is safe for
// concurrent tests.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper. Every key is registered so
// that AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)

	v.SetDefault("source", "")
	v.SetDefault("dest", "")
	v.SetDefault("calibration", "")
	v.SetDefault("mask", "")
	v.SetDefault("image-suffix", d.ImageSuffix)
	v.SetDefault("pattern-suffix", d.PatternSuffix)
	v.SetDefault("bins", d.Bins)
	v.SetDefault("polarization", d.Polarization)
	v.SetDefault("unit", d.Unit)
	v.SetDefault("settle", d.Settle)
	v.SetDefault("preview", false)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("AZINT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
