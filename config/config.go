// Package config loads the analyzer configuration from defaults, an optional
// YAML file and command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/nvr-ai/go-cytometry/images"
	"github.com/nvr-ai/go-cytometry/logger"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete analyzer configuration.
type Config struct {
	Pipeline controller.Config `mapstructure:",squash" yaml:",inline"`
	Log      LogConfig         `mapstructure:"log" yaml:"log"`
	Profile  ProfileConfig     `mapstructure:"profile" yaml:"profile"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// ProfileConfig controls periodic stage timing reports.
type ProfileConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	ReportInterval time.Duration `mapstructure:"report_interval" yaml:"report_interval"`
}

// MarshalYAML writes the interval as a duration string such as "5s".
func (p ProfileConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Enabled        bool   `yaml:"enabled"`
		ReportInterval string `yaml:"report_interval"`
	}{p.Enabled, p.ReportInterval.String()}, nil
}

// FlagBindings maps command-line flag names onto configuration keys.
var FlagBindings = map[string]string{
	"fit":        "extraction.fit_type",
	"view":       "view",
	"max-frames": "max_frames",
	"log-level":  "log.level",
	"log-pretty": "log.pretty",
	"profile":    "profile.enabled",
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Pipeline: controller.DefaultConfig(),
		Log:      LogConfig{Level: "info"},
		Profile:  ProfileConfig{ReportInterval: 5 * time.Second},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	seg, ext := d.Pipeline.Segmentation, d.Pipeline.Extraction

	v.SetDefault("segmentation.binary_threshold", seg.BinaryThreshold)
	v.SetDefault("segmentation.outlier_ceiling", seg.OutlierCeiling)
	v.SetDefault("segmentation.morphology_iterations", seg.MorphologyIterations)
	v.SetDefault("segmentation.kernel_size", seg.KernelSize)
	v.SetDefault("segmentation.threshold_cleaned", seg.ThresholdCleaned)

	v.SetDefault("extraction.fit_type", string(ext.FitType))
	v.SetDefault("extraction.area_exclusion_low", ext.AreaExclusionLow)
	v.SetDefault("extraction.area_exclusion_high", ext.AreaExclusionHigh)
	v.SetDefault("extraction.cell_radius_threshold", ext.CellRadiusThreshold)

	v.SetDefault("view", string(d.Pipeline.View))
	v.SetDefault("max_frames", d.Pipeline.MaxFrames)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)

	v.SetDefault("profile.enabled", d.Profile.Enabled)
	v.SetDefault("profile.report_interval", d.Profile.ReportInterval)
}

// Load builds the configuration.
//
// Arguments:
//   - path: Optional YAML file; empty skips the file.
//   - flags: Optional flag set; flags named in FlagBindings override the file
//     when they were set on the command line.
//
// Returns:
//   - The validated Config.
//   - error if the file cannot be read or a value is invalid.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	if flags != nil {
		for name, key := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, errors.Wrapf(err, "bind flag --%s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	cfg.Pipeline.Extraction.FillColor = images.DefaultFillColor

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logger.WithComponent("config").Debug().
		Str("path", v.ConfigFileUsed()).
		Str("fit_type", string(cfg.Pipeline.Extraction.FitType)).
		Str("view", string(cfg.Pipeline.View)).
		Msg("config loaded")
	return cfg, nil
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return errors.Errorf("invalid log level %q (use trace, debug, info, warn or error)", c.Log.Level)
	}
	if c.Profile.ReportInterval < 0 {
		return errors.Errorf("profile.report_interval must be >= 0, got %s", c.Profile.ReportInterval)
	}
	return nil
}

// WriteDefault writes the reference configuration as a YAML template. It
// refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("config file %s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create config directory %s", dir)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.Wrap(err, "encode default config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}
