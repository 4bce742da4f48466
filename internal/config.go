package internal

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/tuannm99/ftstab/internal/ftstab"
)

type FtstabConfig struct {
	AppName string `mapstructure:"app_name"`

	Log struct {
		Level string `mapstructure:"level"`
		Color string `mapstructure:"color"` // auto, always, never
	} `mapstructure:"log"`

	Table struct {
		DefaultBins    int    `mapstructure:"default_bins"`
		CacheBlocks    int    `mapstructure:"cache_blocks"`
		CheckpointRows int64  `mapstructure:"checkpoint_rows"`
		TreatHistory   bool   `mapstructure:"treat_history"`
		OpenMode       string `mapstructure:"open_mode"`
	} `mapstructure:"table"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "ftstab")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.color", "auto")
	v.SetDefault("table.default_bins", ftstab.DefaultBins)
	v.SetDefault("table.cache_blocks", 64)
	v.SetDefault("table.checkpoint_rows", 0)
	v.SetDefault("table.treat_history", true)
	v.SetDefault("table.open_mode", ftstab.ModeAppend.String())
}

// LoadConfig reads the YAML file at path on top of the defaults. An empty
// path yields the defaults. FTSTAB_* environment variables override both,
// e.g. FTSTAB_TABLE_DEFAULT_BINS.
func LoadConfig(path string) (*FtstabConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FTSTAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg FtstabConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Mode(); err != nil {
		return nil, fmt.Errorf("config table.open_mode: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return nil, fmt.Errorf("config log.level: %w", err)
	}

	return &cfg, nil
}

// Mode is the configured default open mode.
func (c *FtstabConfig) Mode() (ftstab.OpenMode, error) {
	return ftstab.ParseOpenMode(c.Table.OpenMode)
}

// Level is the configured log level.
func (c *FtstabConfig) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}

// EngineOptions turns the table settings into engine options.
func (c *FtstabConfig) EngineOptions(logger *slog.Logger) []ftstab.Option {
	return []ftstab.Option{
		ftstab.WithLogger(logger),
		ftstab.WithDefaultBins(c.Table.DefaultBins),
		ftstab.WithCacheBlocks(c.Table.CacheBlocks),
		ftstab.WithCheckpointRows(c.Table.CheckpointRows),
	}
}
