// Package config loads the Mode Configuration and storage settings from a
// YAML file, layering environment variables over the file and the file
// over built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/lunasat/fsw-core"
)

// TaskEntry mirrors fsw.ModeEntry in a form viper/mapstructure can
// decode directly from YAML. Tasks are a list, not a map, because the
// scheduler's insertion-order tie-break depends on the order they were
// declared in -- a YAML/Go map would discard that order on decode.
type TaskEntry struct {
	Name          string  `mapstructure:"name"`
	FrequencyHz   float64 `mapstructure:"frequency_hz"`
	Priority      int     `mapstructure:"priority"`
	ScheduleLater bool    `mapstructure:"schedule_later"`
}

// ModeEntry is one mode's declarative configuration.
type ModeEntry struct {
	Tasks   []TaskEntry `mapstructure:"tasks"`
	MovesTo []string    `mapstructure:"moves_to"`
}

// StorageConfig configures the on-board data handler's filesystem root.
type StorageConfig struct {
	Root string `mapstructure:"root"`
}

// DataProcessEntry declares one DataStore stream to register at startup,
// the Go-native counterpart of a fresh-boot call to DataHandler.register
// the original source made inline in each collector task. Image streams
// only need a name -- format, line_limit, and persistent are meaningless
// for raw byte records, so Image is checked before any of the others.
type DataProcessEntry struct {
	Format     string `mapstructure:"format"`
	LineLimit  int    `mapstructure:"line_limit"`
	Persistent bool   `mapstructure:"persistent"`
	Image      bool   `mapstructure:"image"`
}

// Config is the full decoded Mode Configuration file.
type Config struct {
	Modes         map[string]ModeEntry        `mapstructure:"modes"`
	Storage       StorageConfig               `mapstructure:"storage"`
	StartMode     string                      `mapstructure:"start_mode"`
	DataProcesses map[string]DataProcessEntry `mapstructure:"data_processes"`
}

// Load reads the Mode Configuration from path, applying the
// FSWCORE_ environment variable prefix as an override layer above the
// file. No command-line flags are bound here.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FSWCORE")
	v.AutomaticEnv()
	v.SetDefault("storage.root", "/sd")
	v.SetDefault("start_mode", "STARTUP")

	if err := v.ReadInConfig(); err != nil {
		return nil, fsw.WrapError("config.Load", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = false
	}); err != nil {
		return nil, fsw.WrapError("config.Load", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Modes) == 0 {
		return fsw.NewError("config.Load", fsw.ErrConfiguration, "no modes defined")
	}
	if _, ok := c.Modes[c.StartMode]; !ok {
		return fsw.NewError("config.Load", fsw.ErrConfiguration, fmt.Sprintf("start_mode %q is not defined", c.StartMode))
	}
	return nil
}

// ToModes converts the decoded configuration into fsw.Mode values,
// keyed by mode name, ready for fsw.NewStateManager. Hook registration
// (OnEnter/OnExit) is left to the caller since hooks are Go closures,
// not YAML data.
func (c *Config) ToModes() map[string]*fsw.Mode {
	out := make(map[string]*fsw.Mode, len(c.Modes))
	for name, m := range c.Modes {
		mode := &fsw.Mode{Name: name, MovesTo: append([]string(nil), m.MovesTo...)}
		for _, entry := range m.Tasks {
			period := hzToPeriod(entry.FrequencyHz)
			// schedule_later's first dispatch is due one period from now,
			// per spec.md §4.1 -- not an independently configurable delay.
			var delay time.Duration
			if entry.ScheduleLater {
				delay = period
			}
			mode.Entries = append(mode.Entries, fsw.ModeEntry{
				TaskName:      entry.Name,
				Period:        period,
				Priority:      entry.Priority,
				ScheduleLater: entry.ScheduleLater,
				Delay:         delay,
			})
		}
		out[name] = mode
	}
	return out
}

func hzToPeriod(hz float64) time.Duration {
	if hz <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / hz)
}
