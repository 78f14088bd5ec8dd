// Package config loads the engine's TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Window    WindowConfig    `toml:"window"`
	Scripts   ScriptsConfig   `toml:"scripts"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

type SchedulerConfig struct {
	StagnationLimit int `toml:"stagnation_limit"`
	// Clock is wall or virtual. A virtual clock jumps straight to the next
	// wake time when the scheduler runs headless.
	Clock string `toml:"clock"`
}

type WindowConfig struct {
	Width     int32  `toml:"width"`
	Height    int32  `toml:"height"`
	Title     string `toml:"title"`
	TargetFPS int32  `toml:"target_fps"`
}

type ScriptsConfig struct {
	TestDir string `toml:"test_dir"`
	Pattern string `toml:"pattern"`
}

func Default() Config {
	return Config{
		Log:       LogConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{StagnationLimit: 200, Clock: "wall"},
		Window:    WindowConfig{Width: 1280, Height: 720, Title: "BlockEngine", TargetFPS: 60},
		Scripts:   ScriptsConfig{TestDir: "tests", Pattern: "*.lua"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Unknown keys are reported through logger and otherwise ignored.
func Load(path string, logger *slog.Logger) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return Parse(string(data), logger)
}

func Parse(data string, logger *slog.Logger) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if logger != nil {
		for _, key := range md.Undecoded() {
			logger.Warn("unknown config key", "key", key.String())
		}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	switch c.Scheduler.Clock {
	case "wall", "virtual":
	default:
		errs = append(errs, fmt.Errorf("scheduler.clock: unknown clock %q", c.Scheduler.Clock))
	}
	if c.Scheduler.StagnationLimit <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.stagnation_limit: must be positive"))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: size must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps Log.Level to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
