package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration file (~/.config/sensibility/config.yaml).
// Values only apply to flags that were not set on the command line.
type Config struct {
	Architecture    string `yaml:"architecture"`
	WeightsForwards string `yaml:"weights_forwards"`
	Tokenizer       string `yaml:"tokenizer"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

// fileConfig is the configuration file read by the root Before hook.
var fileConfig Config

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sensibility", "config.yaml")
}

// readConfig parses the file at path. A missing file yields a zero Config.
func readConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies config file values into the flag variables whose
// flags were not explicitly set.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.Architecture != "" && !c.IsSet("architecture") {
		architecturePath = cfg.Architecture
	}
	if cfg.WeightsForwards != "" && !c.IsSet("weights-forwards") {
		weightsPath = cfg.WeightsForwards
	}
	if cfg.Tokenizer != "" && !c.IsSet("tokenizer") {
		tokenizerLine = cfg.Tokenizer
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
