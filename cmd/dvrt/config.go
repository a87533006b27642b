package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	envEngine = "DVRT_ENGINE"
	envAddr   = "DVRT_ADDR"
)

// Config represents the dvrt configuration file (~/.config/dvrt/config.yaml).
// Numeric fields are pointers so we can distinguish "not set" from zero
// values.
type Config struct {
	Library   string `yaml:"library"`
	Engine    string `yaml:"engine"`
	ModelsDir string `yaml:"models_dir"`
	Model     string `yaml:"model"`

	MemorySize *int64 `yaml:"memory_size"`
	CacheSize  *int64 `yaml:"cache_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dvrt", "config.yaml")
}

// applyRuntimeConfig fills runtime and logging variables from the
// environment and the config file when the corresponding CLI flag was
// not explicitly set. Flags win over the environment, the environment
// wins over the file.
func applyRuntimeConfig(c *cli.Command, cfg Config) {
	if cfg.Library != "" && !c.IsSet("library") {
		libraryPath = cfg.Library
	}
	if !c.IsSet("engine") {
		if v := strings.TrimSpace(os.Getenv(envEngine)); v != "" {
			enginePlugin = v
		} else if cfg.Engine != "" {
			enginePlugin = cfg.Engine
		}
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.MemorySize != nil {
		memorySize = *cfg.MemorySize
	}
	if cfg.CacheSize != nil {
		cacheSize = *cfg.CacheSize
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies serve defaults on top of applyRuntimeConfig.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyRuntimeConfig(c, cfg)
	if !c.IsSet("addr") {
		if v := strings.TrimSpace(os.Getenv(envAddr)); v != "" {
			*addr = v
		} else if cfg.ServerAddress != "" {
			*addr = cfg.ServerAddress
		}
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
