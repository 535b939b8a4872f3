package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir    string `toml:"data_dir"`    // directory graph files live in
	GraphFile  string `toml:"graph_file"`  // file opened at startup, relative to DataDir unless absolute
	ListenAddr string `toml:"listen_addr"`
	LogLevel   string `toml:"log_level"`
	Save       Save   `toml:"save"`
}

type Save struct {
	// Token-bucket limits for the save endpoint. An editor autosaving on
	// every keystroke should be throttled here, not in the engine.
	RatePerSec float64 `toml:"rate_per_sec"`
	Burst      int     `toml:"burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:    "./graphs",
		GraphFile:  "default.db",
		ListenAddr: ":8080",
		LogLevel:   "info",
		Save: Save{
			RatePerSec: 10,
			Burst:      20,
		},
	}
}

// Load reads a TOML config file and fills in defaults for anything the
// file leaves unset. An empty path returns Default unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}

	if cfg.Save.RatePerSec <= 0 {
		cfg.Save.RatePerSec = 10
	}
	if cfg.Save.Burst <= 0 {
		cfg.Save.Burst = 20
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./graphs"
	}
	if cfg.GraphFile == "" {
		cfg.GraphFile = "default.db"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
