// Copyright 2024 The Osprey Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the machine configuration: defaults, an
// optional TOML file, and flag overrides, in that order.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"
	"github.com/osprey-os/osprey/runos/flag"
)

// Config configures one machine.
type Config struct {
	// Init is the image booted as the init process.
	Init string `toml:"init"`

	// MemoryFrames sizes the physical frame pool.
	MemoryFrames int `toml:"memory_frames"`

	// Input is fed to the console as terminal input.
	Input string `toml:"input"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`

	// LogFilename redirects logs from stderr to a file.
	LogFilename string `toml:"log"`

	// LogFormat is "text" or "json".
	LogFormat string `toml:"log_format"`

	// WatchdogSeconds bounds a machine run; 0 disables the watchdog.
	WatchdogSeconds int `toml:"watchdog_seconds"`
}

var defaultConfig = &Config{
	Init:            "hello",
	MemoryFrames:    16384,
	LogFormat:       "text",
	WatchdogSeconds: 30,
}

// Default returns a fresh copy of the built-in defaults; callers may
// mutate it freely.
func Default() *Config {
	return deepcopy.Copy(defaultConfig).(*Config)
}

// RegisterFlags registers the flags used to populate a Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "path to a TOML configuration file applied under flag overrides.")
	flagSet.String("init", defaultConfig.Init, "image booted as the init process.")
	flagSet.Int("memory-frames", defaultConfig.MemoryFrames, "number of physical frames the machine owns.")
	flagSet.String("input", "", "bytes fed to the console as terminal input.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path logs are written to, default is stderr.")
	flagSet.String("log-format", defaultConfig.LogFormat, "log format: text (default) or json.")
	flagSet.Int("watchdog-seconds", defaultConfig.WatchdogSeconds, "abort a machine run that exceeds this many seconds; 0 disables.")
}

// NewFromFlags builds a Config: defaults, then the TOML file named by
// --config if any, then explicitly-set flags.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := Default()
	if f := flagSet.Lookup("config"); f != nil {
		if path, _ := flag.Get(f.Value).(string); path != "" {
			if _, err := toml.DecodeFile(path, conf); err != nil {
				return nil, fmt.Errorf("loading config %q: %w", path, err)
			}
		}
	}
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "init":
			conf.Init = flag.Get(f.Value).(string)
		case "memory-frames":
			conf.MemoryFrames = flag.Get(f.Value).(int)
		case "input":
			conf.Input = flag.Get(f.Value).(string)
		case "debug":
			conf.Debug = flag.Get(f.Value).(bool)
		case "log":
			conf.LogFilename = flag.Get(f.Value).(string)
		case "log-format":
			conf.LogFormat = flag.Get(f.Value).(string)
		case "watchdog-seconds":
			conf.WatchdogSeconds = flag.Get(f.Value).(int)
		}
	})
	if conf.MemoryFrames < 16 {
		return nil, fmt.Errorf("memory-frames %d is too small to boot", conf.MemoryFrames)
	}
	if conf.LogFormat != "text" && conf.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q, must be 'text' or 'json'", conf.LogFormat)
	}
	return conf, nil
}
