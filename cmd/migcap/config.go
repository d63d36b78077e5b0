package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.jpl.nasa.gov/bdube/migcap/acquire"
	"github.jpl.nasa.gov/bdube/migcap/imgrec"
)

// ConfigFileName is the default config file
var ConfigFileName = "migcap.yml"

type feature struct {
	// Name is the SDK feature name
	Name string `yaml:"Name" koanf:"Name"`

	// Value is written to it at startup
	Value float64 `yaml:"Value" koanf:"Value"`
}

type monitorConfig struct {
	// Addr is the listen address of the HTTP monitor, empty to disable it
	Addr string `yaml:"Addr" koanf:"Addr"`
}

type simConfig struct {
	Width   int `yaml:"Width" koanf:"Width"`
	Height  int `yaml:"Height" koanf:"Height"`
	Cameras int `yaml:"Cameras" koanf:"Cameras"`
}

type config struct {
	SDK           string        `yaml:"SDK" koanf:"SDK"`
	CameraID      string        `yaml:"CameraID" koanf:"CameraID"`
	OpenRetry     string        `yaml:"OpenRetry" koanf:"OpenRetry"`
	Timeout       string        `yaml:"Timeout" koanf:"Timeout"`
	Exposure      feature       `yaml:"Exposure" koanf:"Exposure"`
	Gain          feature       `yaml:"Gain" koanf:"Gain"`
	Inspect       []string      `yaml:"Inspect" koanf:"Inspect"`
	ImageRoot     string        `yaml:"ImageRoot" koanf:"ImageRoot"`
	TimestampRoot string        `yaml:"TimestampRoot" koanf:"TimestampRoot"`
	Format        string        `yaml:"Format" koanf:"Format"`
	Display       bool          `yaml:"Display" koanf:"Display"`
	WindowTitle   string        `yaml:"WindowTitle" koanf:"WindowTitle"`
	MaxFrames     int           `yaml:"MaxFrames" koanf:"MaxFrames"`
	MaxFPS        float64       `yaml:"MaxFPS" koanf:"MaxFPS"`
	LogLevel      string        `yaml:"LogLevel" koanf:"LogLevel"`
	Monitor       monitorConfig `yaml:"Monitor" koanf:"Monitor"`
	Sim           simConfig     `yaml:"Sim" koanf:"Sim"`
}

func defaults() config {
	s := acquire.DefaultSettings()
	return config{
		SDK:           "vimba",
		OpenRetry:     "0s",
		Timeout:       s.Timeout.String(),
		Exposure:      feature(s.Exposure),
		Gain:          feature(s.Gain),
		Inspect:       s.Inspect,
		ImageRoot:     s.ImageRoot,
		TimestampRoot: s.TimestampRoot,
		Format:        string(s.Format),
		Display:       true,
		WindowTitle:   "Frame Window (Press 'Enter' to quit)",
		LogLevel:      "info",
		Sim:           simConfig{Width: 640, Height: 480, Cameras: 1}}
}

// loadConfig layers the file at path over the defaults.  A missing file is
// not an error.
func loadConfig(path string) (config, error) {
	k := koanf.New(".")
	cfg := config{}
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return cfg, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") { // file missing, who cares
			return cfg, fmt.Errorf("error loading config: %w", err)
		}
	}
	err := k.Unmarshal("", &cfg)
	return cfg, err
}

// settings validates the config and converts it for the capture session
func (c config) settings() (acquire.Settings, error) {
	s := acquire.Settings{
		CameraID:      c.CameraID,
		Exposure:      acquire.FeatureSet(c.Exposure),
		Gain:          acquire.FeatureSet(c.Gain),
		Inspect:       c.Inspect,
		ImageRoot:     c.ImageRoot,
		TimestampRoot: c.TimestampRoot,
		MaxFrames:     c.MaxFrames,
		MaxFPS:        c.MaxFPS}
	var err error
	if s.OpenRetry, err = parseDuration("OpenRetry", c.OpenRetry); err != nil {
		return s, err
	}
	if s.Timeout, err = parseDuration("Timeout", c.Timeout); err != nil {
		return s, err
	}
	if s.Timeout <= 0 {
		return s, fmt.Errorf("Timeout must be positive, got %s", c.Timeout)
	}
	if s.Format, err = imgrec.ParseFormat(c.Format); err != nil {
		return s, err
	}
	if s.MaxFrames < 0 || s.MaxFPS < 0 {
		return s, fmt.Errorf("MaxFrames and MaxFPS must not be negative")
	}
	return s, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
