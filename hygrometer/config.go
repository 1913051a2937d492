// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hygrometer

import (
	"os"
	"time"

	"github.com/GermanBionicSystems/thermohygro/dht"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Display kinds.
const (
	DisplayLCD     = "lcd"
	DisplayConsole = "console"
)

// Config is the station configuration, usually loaded from YAML.
type Config struct {
	Sensor  SensorConfig  `yaml:"sensor"`
	Display DisplayConfig `yaml:"display"`
	// Interval between reads. Zero selects 1.5s for the DHT11 and 2.5s for
	// the DHT22.
	Interval time.Duration `yaml:"interval"`
	// StartupDelay is waited before anything is shown.
	StartupDelay time.Duration `yaml:"startup_delay"`
	// InitNotice is how long the initialization confirmation stays on
	// screen.
	InitNotice time.Duration `yaml:"init_notice"`
	// Splash is how long "LCD OK" stays on screen.
	Splash time.Duration `yaml:"splash"`
	// Settle lets the sensor stabilize after power up.
	Settle   time.Duration `yaml:"settle"`
	LogLevel string        `yaml:"log_level"`
}

// SensorConfig selects the sensor line and model.
type SensorConfig struct {
	Line              int    `yaml:"line"`
	Variant           string `yaml:"variant"`
	IncludeFractional bool   `yaml:"include_fractional"`
}

// DisplayConfig selects the display.
type DisplayConfig struct {
	Kind string `yaml:"kind"`
	// Bus is the I²C bus name for i2creg.Open; empty selects the first one.
	Bus string `yaml:"bus"`
	// Address of the backpack. Zero runs pcf857x.Discover.
	Address uint16 `yaml:"address"`
	Rows    int    `yaml:"rows"`
	Cols    int    `yaml:"cols"`
	// Snapshot is a PNG path rewritten after every update of a console
	// display. Empty disables it.
	Snapshot string `yaml:"snapshot"`
}

// DefaultConfig returns the configuration of the reference build: a DHT11 on
// GPIO15 and a 16x2 LCD backpack.
func DefaultConfig() Config {
	return Config{
		Sensor:       SensorConfig{Line: 15, Variant: "dht11"},
		Display:      DisplayConfig{Kind: DisplayLCD, Rows: 2, Cols: 16},
		StartupDelay: 5 * time.Second,
		InitNotice:   time.Second,
		Splash:       2 * time.Second,
		Settle:       2 * time.Second,
		LogLevel:     "info",
	}
}

// LoadConfig reads the YAML file at path over DefaultConfig and validates
// the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "load config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "load config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// Variant returns the parsed sensor model.
func (c *Config) Variant() (dht.Variant, error) {
	return dht.ParseVariant(c.Sensor.Variant)
}

// ReadInterval returns Interval, or the default of the sensor model if zero.
func (c *Config) ReadInterval() time.Duration {
	if c.Interval != 0 {
		return c.Interval
	}
	if v, _ := c.Variant(); v == dht.DHT22 {
		return 2500 * time.Millisecond
	}
	return 1500 * time.Millisecond
}

// Validate checks the configuration. The sensor line range is checked by
// dht.NewByNumber.
func (c *Config) Validate() error {
	v, err := c.Variant()
	if err != nil {
		return errors.Wrap(err, "sensor.variant")
	}
	if i := c.ReadInterval(); i < v.MinInterval() {
		return errors.Errorf("interval %s is below the %s minimum of %s", i, v, v.MinInterval())
	}
	switch c.Display.Kind {
	case DisplayLCD, DisplayConsole:
	default:
		return errors.Errorf("display.kind %q is not %q or %q", c.Display.Kind, DisplayLCD, DisplayConsole)
	}
	if c.Display.Rows < 1 || c.Display.Cols < 1 {
		return errors.Errorf("display geometry %dx%d is invalid", c.Display.Rows, c.Display.Cols)
	}
	if c.Display.Address > 0x7f {
		return errors.Errorf("display.address 0x%x is not a 7 bit address", c.Display.Address)
	}
	if c.StartupDelay < 0 || c.InitNotice < 0 || c.Splash < 0 || c.Settle < 0 {
		return errors.New("delays must not be negative")
	}
	return nil
}
