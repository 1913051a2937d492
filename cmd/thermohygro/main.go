// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// thermohygro reads a DHT11 or DHT22 sensor and shows temperature and
// humidity on a 16x2 LCD behind a PCF8574 backpack, or on the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/thermohygro/dht"
	"github.com/GermanBionicSystems/thermohygro/hd44780"
	"github.com/GermanBionicSystems/thermohygro/hygrometer"
	"github.com/GermanBionicSystems/thermohygro/pcf857x"
	"github.com/GermanBionicSystems/thermohygro/textscreen"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

type flags struct {
	config     string
	logLevel   string
	line       int
	variant    string
	display    string
	interval   time.Duration
	fractional bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:          "thermohygro",
		Short:        "DHT11/DHT22 thermohygrometer with a character display",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&f.config, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().IntVar(&f.line, "line", 0, "GPIO number of the sensor data line")
	cmd.PersistentFlags().StringVar(&f.variant, "variant", "", "sensor model: dht11 or dht22")
	cmd.PersistentFlags().BoolVar(&f.fractional, "fractional", false, "add the DHT11 decimal bytes to the reading")

	run := &cobra.Command{
		Use:   "run",
		Short: "Read the sensor forever and show the result on the display",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, log, err := setup(c, f)
			if err != nil {
				return err
			}
			return runStation(cfg, log)
		},
	}
	run.Flags().StringVar(&f.display, "display", "", "display kind: lcd or console")
	run.Flags().DurationVar(&f.interval, "interval", 0, "time between reads; 0 uses the sensor minimum")

	read := &cobra.Command{
		Use:   "read",
		Short: "Read the sensor once and print the result",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, log, err := setup(c, f)
			if err != nil {
				return err
			}
			if _, err := host.Init(); err != nil {
				return errors.Wrap(err, "host init")
			}
			s, err := openSensor(cfg, log)
			if err != nil {
				return err
			}
			r, err := s.Read()
			if err != nil {
				log.WithField("result", hygrometer.Result(err)).Error(err)
				return err
			}
			fmt.Println(r)
			return nil
		},
	}

	scan := &cobra.Command{
		Use:   "scan",
		Short: "List the I²C devices and the LCD backpack address",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, log, err := setup(c, f)
			if err != nil {
				return err
			}
			if _, err := host.Init(); err != nil {
				return errors.Wrap(err, "host init")
			}
			bus, err := i2creg.Open(cfg.Display.Bus)
			if err != nil {
				return errors.Wrap(err, "open I²C bus")
			}
			defer bus.Close()
			for _, a := range pcf857x.Scan(bus) {
				fmt.Printf("0x%02x\n", a)
			}
			addr, err := pcf857x.Discover(bus)
			if err != nil {
				return err
			}
			log.Infof("LCD backpack at 0x%02x on %s", addr, bus)
			return nil
		},
	}

	cmd.AddCommand(run, read, scan)
	return cmd
}

// setup loads the configuration, applies the flags over it and builds the
// logger.
func setup(c *cobra.Command, f *flags) (*hygrometer.Config, *logrus.Logger, error) {
	cfg := hygrometer.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = hygrometer.LoadConfig(f.config); err != nil {
			return nil, nil, err
		}
	}
	if c.Flags().Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if c.Flags().Changed("line") {
		cfg.Sensor.Line = f.line
	}
	if c.Flags().Changed("variant") {
		cfg.Sensor.Variant = f.variant
	}
	if c.Flags().Changed("fractional") {
		cfg.Sensor.IncludeFractional = f.fractional
	}
	if c.Flags().Changed("display") {
		cfg.Display.Kind = f.display
	}
	if c.Flags().Changed("interval") {
		cfg.Interval = f.interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	log, err := hygrometer.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return &cfg, log, nil
}

func openSensor(cfg *hygrometer.Config, log logrus.FieldLogger) (*dht.Dev, error) {
	v, err := cfg.Variant()
	if err != nil {
		return nil, err
	}
	opts := dht.DefaultOpts
	opts.Logger = log
	opts.IncludeFractional = cfg.Sensor.IncludeFractional
	d := dht.NewByNumber(cfg.Sensor.Line, v, &opts)
	// A bad line is reported on every Read; the station keeps going so the
	// error stays visible on the display.
	if err := d.ConfigErr(); err != nil {
		log.Warnf("sensor unusable: %v", err)
	}
	return d, nil
}

type haltDisplay interface {
	display.TextDisplay
	Halt() error
}

// openDisplay returns the display and a function releasing it.
func openDisplay(cfg *hygrometer.Config, log logrus.FieldLogger) (haltDisplay, func(), error) {
	switch cfg.Display.Kind {
	case hygrometer.DisplayConsole:
		d := textscreen.New(&textscreen.Opts{Rows: cfg.Display.Rows, Cols: cfg.Display.Cols})
		return d, func() {}, nil
	case hygrometer.DisplayLCD:
		bus, err := i2creg.Open(cfg.Display.Bus)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open I²C bus")
		}
		addr := cfg.Display.Address
		if addr == 0 {
			if addr, err = pcf857x.Discover(bus); err != nil {
				_ = bus.Close()
				return nil, nil, err
			}
			log.Infof("LCD backpack found at 0x%02x", addr)
		}
		d, err := hd44780.NewPCF857xBackpack(bus, addr, cfg.Display.Rows, cfg.Display.Cols)
		if err != nil {
			_ = bus.Close()
			return nil, nil, errors.Wrapf(err, "LCD at 0x%02x", addr)
		}
		return d, func() { _ = bus.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown display kind %q", cfg.Display.Kind)
	}
}

func runStation(cfg *hygrometer.Config, log *logrus.Logger) error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "host init")
	}
	sensor, err := openSensor(cfg, log)
	if err != nil {
		return err
	}
	defer sensor.Halt()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	disp, closeDisplay, err := openDisplay(cfg, log)
	if err != nil {
		// Like the firmware, keep reporting until stopped.
		return hygrometer.NewStation(cfg, sensor, nil, log).Fail(ctx, err)
	}
	defer closeDisplay()

	m, err := hygrometer.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}
	st := hygrometer.NewStation(cfg, sensor, disp, log)
	st.Metrics = m
	if ts, ok := disp.(*textscreen.Dev); ok && cfg.Display.Snapshot != "" {
		path := cfg.Display.Snapshot
		st.OnUpdate = func() error {
			return ts.SavePNG(path)
		}
	}

	log.WithFields(logrus.Fields{
		"sensor":   sensor.String(),
		"display":  disp.String(),
		"interval": st.Interval,
	}).Info("starting")
	err = st.Run(ctx)
	if herr := disp.Halt(); herr != nil {
		log.Warnf("halt display: %v", herr)
	}
	if errors.Is(err, context.Canceled) {
		log.Info("stopped")
		return nil
	}
	return err
}
