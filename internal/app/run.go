// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/kart_gnss/internal/config"
	"github.com/relabs-tech/kart_gnss/internal/ublox"
	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

// setupLogging applies the log section of the configuration. debug forces
// the debug level.
func setupLogging(cfg config.LogConfig, debug bool) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// serialPort picks the receiver interface a serial device is wired to.
// USB CDC devices enumerate as ttyACM.
func serialPort(name string) ubx.Port {
	if strings.Contains(name, "ttyACM") {
		return ubx.PortUSB
	}
	return ubx.PortUART1
}

func logNMEA(s nmea.Sentence) {
	switch m := s.(type) {
	case nmea.GGA:
		log.Debugf("nmea: GGA lat=%.7f lon=%.7f sats=%d quality=%s", m.Latitude, m.Longitude, m.NumSatellites, m.FixQuality)
	case nmea.RMC:
		log.Debugf("nmea: RMC lat=%.7f lon=%.7f course=%.1f validity=%s", m.Latitude, m.Longitude, m.Course, m.Validity)
	default:
		log.Debugf("nmea: %s", s.DataType())
	}
}

// RunPVTReader wires the receiver, console and optional sinks from cfg and
// polls until ctx is done.
func RunPVTReader(ctx context.Context, cfg *config.Config) error {
	console, err := openConsole(cfg.Console)
	if err != nil {
		return err
	}
	defer console.Close()

	var bus i2c.BusCloser
	if cfg.GNSS.Transport == "i2c" || cfg.Display.Enabled {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("periph host init: %w", err)
		}
		bus, err = i2creg.Open(cfg.GNSS.I2CBus)
		if err != nil {
			return fmt.Errorf("open i2c bus %q: %w", cfg.GNSS.I2CBus, err)
		}
		defer bus.Close()
		log.Infof("i2c: opened bus %s", bus)
	}

	var (
		t           ublox.Transport
		port        ubx.Port
		notDetected string
	)
	switch cfg.GNSS.Transport {
	case "serial":
		st, err := ublox.OpenSerial(cfg.GNSS.SerialPort, cfg.GNSS.SerialBaud)
		if err != nil {
			return err
		}
		t, port = st, serialPort(cfg.GNSS.SerialPort)
		notDetected = fmt.Sprintf("u-blox GNSS not detected on %s. Retrying...", cfg.GNSS.SerialPort)
	default:
		t, port = ublox.NewI2CTransport(bus, cfg.GNSS.I2CAddr), ubx.PortI2C
		if cfg.GNSS.I2CAddr != ublox.DefaultI2CAddr {
			notDetected = fmt.Sprintf("u-blox GNSS not detected at I2C address 0x%02X. Retrying...", cfg.GNSS.I2CAddr)
		}
	}
	log.Infof("gnss: using %s", t)

	dev := ublox.New(t, &ublox.Opts{
		MaxWait: cfg.MaxWait(),
		OnNMEA:  logNMEA,
	})
	defer dev.Close()

	sinks, err := buildSinks(ctx, cfg, bus, console)
	if err != nil {
		return err
	}

	// validated by config.Load
	protos, _ := ubx.ParseProtocols(cfg.GNSS.Output)
	layers, _ := ubx.ParseLayers(cfg.GNSS.Layers)

	reader := NewPVTReader(dev, console, ReaderOpts{
		StartupDelay: cfg.StartupDelay(),
		RetryDelay:   cfg.RetryDelay(),
		Port:         port,
		Output:       protos,
		Layers:       layers,
		NotDetected:  notDetected,
	}, sinks...)
	defer reader.Close()

	return reader.Run(ctx)
}

// buildSinks creates every sink enabled in cfg. Optional outputs that fail to
// start are logged and skipped; the console keeps working without them.
func buildSinks(ctx context.Context, cfg *config.Config, bus i2c.Bus, console io.Writer) ([]Sink, error) {
	var sinks []Sink

	// the only hard failure, so it goes first and nothing needs closing
	if cfg.Track.File != "" {
		s, err := loadTrackSink(cfg.Track, console)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	if cfg.MQTT.Broker != "" {
		s, err := newMQTTSink(cfg.MQTT)
		if err != nil {
			log.Warnf("mqtt: disabled, connect to %s failed: %v", cfg.MQTT.Broker, err)
		} else {
			sinks = append(sinks, s)
		}
	}

	if cfg.Display.Enabled {
		s, err := newDisplaySink(bus, cfg.Display.I2CAddr)
		if err != nil {
			log.Warnf("display: disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}

	if cfg.Web.Port > 0 {
		hub := newWebHub()
		go func() {
			if err := hub.Serve(ctx, fmt.Sprintf(":%d", cfg.Web.Port)); err != nil {
				log.Errorf("web: server stopped: %v", err)
			}
		}()
		sinks = append(sinks, hub)
	}
	return sinks, nil
}
