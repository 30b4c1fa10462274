// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

// Config holds all application configuration values.
type Config struct {
	GNSS    GNSSConfig    `yaml:"gnss"`
	Console ConsoleConfig `yaml:"console"`
	Log     LogConfig     `yaml:"log"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Display DisplayConfig `yaml:"display"`
	Web     WebConfig     `yaml:"web"`
	Track   TrackConfig   `yaml:"track"`
}

type GNSSConfig struct {
	Transport  string `yaml:"transport"` // "i2c" or "serial"
	I2CBus     string `yaml:"i2c_bus"`   // periph bus name, "" = first available
	I2CAddr    uint16 `yaml:"i2c_addr"`
	SerialPort string `yaml:"serial_port"`
	SerialBaud int    `yaml:"serial_baud"`

	// Output protocols for the receiver port we talk on: "ubx", "nmea", "ubx+nmea".
	Output string `yaml:"output"`
	// Where the output setting is written: "ram", "ram+bbr", "ram+bbr+flash".
	Layers string `yaml:"layers"`

	RetryDelayMs   int `yaml:"retry_delay_ms"`
	StartupDelayMs int `yaml:"startup_delay_ms"`
	MaxWaitMs      int `yaml:"max_wait_ms"`
}

type ConsoleConfig struct {
	Device string `yaml:"device"` // "" = stdout
	Baud   int    `yaml:"baud"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // "" disables publishing
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	I2CAddr uint16 `yaml:"i2c_addr"`
}

type WebConfig struct {
	Port int `yaml:"port"` // 0 disables the web view
}

type TrackConfig struct {
	File       string   `yaml:"file"`
	ToleranceM float64  `yaml:"tolerance_m"`
	Boundary   Boundary `yaml:"boundary"`
}

// Boundary is the box that holds the reference track, in degrees.
type Boundary struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLon float64 `yaml:"max_lon"`
}

// Default returns the configuration used when a key is absent.
func Default() *Config {
	return &Config{
		GNSS: GNSSConfig{
			Transport:      "i2c",
			I2CAddr:        0x42,
			SerialPort:     "/dev/ttyACM0",
			SerialBaud:     38400,
			Output:         "ubx",
			Layers:         "ram",
			RetryDelayMs:   1000,
			StartupDelayMs: 1000,
			MaxWaitMs:      1100,
		},
		Console: ConsoleConfig{Baud: 115200},
		Log:     LogConfig{Level: "info", Format: "text"},
		MQTT:    MQTTConfig{ClientID: "kart-gnss", Topic: "kart/gnss/pvt"},
		Display: DisplayConfig{I2CAddr: 0x3C},
		Track: TrackConfig{
			ToleranceM: 2,
			// Hardaway Hall test loop
			Boundary: Boundary{
				MinLat: 33.212196,
				MaxLat: 33.214260,
				MinLon: -87.545644,
				MaxLon: -87.543037,
			},
		},
	}
}

// Package-level unexported variables for the singleton:
//   - globalConfig is only reachable through InitGlobal and Get.
//   - configOnce makes InitGlobal run once.
//   - configErr keeps the first load error for later InitGlobal calls.
//   - configMu lets Get readers run concurrently.
var (
	globalConfig *Config
	configErr    error
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file on top of Default.
// An empty path returns the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, cfg.validate()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, rejecting unknown keys, then validates.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.validate()
}

// validate checks ranges and enumerations.
func (c *Config) validate() error {
	switch c.GNSS.Transport {
	case "i2c":
		if c.GNSS.I2CAddr == 0 || c.GNSS.I2CAddr > 0x7F {
			return fmt.Errorf("gnss.i2c_addr must be a 7-bit address, got 0x%X", c.GNSS.I2CAddr)
		}
	case "serial":
		if c.GNSS.SerialPort == "" {
			return errors.New("gnss.serial_port is required for the serial transport")
		}
		if c.GNSS.SerialBaud <= 0 {
			return fmt.Errorf("gnss.serial_baud must be positive, got %d", c.GNSS.SerialBaud)
		}
	default:
		return fmt.Errorf("gnss.transport must be i2c or serial, got %q", c.GNSS.Transport)
	}
	if _, err := ubx.ParseProtocols(c.GNSS.Output); err != nil {
		return fmt.Errorf("gnss.output: %w", err)
	}
	if _, err := ubx.ParseLayers(c.GNSS.Layers); err != nil {
		return fmt.Errorf("gnss.layers: %w", err)
	}
	if c.GNSS.RetryDelayMs <= 0 {
		return fmt.Errorf("gnss.retry_delay_ms must be positive, got %d", c.GNSS.RetryDelayMs)
	}
	if c.GNSS.StartupDelayMs < 0 {
		return fmt.Errorf("gnss.startup_delay_ms must not be negative, got %d", c.GNSS.StartupDelayMs)
	}
	if c.GNSS.MaxWaitMs <= 0 {
		return fmt.Errorf("gnss.max_wait_ms must be positive, got %d", c.GNSS.MaxWaitMs)
	}
	if c.Console.Device != "" && c.Console.Baud <= 0 {
		return fmt.Errorf("console.baud must be positive, got %d", c.Console.Baud)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return errors.New("mqtt.topic is required when mqtt.broker is set")
	}
	if c.Display.Enabled && (c.Display.I2CAddr == 0 || c.Display.I2CAddr > 0x7F) {
		return fmt.Errorf("display.i2c_addr must be a 7-bit address, got 0x%X", c.Display.I2CAddr)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port out of range: %d", c.Web.Port)
	}
	if c.Track.ToleranceM <= 0 {
		return fmt.Errorf("track.tolerance_m must be positive, got %g", c.Track.ToleranceM)
	}
	b := c.Track.Boundary
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("track.boundary is empty or inverted: %+v", b)
	}
	return nil
}

// RetryDelay is the pause between failed detection attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.GNSS.RetryDelayMs) * time.Millisecond
}

// StartupDelay is the pause before the first detection attempt.
func (c *Config) StartupDelay() time.Duration {
	return time.Duration(c.GNSS.StartupDelayMs) * time.Millisecond
}

// MaxWait bounds one receiver request/response exchange.
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.GNSS.MaxWaitMs) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads anything; later calls ignore configPath and
// return the first call's error, so a failed load stays failed.
func InitGlobal(configPath string) error {
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, configErr = Load(configPath)
	})
	configMu.RLock()
	defer configMu.RUnlock()
	return configErr
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
