// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/kart_gnss/internal/config"
	"github.com/relabs-tech/kart_gnss/internal/gps"
	"github.com/relabs-tech/kart_gnss/internal/track"
)

// ---- console ----

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// openConsole returns stdout, or the configured serial tty at its baud rate.
func openConsole(cfg config.ConsoleConfig) (io.WriteCloser, error) {
	if cfg.Device == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        cfg.Device,
		BaudRate:        uint(cfg.Baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		return nil, fmt.Errorf("open console %s: %w", cfg.Device, err)
	}
	log.Infof("console: writing to %s at %d baud", cfg.Device, cfg.Baud)
	return port, nil
}

// ---- MQTT ----

// mqttPublisher is the subset of mqtt.Client the sink uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type mqttSink struct {
	client mqttPublisher
	topic  string
}

// newMQTTSink connects to the broker and publishes fixes as retained JSON.
func newMQTTSink(cfg config.MQTTConfig) (*mqttSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Infof("mqtt: connected to broker at %s, publishing to %s", cfg.Broker, cfg.Topic)
	return &mqttSink{client: client, topic: cfg.Topic}, nil
}

func (s *mqttSink) Name() string { return "mqtt" }

func (s *mqttSink) Publish(f gps.Fix) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal fix: %w", err)
	}
	token := s.client.Publish(s.topic, 0, true, payload)
	token.Wait()
	return token.Error()
}

func (s *mqttSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

// ---- on-track check ----

// trackSink prints whether each fix lies on the reference lap.
type trackSink struct {
	track      *track.Track
	toleranceM float64
	out        io.Writer
}

func newTrackSink(t *track.Track, toleranceM float64, out io.Writer) *trackSink {
	return &trackSink{track: t, toleranceM: toleranceM, out: out}
}

// loadTrackSink reads the reference lap named in cfg.
func loadTrackSink(cfg config.TrackConfig, out io.Writer) (*trackSink, error) {
	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer f.Close()

	b := cfg.Boundary
	t, err := track.Load(f, track.NewBoundary(b.MinLat, b.MaxLat, b.MinLon, b.MaxLon))
	if err != nil {
		return nil, err
	}
	log.Infof("track: loaded %d reference points from %s (%d outside boundary)", t.Len(), cfg.File, t.Outside())
	return newTrackSink(t, cfg.ToleranceM, out), nil
}

func (s *trackSink) Name() string { return "track" }

func (s *trackSink) Publish(f gps.Fix) error {
	_, err := fmt.Fprintln(s.out, onTrackMessage(s.track.OnTrack(track.Point(f), s.toleranceM)))
	return err
}

func (s *trackSink) Close() error { return nil }

func onTrackMessage(on bool) string {
	if on {
		return "Kart is on track."
	}
	return "Kart is off track."
}
