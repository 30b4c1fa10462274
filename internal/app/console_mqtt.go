// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/kart_gnss/internal/config"
	"github.com/relabs-tech/kart_gnss/internal/gps"
)

// RunConsoleMQTT subscribes to the fix topic of a running reader and prints
// every fix in console format until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg config.MQTTConfig, w io.Writer) error {
	if cfg.Broker == "" {
		return errors.New("mqtt.broker is not configured")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID + "-monitor")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Infof("monitor: connected to MQTT broker at %s", cfg.Broker)

	var mu sync.Mutex
	token := client.Subscribe(cfg.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		mu.Lock()
		defer mu.Unlock()
		if err := printFixMessage(w, msg.Payload()); err != nil {
			log.Warnf("monitor: %v", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return token.Error()
	}
	log.Infof("monitor: subscribed to %s", cfg.Topic)

	<-ctx.Done()

	log.Info("monitor: shutting down")
	client.Disconnect(250)
	return nil
}

func printFixMessage(w io.Writer, payload []byte) error {
	var f gps.Fix
	if err := json.Unmarshal(payload, &f); err != nil {
		return fmt.Errorf("fix unmarshal error: %w", err)
	}
	_, err := fmt.Fprintln(w, f.ConsoleLine())
	return err
}
