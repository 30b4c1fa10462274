// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kart_gnss/internal/config"
	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

func TestSerialPort(t *testing.T) {
	assert.Equal(t, ubx.PortUSB, serialPort("/dev/ttyACM0"))
	assert.Equal(t, ubx.PortUART1, serialPort("/dev/ttyAMA0"))
	assert.Equal(t, ubx.PortUART1, serialPort("/dev/serial0"))
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)
	defer log.SetFormatter(&log.TextFormatter{})

	require.NoError(t, setupLogging(config.LogConfig{Level: "warn", Format: "json"}, false))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	assert.True(t, isJSON)

	require.NoError(t, setupLogging(config.LogConfig{Level: "warn", Format: "text"}, true))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	assert.Error(t, setupLogging(config.LogConfig{Level: "loud"}, false))
}

func TestBuildSinksNoneByDefault(t *testing.T) {
	sinks, err := buildSinks(context.Background(), config.Default(), nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Empty(t, sinks)
}

func TestBuildSinksTrack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lap.txt")
	require.NoError(t, os.WriteFile(path, []byte("Latitude: 33.214 Long: -87.545\n"), 0o644))

	cfg := config.Default()
	cfg.Track.File = path
	sinks, err := buildSinks(context.Background(), cfg, nil, &bytes.Buffer{})
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, "track", sinks[0].Name())
}

func TestBuildSinksMissingTrackFails(t *testing.T) {
	cfg := config.Default()
	cfg.Track.File = filepath.Join(t.TempDir(), "missing.txt")
	_, err := buildSinks(context.Background(), cfg, nil, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestLogNMEAHandlesSentenceTypes(t *testing.T) {
	for _, raw := range []string{
		"$GPGGA,092750.000,5321.6802,N,00630.3372,W,1,8,1.03,61.7,M,55.2,M,,*76",
		"$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70",
		"$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39",
	} {
		s, err := nmea.Parse(raw)
		require.NoError(t, err, raw)
		assert.NotPanics(t, func() { logNMEA(s) })
	}
}
