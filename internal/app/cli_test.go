// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:     "kart_gnss",
		Flags:    GlobalFlags(),
		Before:   Setup,
		Commands: Commands(),
		Writer:   out,
	}
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"run", "convert", "map", "track", "monitor"}, names)
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "data1.txt")
	out := filepath.Join(dir, "output_data1.txt")
	require.NoError(t, os.WriteFile(in, []byte("Latitude: 332131000 Long: -875450000 Heading: 0\n"), 0o644))

	var stdout bytes.Buffer
	err := testApp(&stdout).Run([]string{"kart_gnss", "convert", "--in", in, "--out", out})
	require.NoError(t, err)
	assert.Equal(t, "Output data has been written to "+out+"\n", stdout.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Latitude: 33.2131 Long: -87.545\n", string(data))
}

func TestTrackCommand(t *testing.T) {
	dir := t.TempDir()
	lap := filepath.Join(dir, "lap.txt")
	kart := filepath.Join(dir, "kart.txt")
	require.NoError(t, os.WriteFile(lap, []byte("Latitude: 33.214 Long: -87.545\n"), 0o644))
	require.NoError(t, os.WriteFile(kart, []byte("Latitude: 33.214 Long: -87.545\n"), 0o644))

	var stdout bytes.Buffer
	err := testApp(&stdout).Run([]string{"kart_gnss", "track", "--track", lap, "--kart", kart})
	require.NoError(t, err)
	assert.Equal(t,
		"Quadrant NW: 1 coordinates\n"+
			"Quadrant NE: 0 coordinates\n"+
			"Quadrant SW: 0 coordinates\n"+
			"Quadrant SE: 0 coordinates\n"+
			"Kart is on track.\n",
		stdout.String())
}

func TestMapCommandNeedsFile(t *testing.T) {
	var stdout bytes.Buffer
	app := testApp(&stdout)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run([]string{"kart_gnss", "map"})
	assert.Error(t, err)
}

func TestMapCommandRejectsHugeSize(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "log.txt")
	out := filepath.Join(dir, "route.png")
	require.NoError(t, os.WriteFile(in, []byte("Latitude: 33.214 Long: -87.545\n"), 0o644))

	var stdout bytes.Buffer
	err := testApp(&stdout).Run([]string{"kart_gnss", "map", "--out", out, "--size", "100000", in})
	assert.ErrorContains(t, err, "map size")
	assert.NoFileExists(t, out)
}
