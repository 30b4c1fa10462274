// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

func TestFromPVT(t *testing.T) {
	p := ubx.NavPVT{
		Year: 2024, Month: 4, Day: 12, Hour: 15, Min: 30, Sec: 1,
		Valid:   ubx.ValidDate | ubx.ValidTime,
		FixType: ubx.Fix3D,
		Flags:   ubx.FlagGNSSFixOK,
		NumSV:   9,
		Lat:     332131000,
		Lon:     -875443036,
		HMSL:    75300,
		GSpeed:  8450,
		HeadMot: 18012345,
	}
	f := FromPVT(p)
	assert.InDelta(t, 33.2131, f.Latitude, 1e-9)
	assert.InDelta(t, -87.5443036, f.Longitude, 1e-9)
	assert.Equal(t, int32(18012345), f.Heading)
	assert.InDelta(t, 180.12345, f.HeadingDegrees(), 1e-9)
	assert.InDelta(t, 8.45, f.SpeedMPS, 1e-9)
	assert.InDelta(t, 75.3, f.AltitudeM, 1e-9)
	assert.True(t, f.Valid)
	assert.Equal(t, time.Date(2024, 4, 12, 15, 30, 1, 0, time.UTC), f.Time)
}

func TestFromPVTWithoutFix(t *testing.T) {
	f := FromPVT(ubx.NavPVT{})
	assert.False(t, f.Valid)
	assert.True(t, f.Time.IsZero())
}

func TestConsoleLine(t *testing.T) {
	f := Fix{Latitude: 33.2131, Longitude: -87.5443036, Heading: 18012345}
	assert.Equal(t, " Latitude: 33.2131000 Long: -87.5443036 Heading: 18012345", f.ConsoleLine())
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Fix
		wantErr bool
	}{
		{
			name: "console output",
			line: " Latitude: 33.2131000 Long: -87.5443036 Heading: 18012345",
			want: Fix{Latitude: 33.2131, Longitude: -87.5443036, Heading: 18012345, Valid: true},
		},
		{
			name: "converted log without heading",
			line: "Latitude: 33.2131 Long: -87.5443036",
			want: Fix{Latitude: 33.2131, Longitude: -87.5443036, Valid: true},
		},
		{
			name:    "garbage",
			line:    "u-blox GNSS not detected at default I2C address. Retrying...",
			wantErr: true,
		},
		{
			name:    "bad number",
			line:    "Latitude: north Long: -87.5",
			wantErr: true,
		},
		{
			name:    "bad heading",
			line:    "Latitude: 33.2 Long: -87.5 Heading: east",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineRoundTrip(t *testing.T) {
	in := Fix{Latitude: -12.3456789, Longitude: 45.6789012, Heading: -42, Valid: true}
	out, err := ParseLine(in.ConsoleLine())
	require.NoError(t, err)
	assert.InDelta(t, in.Latitude, out.Latitude, 1e-9)
	assert.InDelta(t, in.Longitude, out.Longitude, 1e-9)
	assert.Equal(t, in.Heading, out.Heading)
}

func TestParseRawLine(t *testing.T) {
	f, err := ParseRawLine("Lat: 332131000 Long: -875443036 Heading: 0")
	require.NoError(t, err)
	assert.InDelta(t, 33.2131, f.Latitude, 1e-9)
	assert.InDelta(t, -87.5443036, f.Longitude, 1e-9)

	_, err = ParseRawLine("Lat: 1")
	assert.True(t, errors.Is(err, ErrBadLine))

	_, err = ParseRawLine("Lat: x Long: 1")
	assert.Error(t, err)
}
