// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

// CoordScale converts the receiver's deg×1e7 integers to degrees.
const CoordScale = 1e-7

// Fix represents a single PVT fix suitable for the console, JSON and MQTT.
type Fix struct {
	Time       time.Time `json:"time,omitempty"` // UTC, zero if not yet resolved
	Latitude   float64   `json:"lat"`            // decimal degrees
	Longitude  float64   `json:"lon"`            // decimal degrees
	Heading    int32     `json:"heading"`        // head of motion, deg×1e5 as reported
	SpeedMPS   float64   `json:"speed_mps"`      // ground speed
	AltitudeM  float64   `json:"alt_m"`          // above mean sea level
	FixType    uint8     `json:"fix_type"`
	Satellites uint8     `json:"sats"`
	Valid      bool      `json:"valid"`
}

// FromPVT converts a decoded NAV-PVT into a Fix.
func FromPVT(p ubx.NavPVT) Fix {
	f := Fix{
		Latitude:   float64(p.Lat) * CoordScale,
		Longitude:  float64(p.Lon) * CoordScale,
		Heading:    p.HeadMot,
		SpeedMPS:   float64(p.GSpeed) / 1000,
		AltitudeM:  float64(p.HMSL) / 1000,
		FixType:    p.FixType,
		Satellites: p.NumSV,
		Valid:      p.FixOK(),
	}
	if t, ok := p.Time(); ok {
		f.Time = t
	}
	return f
}

// HeadingDegrees returns the heading in degrees.
func (f Fix) HeadingDegrees() float64 {
	return float64(f.Heading) * 1e-5
}

// ConsoleLine renders the fix the way the serial console prints it. The
// log tools read this format back with ParseLine.
func (f Fix) ConsoleLine() string {
	return fmt.Sprintf(" Latitude: %.7f Long: %.7f Heading: %d", f.Latitude, f.Longitude, f.Heading)
}

// ErrBadLine is returned for lines that are not position records.
var ErrBadLine = errors.New("not a position line")

// ParseLine reads a console line ("Latitude: <deg> Long: <deg> [Heading: <n>]").
// Values sit at every second whitespace separated field.
func ParseLine(line string) (Fix, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != "Latitude:" || fields[2] != "Long:" {
		return Fix{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Fix{}, fmt.Errorf("latitude %q: %w", fields[1], err)
	}
	lon, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Fix{}, fmt.Errorf("longitude %q: %w", fields[3], err)
	}
	f := Fix{Latitude: lat, Longitude: lon, Valid: true}
	if len(fields) >= 6 && fields[4] == "Heading:" {
		h, err := strconv.ParseInt(fields[5], 10, 32)
		if err != nil {
			return Fix{}, fmt.Errorf("heading %q: %w", fields[5], err)
		}
		f.Heading = int32(h)
	}
	return f, nil
}

// ParseRawLine reads the older log format where latitude and longitude were
// printed as raw deg×1e7 integers in fields 1 and 3.
func ParseRawLine(line string) (Fix, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Fix{}, fmt.Errorf("%w: %q", ErrBadLine, line)
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Fix{}, fmt.Errorf("latitude %q: %w", fields[1], err)
	}
	lon, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return Fix{}, fmt.Errorf("longitude %q: %w", fields[3], err)
	}
	return Fix{Latitude: lat * CoordScale, Longitude: lon * CoordScale, Valid: true}, nil
}
