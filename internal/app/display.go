// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/kart_gnss/internal/gps"
)

const (
	displayW = 128
	displayH = 64
)

// panel is the part of ssd1306.Dev the sink draws through.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
	Halt() error
}

// displaySink shows the latest fix on a 128x64 SSD1306 sharing the GNSS bus.
type displaySink struct {
	dev panel
}

// addrBus pins every transaction to one address, so the display driver can
// live at whatever address the module is strapped to.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func newDisplaySink(bus i2c.Bus, addr uint16) (*displaySink, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: addr}, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Infof("display: initialized at 0x%02X", addr)

	s := &displaySink{dev: dev}
	if err := s.dev.Draw(dev.Bounds(), splashImage(), image.Point{}); err != nil {
		log.Warnf("display: error showing splash: %v", err)
	}
	return s, nil
}

func (s *displaySink) Name() string { return "display" }

func (s *displaySink) Publish(f gps.Fix) error {
	return s.dev.Draw(s.dev.Bounds(), fixImage(f), image.Point{})
}

func (s *displaySink) Close() error {
	return s.dev.Halt()
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayW, displayH))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// fixLines renders a fix as the four text rows of the display.
func fixLines(f gps.Fix) [4]string {
	latDir := "N"
	lat := f.Latitude
	if lat < 0 {
		latDir = "S"
		lat = -lat
	}
	lonDir := "E"
	lon := f.Longitude
	if lon < 0 {
		lonDir = "W"
		lon = -lon
	}
	status := "NO FIX"
	if f.Valid {
		status = fmt.Sprintf("FIX%d", f.FixType)
	}
	return [4]string{
		fmt.Sprintf("%.7f%s", lat, latDir),
		fmt.Sprintf("%.7f%s", lon, lonDir),
		fmt.Sprintf("Hdg: %.1f", f.HeadingDegrees()),
		fmt.Sprintf("%s sats:%d", status, f.Satellites),
	}
}

func fixImage(f gps.Fix) *image1bit.VerticalLSB {
	img, d := newCanvas()
	for i, line := range fixLines(f) {
		drawLine(d, 0, 13*(i+1), line)
	}
	return img
}

func splashImage() *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 25, 26, "Kart GNSS")
	drawLine(d, 5, 43, "Looking for")
	drawLine(d, 45, 56, "sats")
	return img
}
