// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/kart_gnss/internal/gps"
	"github.com/relabs-tech/kart_gnss/internal/track"
)

// RunConvert rewrites a raw log (deg×1e7 integers) as a degrees log readable
// by the map and track tools. It returns the number of converted lines.
func RunConvert(in io.Reader, out io.Writer) (int, error) {
	bw := bufio.NewWriter(out)
	sc := bufio.NewScanner(in)
	n, lineNo := 0, 0
	for sc.Scan() {
		lineNo++
		f, err := gps.ParseRawLine(sc.Text())
		if err != nil {
			log.Debugf("convert: skipping line %d: %v", lineNo, err)
			continue
		}
		fmt.Fprintf(bw, "Latitude: %s Long: %s\n",
			strconv.FormatFloat(f.Latitude, 'f', -1, 64),
			strconv.FormatFloat(f.Longitude, 'f', -1, 64))
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read raw log: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write converted log: %w", err)
	}
	return n, nil
}

// MaxMapSize caps the edge of a rendered map in pixels.
const MaxMapSize = 10000

func checkMapSize(size int) error {
	if size <= 0 || size > MaxMapSize {
		return fmt.Errorf("map size must be between 1 and %d px, got %d", MaxMapSize, size)
	}
	return nil
}

// RunRouteMap plots every position in a console log as a PNG.
func RunRouteMap(in io.Reader, out io.Writer, opts track.RenderOpts) (int, error) {
	if err := checkMapSize(opts.Size); err != nil {
		return 0, err
	}
	pts, err := track.ReadPoints(in)
	if err != nil {
		return 0, err
	}
	if len(pts) == 0 {
		return 0, fmt.Errorf("no positions in log")
	}
	if err := track.WritePNG(out, track.RenderRoute(pts, opts)); err != nil {
		return 0, fmt.Errorf("write png: %w", err)
	}
	return len(pts), nil
}

// TrackCheck describes one offline on-track run.
type TrackCheck struct {
	Track      io.Reader // reference lap, console format
	Kart       io.Reader // positions to check, console format
	Boundary   orb.Bound
	ToleranceM float64
	Out        io.Writer
	// Plot, when set, receives a PNG of the reference lap with the last
	// kart position highlighted.
	Plot io.Writer
}

// RunTrackCheck prints the reference point count of every quadrant, then one
// on/off track verdict per kart position.
func RunTrackCheck(tc TrackCheck) error {
	t, err := track.Load(tc.Track, tc.Boundary)
	if err != nil {
		return fmt.Errorf("load track: %w", err)
	}
	counts := t.Counts()
	for _, q := range track.Names() {
		fmt.Fprintf(tc.Out, "Quadrant %s: %d coordinates\n", q, counts[q])
	}
	if t.Outside() > 0 {
		log.Warnf("track: %d reference points outside the boundary were ignored", t.Outside())
	}

	kart, err := track.ReadPoints(tc.Kart)
	if err != nil {
		return fmt.Errorf("load kart positions: %w", err)
	}
	for _, p := range kart {
		fmt.Fprintln(tc.Out, onTrackMessage(t.OnTrack(p, tc.ToleranceM)))
	}

	if tc.Plot == nil {
		return nil
	}
	var pts []orb.Point
	for _, q := range track.Names() {
		pts = append(pts, t.Points(q)...)
	}
	// the whole boundary is framed, so the lap and the kart share one scale
	opts := track.DefaultRenderOpts
	frame := tc.Boundary
	opts.Frame = &frame
	if len(kart) > 0 {
		last := kart[len(kart)-1]
		opts.Highlight = &last
	}
	if err := track.WritePNG(tc.Plot, track.RenderRoute(pts, opts)); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
