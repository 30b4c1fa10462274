// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package track checks kart positions against a recorded reference lap.
//
// The area around the track is split into four quadrants at the midpoints
// of a bounding box; a position is on track when some reference point of
// its own quadrant lies within the tolerance.
package track

import (
	"bufio"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/relabs-tech/kart_gnss/internal/gps"
)

// Quadrant names, in lookup order.
const (
	NW = "NW"
	NE = "NE"
	SW = "SW"
	SE = "SE"
)

var quadrantOrder = []string{NW, NE, SW, SE}

// Names returns the quadrant names in lookup order.
func Names() []string {
	return append([]string(nil), quadrantOrder...)
}

// Quadrant is one named quarter of a boundary.
type Quadrant struct {
	Name  string
	Bound orb.Bound
}

// NewBoundary builds the box from degree limits.
func NewBoundary(minLat, maxLat, minLon, maxLon float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}
}

// Quadrants splits b at its center. Edges are shared; lookups take the
// first match in NW, NE, SW, SE order.
func Quadrants(b orb.Bound) []Quadrant {
	mid := b.Center()
	return []Quadrant{
		{NW, orb.Bound{Min: orb.Point{b.Min.Lon(), mid.Lat()}, Max: orb.Point{mid.Lon(), b.Max.Lat()}}},
		{NE, orb.Bound{Min: mid, Max: b.Max}},
		{SW, orb.Bound{Min: b.Min, Max: mid}},
		{SE, orb.Bound{Min: orb.Point{mid.Lon(), b.Min.Lat()}, Max: orb.Point{b.Max.Lon(), mid.Lat()}}},
	}
}

// Track is a reference lap bucketed by quadrant.
type Track struct {
	boundary  orb.Bound
	quadrants []Quadrant
	points    map[string][]orb.Point
	outside   int
}

// New creates an empty track for boundary.
func New(boundary orb.Bound) *Track {
	return &Track{
		boundary:  boundary,
		quadrants: Quadrants(boundary),
		points:    make(map[string][]orb.Point, 4),
	}
}

// Add files p under its quadrant. Points outside the boundary are counted
// and dropped.
func (t *Track) Add(p orb.Point) {
	q, ok := t.quadrantOf(p)
	if !ok {
		t.outside++
		return
	}
	t.points[q] = append(t.points[q], p)
}

// Counts returns the number of reference points in every quadrant.
func (t *Track) Counts() map[string]int {
	out := make(map[string]int, len(quadrantOrder))
	for _, q := range quadrantOrder {
		out[q] = len(t.points[q])
	}
	return out
}

// Points returns the reference points filed under quadrant q.
func (t *Track) Points(q string) []orb.Point {
	return append([]orb.Point(nil), t.points[q]...)
}

// Boundary returns the box the track was built for.
func (t *Track) Boundary() orb.Bound {
	return t.boundary
}

// Outside returns how many added points fell outside the boundary.
func (t *Track) Outside() int {
	return t.outside
}

// Len returns the number of kept reference points.
func (t *Track) Len() int {
	n := 0
	for _, pts := range t.points {
		n += len(pts)
	}
	return n
}

// OnTrack reports whether p lies within toleranceM metres of a reference
// point in p's quadrant. Positions outside the boundary are off track.
func (t *Track) OnTrack(p orb.Point, toleranceM float64) bool {
	q, ok := t.quadrantOf(p)
	if !ok {
		return false
	}
	for _, ref := range t.points[q] {
		if geo.DistanceHaversine(p, ref) <= toleranceM {
			return true
		}
	}
	return false
}

// Quadrant returns the name of the quadrant holding p.
func (t *Track) Quadrant(p orb.Point) (string, bool) {
	return t.quadrantOf(p)
}

func (t *Track) quadrantOf(p orb.Point) (string, bool) {
	for _, q := range t.quadrants {
		if q.Bound.Contains(p) {
			return q.Name, true
		}
	}
	return "", false
}

// Point converts a fix into an orb point.
func Point(f gps.Fix) orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// ReadPoints reads console-format position lines from r. Lines that are not
// position records (retry notices, blank lines) are skipped.
func ReadPoints(r io.Reader) ([]orb.Point, error) {
	var pts []orb.Point
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		f, err := gps.ParseLine(sc.Text())
		if err != nil {
			continue
		}
		pts = append(pts, Point(f))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	return pts, nil
}

// Load builds a track from the console-format log in r.
func Load(r io.Reader, boundary orb.Bound) (*Track, error) {
	pts, err := ReadPoints(r)
	if err != nil {
		return nil, err
	}
	t := New(boundary)
	for _, p := range pts {
		t.Add(p)
	}
	return t, nil
}
