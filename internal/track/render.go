// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package track

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

// RenderOpts controls RenderRoute.
type RenderOpts struct {
	Size      int     // square image edge in pixels
	DotRadius float32 // radius of each plotted point
	// Highlight, when non-nil, is drawn in HighlightColor on top of the route.
	Highlight      *orb.Point
	HighlightColor color.Color
	// Frame, when non-nil, is the extent mapped onto the image in place of
	// the points' own extent.
	Frame *orb.Bound
}

// DefaultRenderOpts plots into a 1000 px square.
var DefaultRenderOpts = RenderOpts{
	Size:           1000,
	DotRadius:      3,
	HighlightColor: color.RGBA{G: 0xA0, A: 0xFF},
}

// RenderRoute plots points onto a white square, north up, scaled to
// opts.Frame or else to the points' own extent. A zero-width extent (one
// point, or a straight north-south run) is centered on that axis. A
// highlight outside opts.Frame is not drawn.
func RenderRoute(points []orb.Point, opts RenderOpts) *image.RGBA {
	if opts.Size <= 0 {
		opts.Size = DefaultRenderOpts.Size
	}
	if opts.DotRadius <= 0 {
		opts.DotRadius = DefaultRenderOpts.DotRadius
	}
	img := image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	var b orb.Bound
	switch {
	case opts.Frame != nil:
		b = *opts.Frame
	case len(points) > 0:
		b = points[0].Bound()
		for _, p := range points[1:] {
			b = b.Extend(p)
		}
	default:
		return img
	}

	project := func(p orb.Point) (float32, float32) {
		size := float64(opts.Size)
		return float32(scaleAxis(p.Lon(), b.Min.Lon(), b.Max.Lon(), size)),
			float32(size - scaleAxis(p.Lat(), b.Min.Lat(), b.Max.Lat(), size))
	}

	z := vector.NewRasterizer(opts.Size, opts.Size)
	for _, p := range points {
		x, y := project(p)
		addDot(z, x, y, opts.DotRadius)
	}
	z.Draw(img, img.Bounds(), image.Black, image.Point{})

	if opts.Highlight != nil && (opts.Frame == nil || opts.Frame.Contains(*opts.Highlight)) {
		hc := opts.HighlightColor
		if hc == nil {
			hc = DefaultRenderOpts.HighlightColor
		}
		z.Reset(opts.Size, opts.Size)
		x, y := project(*opts.Highlight)
		addDot(z, x, y, opts.DotRadius*2)
		z.Draw(img, img.Bounds(), image.NewUniform(hc), image.Point{})
	}
	return img
}

func scaleAxis(v, lo, hi, size float64) float64 {
	if hi-lo == 0 {
		return size / 2
	}
	return size * (v - lo) / (hi - lo)
}

// addDot appends a closed polygon approximating a circle.
func addDot(z *vector.Rasterizer, cx, cy, r float32) {
	const segments = 16
	z.MoveTo(cx+r, cy)
	for i := 1; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		z.LineTo(cx+r*float32(math.Cos(a)), cy+r*float32(math.Sin(a)))
	}
	z.ClosePath()
}

// WritePNG encodes img to w.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
