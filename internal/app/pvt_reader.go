// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/kart_gnss/internal/gps"
	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

// Receiver is the part of the GNSS driver the reader loop needs.
type Receiver interface {
	Begin(ctx context.Context) error
	SetOutput(ctx context.Context, port ubx.Port, protos ubx.Protocol, layers ubx.Layer) error
	GetPVT(ctx context.Context) (bool, error)
	PVT() ubx.NavPVT
}

// Sink receives every fresh fix after it has been printed.
type Sink interface {
	Name() string
	Publish(f gps.Fix) error
	Close() error
}

// NotDetectedMessage is printed on the console after each failed detection.
const NotDetectedMessage = "u-blox GNSS not detected at default I2C address. Retrying..."

// ReaderOpts configures a PVTReader.
type ReaderOpts struct {
	StartupDelay time.Duration
	RetryDelay   time.Duration
	Port         ubx.Port
	Output       ubx.Protocol
	Layers       ubx.Layer
	// NotDetected overrides NotDetectedMessage.
	NotDetected string
}

// PVTReader detects the receiver, selects its output protocol and then
// polls NAV-PVT forever, printing each fresh fix.
type PVTReader struct {
	rx      Receiver
	console io.Writer
	sinks   []Sink
	opts    ReaderOpts
}

// NewPVTReader builds a reader writing to console and fanning out to sinks.
func NewPVTReader(rx Receiver, console io.Writer, opts ReaderOpts, sinks ...Sink) *PVTReader {
	if opts.NotDetected == "" {
		opts.NotDetected = NotDetectedMessage
	}
	if opts.Output == 0 {
		opts.Output = ubx.ProtoUBX
	}
	if opts.Layers == 0 {
		opts.Layers = ubx.LayerRAM
	}
	return &PVTReader{rx: rx, console: console, sinks: sinks, opts: opts}
}

// Run blocks until ctx is done. Only a cancelled context ends it; receiver
// faults are logged and polling continues.
func (r *PVTReader) Run(ctx context.Context) error {
	if !sleep(ctx, r.opts.StartupDelay) {
		return nil
	}

	if err := r.begin(ctx); err != nil {
		return nil
	}
	log.Infof("gnss: receiver detected")

	if err := r.rx.SetOutput(ctx, r.opts.Port, r.opts.Output, r.opts.Layers); err != nil {
		log.Warnf("gnss: could not set output protocol to %s: %v", r.opts.Output, err)
	} else {
		log.Infof("gnss: output protocol set to %s", r.opts.Output)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		fresh, err := r.rx.GetPVT(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warnf("gnss: poll error: %v", err)
			if !sleep(ctx, r.opts.RetryDelay) {
				return nil
			}
			continue
		}
		if !fresh {
			continue
		}
		r.emit(gps.FromPVT(r.rx.PVT()))
	}
}

// begin retries detection until it succeeds or ctx is done.
func (r *PVTReader) begin(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := r.rx.Begin(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(r.console, r.opts.NotDetected)
		log.Debugf("gnss: begin attempt %d: %v", attempt, err)
		if !sleep(ctx, r.opts.RetryDelay) {
			return ctx.Err()
		}
	}
}

func (r *PVTReader) emit(f gps.Fix) {
	if _, err := fmt.Fprintln(r.console, f.ConsoleLine()); err != nil {
		log.Warnf("console: write error: %v", err)
	}
	for _, s := range r.sinks {
		if err := s.Publish(f); err != nil {
			log.Warnf("%s: publish error: %v", s.Name(), err)
		}
	}
}

// Close closes every sink.
func (r *PVTReader) Close() {
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			log.Warnf("%s: close error: %v", s.Name(), err)
		}
	}
}

// sleep waits d or until ctx is done; it reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
