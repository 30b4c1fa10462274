// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ublox drives a u-blox GNSS receiver: detection, output protocol
// configuration and polled NAV-PVT reads.
package ublox

import (
	"context"
	"errors"
	"fmt"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

var (
	// ErrNotDetected is returned by Begin when nothing answers.
	ErrNotDetected = errors.New("ublox: receiver not detected")
	// ErrNAK is returned when the receiver rejects a configuration message.
	ErrNAK = errors.New("ublox: message not acknowledged")
	// ErrTimeout is returned when no matching reply arrives within MaxWait.
	ErrTimeout = errors.New("ublox: timed out waiting for reply")
)

// Opts configures a Device.
type Opts struct {
	// MaxWait bounds each request/response exchange.
	MaxWait time.Duration
	// IdleDelay is the pause between reads when the receiver has no data.
	IdleDelay time.Duration
	// OnNMEA, when set, receives every NMEA sentence seen in the stream.
	OnNMEA func(nmea.Sentence)
}

// DefaultOpts matches the timing the receiver needs at its default 1 Hz
// navigation rate.
var DefaultOpts = Opts{
	MaxWait:   1100 * time.Millisecond,
	IdleDelay: 10 * time.Millisecond,
}

// Device is a u-blox receiver reached through a Transport. It is not safe
// for concurrent use.
type Device struct {
	t      Transport
	opts   Opts
	parser ubx.Parser
	buf    []byte
	// frames decoded but not yet claimed by a request, oldest first
	pending []ubx.Frame

	pvt     ubx.NavPVT
	version ubx.MonVer
}

// New wraps t. A nil opts selects DefaultOpts.
func New(t Transport, opts *Opts) *Device {
	o := DefaultOpts
	if opts != nil {
		o = *opts
		if o.MaxWait <= 0 {
			o.MaxWait = DefaultOpts.MaxWait
		}
		if o.IdleDelay <= 0 {
			o.IdleDelay = DefaultOpts.IdleDelay
		}
	}
	return &Device{t: t, opts: o, buf: make([]byte, 256)}
}

// Begin detects the receiver: the transport must answer a probe and the
// receiver must reply to a MON-VER poll.
func (d *Device) Begin(ctx context.Context) error {
	if err := d.t.Probe(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDetected, err)
	}
	d.parser.Reset()
	d.pending = d.pending[:0]
	if err := d.send(ubx.Frame{Class: ubx.ClassMON, ID: ubx.IDMonVer}); err != nil {
		return fmt.Errorf("%w: %v", ErrNotDetected, err)
	}
	f, err := d.waitFor(ctx, false, func(f ubx.Frame) bool { return f.Is(ubx.ClassMON, ubx.IDMonVer) })
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w: no MON-VER reply", ErrNotDetected)
		}
		return err
	}
	v, err := ubx.DecodeMonVer(f)
	if err != nil {
		return err
	}
	d.version = v
	log.Debugf("gnss: receiver sw=%q hw=%q ext=%v", v.Software, v.Hardware, v.Extensions)
	return nil
}

// Version returns the MON-VER reply captured by Begin.
func (d *Device) Version() ubx.MonVer {
	return d.version
}

// SetOutput selects the output protocols of port and waits for the ACK.
func (d *Device) SetOutput(ctx context.Context, port ubx.Port, protos ubx.Protocol, layers ubx.Layer) error {
	items, err := ubx.OutputProtocolItems(port, protos)
	if err != nil {
		return err
	}
	f, err := ubx.ValSet(layers, items...)
	if err != nil {
		return err
	}
	if err := d.send(f); err != nil {
		return err
	}
	reply, err := d.waitFor(ctx, false, func(r ubx.Frame) bool {
		if r.Class != ubx.ClassACK {
			return false
		}
		a, err := ubx.DecodeAck(r)
		return err == nil && a.Class == f.Class && a.ID == f.ID
	})
	if err != nil {
		return fmt.Errorf("set output %s: %w", protos, err)
	}
	if reply.ID != ubx.IDAckAck {
		return fmt.Errorf("set output %s: %w", protos, ErrNAK)
	}
	return nil
}

// SetI2COutput selects the protocols the DDC port emits, RAM layer only.
func (d *Device) SetI2COutput(ctx context.Context, protos ubx.Protocol) error {
	return d.SetOutput(ctx, ubx.PortI2C, protos, ubx.LayerRAM)
}

// GetPVT polls NAV-PVT and blocks until the receiver answers or MaxWait
// elapses. The receiver only answers once it has a new solution, so a true
// result means fresh data is available through the accessors. A timeout is
// not an error; it reports false. When several solutions are queued the
// newest wins and the older ones are dropped.
func (d *Device) GetPVT(ctx context.Context) (bool, error) {
	if err := d.send(ubx.Frame{Class: ubx.ClassNAV, ID: ubx.IDNavPVT}); err != nil {
		return false, err
	}
	f, err := d.waitFor(ctx, true, func(f ubx.Frame) bool {
		return f.Is(ubx.ClassNAV, ubx.IDNavPVT) && len(f.Payload) > 0
	})
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	pvt, err := ubx.DecodeNavPVT(f)
	if err != nil {
		return false, err
	}
	d.pvt = pvt
	return true, nil
}

// Latitude of the last solution in degrees×1e7.
func (d *Device) Latitude() int32 { return d.pvt.Lat }

// Longitude of the last solution in degrees×1e7.
func (d *Device) Longitude() int32 { return d.pvt.Lon }

// Heading of motion of the last solution in degrees×1e5.
func (d *Device) Heading() int32 { return d.pvt.HeadMot }

// PVT returns the full last solution.
func (d *Device) PVT() ubx.NavPVT { return d.pvt }

// Close closes the transport.
func (d *Device) Close() error {
	return d.t.Close()
}

func (d *Device) send(f ubx.Frame) error {
	b := ubx.Encode(f)
	if _, err := d.t.Write(b); err != nil {
		return fmt.Errorf("send %s: %w", f, err)
	}
	return nil
}

// maxPending bounds the queue of unclaimed frames; the oldest go first.
const maxPending = 16

// waitFor returns the first queued or newly read frame match accepts, or
// the last one when newest is set. It gives up after MaxWait or when ctx is
// done. Frames match rejects stay queued for later requests; NMEA sentences
// met on the way go to OnNMEA.
func (d *Device) waitFor(ctx context.Context, newest bool, match func(ubx.Frame) bool) (ubx.Frame, error) {
	if f, ok := d.take(newest, match); ok {
		return f, nil
	}

	deadline := time.Now().Add(d.opts.MaxWait)
	idle := time.NewTimer(0)
	defer idle.Stop()
	<-idle.C

	for {
		n, err := d.t.Read(d.buf)
		if err != nil {
			return ubx.Frame{}, fmt.Errorf("read: %w", err)
		}
		if n > 0 {
			frames, sentences := d.parser.Feed(d.buf[:n])
			d.dispatchNMEA(sentences)
			d.queue(frames)
			if f, ok := d.take(newest, match); ok {
				return f, nil
			}
		}

		if !time.Now().Before(deadline) {
			return ubx.Frame{}, ErrTimeout
		}
		if n > 0 {
			continue
		}
		idle.Reset(d.opts.IdleDelay)
		select {
		case <-ctx.Done():
			return ubx.Frame{}, ctx.Err()
		case <-idle.C:
		}
	}
}

func (d *Device) queue(frames []ubx.Frame) {
	d.pending = append(d.pending, frames...)
	if over := len(d.pending) - maxPending; over > 0 {
		for _, f := range d.pending[:over] {
			log.Debugf("gnss: dropping unclaimed %s", f)
		}
		d.pending = append(d.pending[:0], d.pending[over:]...)
	}
}

// take removes and returns a matching queued frame. With newest set, every
// older match is removed as well.
func (d *Device) take(newest bool, match func(ubx.Frame) bool) (ubx.Frame, bool) {
	idx := -1
	for i, f := range d.pending {
		if match(f) {
			idx = i
			if !newest {
				break
			}
		}
	}
	if idx < 0 {
		return ubx.Frame{}, false
	}
	f := d.pending[idx]
	kept := d.pending[:0]
	for i, p := range d.pending {
		if i == idx || (newest && i < idx && match(p)) {
			continue
		}
		kept = append(kept, p)
	}
	d.pending = kept
	return f, true
}

func (d *Device) dispatchNMEA(sentences []string) {
	if d.opts.OnNMEA == nil {
		return
	}
	for _, s := range sentences {
		sentence, err := nmea.Parse(s)
		if err != nil {
			// partial or proprietary sentences are common
			log.Debugf("gnss: NMEA parse error: %v (line: %q)", err, s)
			continue
		}
		d.opts.OnNMEA(sentence)
	}
}
