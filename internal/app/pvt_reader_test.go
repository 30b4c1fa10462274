// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kart_gnss/internal/gps"
	"github.com/relabs-tech/kart_gnss/internal/ublox"
	"github.com/relabs-tech/kart_gnss/internal/ubx"
)

type pollResult struct {
	fresh bool
	err   error
	pvt   ubx.NavPVT
}

// fakeRx replays poll results and cancels the run once they are used up.
type fakeRx struct {
	beginFails   int
	beginCalls   int
	setOutputErr error
	setOutputArg struct {
		port   ubx.Port
		protos ubx.Protocol
		layers ubx.Layer
	}
	setOutputCalls int
	results        []pollResult
	pvt            ubx.NavPVT
	cancel         context.CancelFunc
}

func (f *fakeRx) Begin(ctx context.Context) error {
	f.beginCalls++
	if f.beginCalls <= f.beginFails {
		return ublox.ErrNotDetected
	}
	return nil
}

func (f *fakeRx) SetOutput(ctx context.Context, port ubx.Port, protos ubx.Protocol, layers ubx.Layer) error {
	f.setOutputCalls++
	f.setOutputArg.port, f.setOutputArg.protos, f.setOutputArg.layers = port, protos, layers
	return f.setOutputErr
}

func (f *fakeRx) GetPVT(ctx context.Context) (bool, error) {
	if len(f.results) == 0 {
		f.cancel()
		return false, ctx.Err()
	}
	r := f.results[0]
	f.results = f.results[1:]
	if r.fresh {
		f.pvt = r.pvt
	}
	return r.fresh, r.err
}

func (f *fakeRx) PVT() ubx.NavPVT { return f.pvt }

type fakeSink struct {
	fixes      []gps.Fix
	publishErr error
	closed     bool
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Publish(f gps.Fix) error {
	s.fixes = append(s.fixes, f)
	return s.publishErr
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

func pvtAt(lat, lon, head int32) ubx.NavPVT {
	return ubx.NavPVT{Lat: lat, Lon: lon, HeadMot: head, FixType: ubx.Fix3D, Flags: ubx.FlagGNSSFixOK, NumSV: 9}
}

func fastOpts() ReaderOpts {
	return ReaderOpts{RetryDelay: time.Millisecond}
}

func runReader(t *testing.T, rx *fakeRx, opts ReaderOpts, sinks ...Sink) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rx.cancel = cancel

	var console bytes.Buffer
	r := NewPVTReader(rx, &console, opts, sinks...)
	require.NoError(t, r.Run(ctx))
	require.NotErrorIs(t, ctx.Err(), context.DeadlineExceeded, "reader did not finish")
	return console.String()
}

func TestRunPrintsOnlyFreshSolutions(t *testing.T) {
	rx := &fakeRx{results: []pollResult{
		{fresh: true, pvt: pvtAt(332131000, -875450000, 9000000)},
		{fresh: false},
		{fresh: false},
		{fresh: true, pvt: pvtAt(332140000, -875435000, 0)},
	}}
	sink := &fakeSink{}

	out := runReader(t, rx, fastOpts(), sink)

	assert.Equal(t,
		" Latitude: 33.2131000 Long: -87.5450000 Heading: 9000000\n"+
			" Latitude: 33.2140000 Long: -87.5435000 Heading: 0\n",
		out)
	require.Len(t, sink.fixes, 2)
	assert.InDelta(t, 33.2131, sink.fixes[0].Latitude, 1e-9)
	assert.True(t, sink.fixes[0].Valid)
}

func TestRunRetriesBeginUntilDetected(t *testing.T) {
	rx := &fakeRx{
		beginFails: 3,
		results:    []pollResult{{fresh: true, pvt: pvtAt(1, 2, 3)}},
	}

	out := runReader(t, rx, fastOpts())

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	for _, l := range lines[:3] {
		assert.Equal(t, NotDetectedMessage, l)
	}
	assert.Equal(t, " Latitude: 0.0000001 Long: 0.0000002 Heading: 3", lines[3])
	assert.Equal(t, 4, rx.beginCalls)
	assert.Equal(t, 1, rx.setOutputCalls)
}

func TestRunSelectsUBXOnlyInRAMByDefault(t *testing.T) {
	rx := &fakeRx{}
	runReader(t, rx, fastOpts())

	assert.Equal(t, ubx.PortI2C, rx.setOutputArg.port)
	assert.Equal(t, ubx.ProtoUBX, rx.setOutputArg.protos)
	assert.Equal(t, ubx.LayerRAM, rx.setOutputArg.layers)
}

func TestRunToleratesSetOutputFailure(t *testing.T) {
	rx := &fakeRx{
		setOutputErr: ublox.ErrNAK,
		results:      []pollResult{{fresh: true, pvt: pvtAt(10, 20, 30)}},
	}

	out := runReader(t, rx, fastOpts())
	assert.Contains(t, out, "Heading: 30")
}

func TestRunContinuesAfterPollError(t *testing.T) {
	rx := &fakeRx{results: []pollResult{
		{err: errors.New("i2c: bus fault")},
		{err: errors.New("i2c: bus fault")},
		{fresh: true, pvt: pvtAt(10, 20, 30)},
	}}

	out := runReader(t, rx, fastOpts())
	assert.Equal(t, " Latitude: 0.0000010 Long: 0.0000020 Heading: 30\n", out)
}

func TestRunSinkErrorDoesNotStopOthers(t *testing.T) {
	bad := &fakeSink{publishErr: errors.New("broker gone")}
	good := &fakeSink{}
	rx := &fakeRx{results: []pollResult{
		{fresh: true, pvt: pvtAt(1, 1, 1)},
		{fresh: true, pvt: pvtAt(2, 2, 2)},
	}}

	runReader(t, rx, fastOpts(), bad, good)
	assert.Len(t, bad.fixes, 2)
	assert.Len(t, good.fixes, 2)
}

func TestRunStopsWhileRetrying(t *testing.T) {
	rx := &fakeRx{beginFails: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var console bytes.Buffer
	r := NewPVTReader(rx, &console, ReaderOpts{RetryDelay: 5 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, console.String(), NotDetectedMessage)
	assert.Zero(t, rx.setOutputCalls)
}

func TestRunCustomNotDetectedMessage(t *testing.T) {
	rx := &fakeRx{beginFails: 1}
	opts := fastOpts()
	opts.NotDetected = "u-blox GNSS not detected on /dev/ttyACM0. Retrying..."

	out := runReader(t, rx, opts)
	assert.Equal(t, opts.NotDetected+"\n", out)
}

func TestCloseClosesSinks(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	r := NewPVTReader(&fakeRx{}, &bytes.Buffer{}, fastOpts(), a, b)
	r.Close()
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), time.Millisecond))
	assert.True(t, sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.False(t, sleep(ctx, 0))
}
