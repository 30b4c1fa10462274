// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ublox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	serial "github.com/jacobsa/go-serial/serial"
	"periph.io/x/conn/v3/i2c"
)

// Transport moves raw bytes to and from the receiver. Read may return 0
// bytes with a nil error when the receiver has nothing queued.
type Transport interface {
	Probe() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// DefaultI2CAddr is the factory DDC address of u-blox receivers.
const DefaultI2CAddr = 0x42

// DDC register map.
const (
	regBytesAvailHi = 0xFD
	regDataStream   = 0xFF
)

// maxI2CRead caps one data stream read; the receiver keeps the rest queued.
const maxI2CRead = 128

// I2CTransport talks to the receiver's DDC port.
type I2CTransport struct {
	dev *i2c.Dev
}

// NewI2CTransport binds addr on an already opened bus.
func NewI2CTransport(bus i2c.Bus, addr uint16) *I2CTransport {
	return &I2CTransport{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// Probe checks the device acknowledges a register read.
func (t *I2CTransport) Probe() error {
	_, err := t.available()
	return err
}

func (t *I2CTransport) available() (int, error) {
	var b [2]byte
	if err := t.dev.Tx([]byte{regBytesAvailHi}, b[:]); err != nil {
		return 0, fmt.Errorf("i2c 0x%02X: read bytes available: %w", t.dev.Addr, err)
	}
	n := int(binary.BigEndian.Uint16(b[:]))
	// 0xFFFF shows up while the receiver is busy
	if n == 0xFFFF {
		return 0, nil
	}
	return n, nil
}

func (t *I2CTransport) Read(p []byte) (int, error) {
	n, err := t.available()
	if err != nil || n == 0 {
		return 0, err
	}
	if n > len(p) {
		n = len(p)
	}
	if n > maxI2CRead {
		n = maxI2CRead
	}
	if err := t.dev.Tx([]byte{regDataStream}, p[:n]); err != nil {
		return 0, fmt.Errorf("i2c 0x%02X: read data stream: %w", t.dev.Addr, err)
	}
	return n, nil
}

// Write sends p in a single transaction. The DDC port ignores writes of a
// single byte; UBX frames are always at least 8 bytes long.
func (t *I2CTransport) Write(p []byte) (int, error) {
	if len(p) < 2 {
		return 0, errors.New("ublox: i2c writes must be at least 2 bytes")
	}
	if err := t.dev.Tx(p, nil); err != nil {
		return 0, fmt.Errorf("i2c 0x%02X: write: %w", t.dev.Addr, err)
	}
	return len(p), nil
}

// Close is a no-op; the bus belongs to the caller.
func (t *I2CTransport) Close() error { return nil }

func (t *I2CTransport) String() string {
	return fmt.Sprintf("i2c %s@0x%02X", t.dev.Bus, t.dev.Addr)
}

// SerialTransport talks to the receiver over a UART or USB CDC port.
type SerialTransport struct {
	port io.ReadWriteCloser
	name string
}

// OpenSerial opens name at baud with a short inter-character timeout so
// reads return when the line goes idle.
func OpenSerial(name string, baud int) (*SerialTransport, error) {
	opts := serial.OpenOptions{
		PortName:              name,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 100,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &SerialTransport{port: port, name: name}, nil
}

// NewSerialTransport wraps an already opened port.
func NewSerialTransport(port io.ReadWriteCloser, name string) *SerialTransport {
	return &SerialTransport{port: port, name: name}
}

// Probe always succeeds; serial lines have no presence check, the MON-VER
// poll in Begin does the detection.
func (t *SerialTransport) Probe() error { return nil }

func (t *SerialTransport) Read(p []byte) (int, error) {
	n, err := t.port.Read(p)
	// idle line after the inter-character timeout
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}

func (t *SerialTransport) String() string {
	return "serial " + t.name
}
