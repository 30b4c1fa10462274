// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ubx implements the small subset of the u-blox UBX binary protocol
// this project needs: framing, checksums, NAV-PVT, MON-VER, CFG-VALSET and
// the ACK class.
package ubx

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	Sync1 = 0xB5
	Sync2 = 0x62

	// headerLen covers sync chars, class, id and the length field.
	headerLen = 6
	// MaxPayload bounds what the parser accepts. Real messages used here are
	// far below this; anything larger is treated as line noise.
	MaxPayload = 1024
)

// Message classes.
const (
	ClassNAV = 0x01
	ClassACK = 0x05
	ClassCFG = 0x06
	ClassMON = 0x0A
)

// Message IDs.
const (
	IDNavPVT    = 0x07
	IDAckNak    = 0x00
	IDAckAck    = 0x01
	IDCfgValSet = 0x8A
	IDMonVer    = 0x04
)

var (
	ErrChecksum     = errors.New("ubx: checksum mismatch")
	ErrShortPayload = errors.New("ubx: payload too short")
	ErrWrongMessage = errors.New("ubx: unexpected message")
)

// Frame is one UBX message without sync chars and checksum.
type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
}

// Is reports whether f carries the given class and id.
func (f Frame) Is(class, id byte) bool {
	return f.Class == class && f.ID == id
}

func (f Frame) String() string {
	return fmt.Sprintf("UBX 0x%02X 0x%02X len=%d", f.Class, f.ID, len(f.Payload))
}

// Checksum computes the 8-bit Fletcher checksum over b, which must start at
// the class byte.
func Checksum(b []byte) (ckA, ckB byte) {
	for _, c := range b {
		ckA += c
		ckB += ckA
	}
	return ckA, ckB
}

// Encode serializes f into a complete UBX frame.
func Encode(f Frame) []byte {
	out := make([]byte, headerLen+len(f.Payload)+2)
	out[0] = Sync1
	out[1] = Sync2
	out[2] = f.Class
	out[3] = f.ID
	binary.LittleEndian.PutUint16(out[4:6], uint16(len(f.Payload)))
	copy(out[headerLen:], f.Payload)
	ckA, ckB := Checksum(out[2 : headerLen+len(f.Payload)])
	out[len(out)-2] = ckA
	out[len(out)-1] = ckB
	return out
}

// Poll builds a zero-length poll request for class/id.
func Poll(class, id byte) []byte {
	return Encode(Frame{Class: class, ID: id})
}
