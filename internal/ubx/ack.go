// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ubx

import (
	"bytes"
	"fmt"
)

// Ack is a decoded ACK-ACK or ACK-NAK.
type Ack struct {
	Class byte
	ID    byte
	OK    bool
}

// DecodeAck decodes an ACK class frame.
func DecodeAck(f Frame) (Ack, error) {
	if f.Class != ClassACK || (f.ID != IDAckAck && f.ID != IDAckNak) {
		return Ack{}, fmt.Errorf("%w: %s", ErrWrongMessage, f)
	}
	if len(f.Payload) < 2 {
		return Ack{}, fmt.Errorf("%w: ACK has %d bytes", ErrShortPayload, len(f.Payload))
	}
	return Ack{Class: f.Payload[0], ID: f.Payload[1], OK: f.ID == IDAckAck}, nil
}

// AckFrame builds the acknowledgement a receiver sends for class/id.
func AckFrame(class, id byte, ok bool) Frame {
	msgID := byte(IDAckNak)
	if ok {
		msgID = IDAckAck
	}
	return Frame{Class: ClassACK, ID: msgID, Payload: []byte{class, id}}
}

// MonVer is the decoded MON-VER receiver/software version.
type MonVer struct {
	Software   string
	Hardware   string
	Extensions []string
}

// DecodeMonVer decodes a MON-VER frame: 30 byte software version, 10 byte
// hardware version, then any number of 30 byte extension strings.
func DecodeMonVer(f Frame) (MonVer, error) {
	if !f.Is(ClassMON, IDMonVer) {
		return MonVer{}, fmt.Errorf("%w: %s", ErrWrongMessage, f)
	}
	b := f.Payload
	if len(b) < 40 {
		return MonVer{}, fmt.Errorf("%w: MON-VER has %d bytes", ErrShortPayload, len(b))
	}
	v := MonVer{
		Software: cString(b[0:30]),
		Hardware: cString(b[30:40]),
	}
	for off := 40; off+30 <= len(b); off += 30 {
		v.Extensions = append(v.Extensions, cString(b[off:off+30]))
	}
	return v, nil
}

// Frame encodes v as a MON-VER reply.
func (v MonVer) Frame() Frame {
	b := make([]byte, 40+30*len(v.Extensions))
	copy(b[0:30], v.Software)
	copy(b[30:40], v.Hardware)
	for i, ext := range v.Extensions {
		copy(b[40+30*i:40+30*(i+1)], ext)
	}
	return Frame{Class: ClassMON, ID: IDMonVer, Payload: b}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
