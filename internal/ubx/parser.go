// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ubx

import (
	"encoding/binary"
	"strings"
)

type parserState int

const (
	stateIdle parserState = iota
	stateSync2
	stateHeader
	statePayload
	stateNMEA
)

// maxNMEALine is generous; NMEA 0183 caps sentences at 82 chars but some
// receivers emit longer proprietary ones.
const maxNMEALine = 256

// Parser splits a raw receiver byte stream into UBX frames and NMEA
// sentences. It keeps partial messages between calls to Feed, so the stream
// may be delivered in arbitrary chunks.
//
// Bytes between messages are skipped; this covers the 0xFF filler the DDC
// (I2C) port returns when it has nothing to send.
type Parser struct {
	state parserState
	buf   []byte // class, id, length, payload, checksum
	want  int
	line  []byte

	BadChecksums int
	Oversize     int
}

// Feed consumes data and returns every frame and NMEA sentence completed by
// it. Frames with a bad checksum are dropped and counted.
func (p *Parser) Feed(data []byte) (frames []Frame, sentences []string) {
	for _, c := range data {
		switch p.state {
		case stateIdle:
			p.idle(c)

		case stateSync2:
			switch c {
			case Sync2:
				p.state = stateHeader
				p.buf = p.buf[:0]
			case Sync1:
				// stay, the previous 0xB5 was noise
			default:
				p.state = stateIdle
				p.idle(c)
			}

		case stateHeader:
			p.buf = append(p.buf, c)
			if len(p.buf) < 4 {
				continue
			}
			n := int(binary.LittleEndian.Uint16(p.buf[2:4]))
			if n > MaxPayload {
				p.Oversize++
				p.state = stateIdle
				continue
			}
			p.want = 4 + n + 2
			p.state = statePayload

		case statePayload:
			p.buf = append(p.buf, c)
			if len(p.buf) < p.want {
				continue
			}
			p.state = stateIdle
			body := p.buf[:p.want-2]
			ckA, ckB := Checksum(body)
			if ckA != p.buf[p.want-2] || ckB != p.buf[p.want-1] {
				p.BadChecksums++
				continue
			}
			payload := make([]byte, len(body)-4)
			copy(payload, body[4:])
			frames = append(frames, Frame{Class: body[0], ID: body[1], Payload: payload})

		case stateNMEA:
			switch {
			case c == '\n':
				s := strings.TrimRight(string(p.line), "\r")
				sentences = append(sentences, s)
				p.state = stateIdle
			case c == '\r':
				p.line = append(p.line, c)
			case c < 0x20 || c >= 0x7F:
				p.state = stateIdle
				p.idle(c)
			case len(p.line) >= maxNMEALine:
				p.state = stateIdle
			default:
				p.line = append(p.line, c)
			}
		}
	}
	return frames, sentences
}

func (p *Parser) idle(c byte) {
	switch c {
	case Sync1:
		p.state = stateSync2
	case '$':
		p.state = stateNMEA
		p.line = append(p.line[:0], c)
	}
}

// Reset drops any partially received message.
func (p *Parser) Reset() {
	p.state = stateIdle
	p.buf = p.buf[:0]
	p.line = p.line[:0]
}
