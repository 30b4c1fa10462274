// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ubx

import (
	"encoding/binary"
	"fmt"
	"time"
)

// NavPVTLen is the payload size of UBX-NAV-PVT on protocol 14+.
const NavPVTLen = 92

// Fix types reported in NavPVT.FixType.
const (
	FixNone          = 0
	FixDeadReckoning = 1
	Fix2D            = 2
	Fix3D            = 3
	FixGNSSDeadReck  = 4
	FixTimeOnly      = 5
)

// valid flag bits
const (
	ValidDate     = 0x01
	ValidTime     = 0x02
	FullyResolved = 0x04
)

// flags bits
const (
	FlagGNSSFixOK    = 0x01
	FlagHeadVehValid = 0x20
)

// flags3 bits
const FlagInvalidLLH = 0x01

// NavPVT is the decoded UBX-NAV-PVT navigation solution.
//
// Units follow the receiver: lat/lon in deg×1e7, heights and accuracies in
// mm, velocities in mm/s, headings in deg×1e5, PDOP in 0.01.
type NavPVT struct {
	ITOW    uint32
	Year    uint16
	Month   uint8
	Day     uint8
	Hour    uint8
	Min     uint8
	Sec     uint8
	Valid   uint8
	TAcc    uint32
	Nano    int32
	FixType uint8
	Flags   uint8
	Flags2  uint8
	NumSV   uint8
	Lon     int32
	Lat     int32
	Height  int32
	HMSL    int32
	HAcc    uint32
	VAcc    uint32
	VelN    int32
	VelE    int32
	VelD    int32
	GSpeed  int32
	HeadMot int32
	SAcc    uint32
	HeadAcc uint32
	PDOP    uint16
	Flags3  uint16
	HeadVeh int32
	MagDec  int16
	MagAcc  uint16
}

// DecodeNavPVT decodes a NAV-PVT frame.
func DecodeNavPVT(f Frame) (NavPVT, error) {
	if !f.Is(ClassNAV, IDNavPVT) {
		return NavPVT{}, fmt.Errorf("%w: %s", ErrWrongMessage, f)
	}
	b := f.Payload
	if len(b) < NavPVTLen {
		return NavPVT{}, fmt.Errorf("%w: NAV-PVT has %d bytes", ErrShortPayload, len(b))
	}
	le := binary.LittleEndian
	return NavPVT{
		ITOW:    le.Uint32(b[0:]),
		Year:    le.Uint16(b[4:]),
		Month:   b[6],
		Day:     b[7],
		Hour:    b[8],
		Min:     b[9],
		Sec:     b[10],
		Valid:   b[11],
		TAcc:    le.Uint32(b[12:]),
		Nano:    int32(le.Uint32(b[16:])),
		FixType: b[20],
		Flags:   b[21],
		Flags2:  b[22],
		NumSV:   b[23],
		Lon:     int32(le.Uint32(b[24:])),
		Lat:     int32(le.Uint32(b[28:])),
		Height:  int32(le.Uint32(b[32:])),
		HMSL:    int32(le.Uint32(b[36:])),
		HAcc:    le.Uint32(b[40:]),
		VAcc:    le.Uint32(b[44:]),
		VelN:    int32(le.Uint32(b[48:])),
		VelE:    int32(le.Uint32(b[52:])),
		VelD:    int32(le.Uint32(b[56:])),
		GSpeed:  int32(le.Uint32(b[60:])),
		HeadMot: int32(le.Uint32(b[64:])),
		SAcc:    le.Uint32(b[68:]),
		HeadAcc: le.Uint32(b[72:]),
		PDOP:    le.Uint16(b[76:]),
		Flags3:  le.Uint16(b[78:]),
		HeadVeh: int32(le.Uint32(b[84:])),
		MagDec:  int16(le.Uint16(b[88:])),
		MagAcc:  le.Uint16(b[90:]),
	}, nil
}

// Frame encodes p back into a NAV-PVT frame. Receivers never need this; it
// exists for replay and simulated receivers.
func (p NavPVT) Frame() Frame {
	b := make([]byte, NavPVTLen)
	le := binary.LittleEndian
	le.PutUint32(b[0:], p.ITOW)
	le.PutUint16(b[4:], p.Year)
	b[6] = p.Month
	b[7] = p.Day
	b[8] = p.Hour
	b[9] = p.Min
	b[10] = p.Sec
	b[11] = p.Valid
	le.PutUint32(b[12:], p.TAcc)
	le.PutUint32(b[16:], uint32(p.Nano))
	b[20] = p.FixType
	b[21] = p.Flags
	b[22] = p.Flags2
	b[23] = p.NumSV
	le.PutUint32(b[24:], uint32(p.Lon))
	le.PutUint32(b[28:], uint32(p.Lat))
	le.PutUint32(b[32:], uint32(p.Height))
	le.PutUint32(b[36:], uint32(p.HMSL))
	le.PutUint32(b[40:], p.HAcc)
	le.PutUint32(b[44:], p.VAcc)
	le.PutUint32(b[48:], uint32(p.VelN))
	le.PutUint32(b[52:], uint32(p.VelE))
	le.PutUint32(b[56:], uint32(p.VelD))
	le.PutUint32(b[60:], uint32(p.GSpeed))
	le.PutUint32(b[64:], uint32(p.HeadMot))
	le.PutUint32(b[68:], p.SAcc)
	le.PutUint32(b[72:], p.HeadAcc)
	le.PutUint16(b[76:], p.PDOP)
	le.PutUint16(b[78:], p.Flags3)
	le.PutUint32(b[84:], uint32(p.HeadVeh))
	le.PutUint16(b[88:], uint16(p.MagDec))
	le.PutUint16(b[90:], p.MagAcc)
	return Frame{Class: ClassNAV, ID: IDNavPVT, Payload: b}
}

// FixOK reports whether the receiver flags the solution as usable.
func (p NavPVT) FixOK() bool {
	return p.Flags&FlagGNSSFixOK != 0 && p.Flags3&FlagInvalidLLH == 0
}

// Time returns the UTC time of the solution. ok is false unless both date
// and time are flagged valid.
func (p NavPVT) Time() (t time.Time, ok bool) {
	if p.Valid&(ValidDate|ValidTime) != ValidDate|ValidTime {
		return time.Time{}, false
	}
	t = time.Date(int(p.Year), time.Month(p.Month), int(p.Day),
		int(p.Hour), int(p.Min), int(p.Sec), 0, time.UTC)
	// nano is signed and may pull the second backwards
	return t.Add(time.Duration(p.Nano)), true
}
