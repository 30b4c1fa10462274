// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ubx

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Layer selects where CFG-VALSET writes a value.
type Layer byte

const (
	LayerRAM   Layer = 0x01
	LayerBBR   Layer = 0x02
	LayerFlash Layer = 0x04
)

// ParseLayers parses "ram", "ram+bbr", "ram+bbr+flash" and similar.
func ParseLayers(s string) (Layer, error) {
	var l Layer
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "+") {
		switch strings.TrimSpace(part) {
		case "ram":
			l |= LayerRAM
		case "bbr":
			l |= LayerBBR
		case "flash":
			l |= LayerFlash
		default:
			return 0, fmt.Errorf("unknown config layer %q", part)
		}
	}
	return l, nil
}

// Key is a configuration item ID. Bits 28..30 encode the value size.
type Key uint32

// Output protocol keys (all size L, one byte boolean).
const (
	KeyI2COutProtUBX    Key = 0x10720001
	KeyI2COutProtNMEA   Key = 0x10720002
	KeyUART1OutProtUBX  Key = 0x10740001
	KeyUART1OutProtNMEA Key = 0x10740002
	KeyUSBOutProtUBX    Key = 0x10780001
	KeyUSBOutProtNMEA   Key = 0x10780002
)

// Size returns the value width in bytes.
func (k Key) Size() int {
	switch (uint32(k) >> 28) & 0x07 {
	case 0x01, 0x02:
		return 1
	case 0x03:
		return 2
	case 0x04:
		return 4
	case 0x05:
		return 8
	}
	return 0
}

// KeyValue is one item in a VALSET message.
type KeyValue struct {
	Key   Key
	Value uint64
}

// ValSet builds a CFG-VALSET (version 0) frame applying items on layers.
func ValSet(layers Layer, items ...KeyValue) (Frame, error) {
	payload := []byte{0x00, byte(layers), 0x00, 0x00}
	for _, it := range items {
		size := it.Key.Size()
		if size == 0 {
			return Frame{}, fmt.Errorf("ubx: key 0x%08X has no value size", uint32(it.Key))
		}
		var kv [12]byte
		binary.LittleEndian.PutUint32(kv[0:4], uint32(it.Key))
		binary.LittleEndian.PutUint64(kv[4:12], it.Value)
		payload = append(payload, kv[:4+size]...)
	}
	return Frame{Class: ClassCFG, ID: IDCfgValSet, Payload: payload}, nil
}

// Protocol is a set of output protocols for one port.
type Protocol byte

const (
	ProtoUBX  Protocol = 0x01
	ProtoNMEA Protocol = 0x02
)

// ParseProtocols parses "ubx", "nmea" or "ubx+nmea".
func ParseProtocols(s string) (Protocol, error) {
	var p Protocol
	for _, part := range strings.Split(strings.ToLower(strings.TrimSpace(s)), "+") {
		switch strings.TrimSpace(part) {
		case "ubx":
			p |= ProtoUBX
		case "nmea":
			p |= ProtoNMEA
		default:
			return 0, fmt.Errorf("unknown output protocol %q", part)
		}
	}
	return p, nil
}

func (p Protocol) String() string {
	var parts []string
	if p&ProtoUBX != 0 {
		parts = append(parts, "ubx")
	}
	if p&ProtoNMEA != 0 {
		parts = append(parts, "nmea")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// Port identifies a receiver interface.
type Port int

const (
	PortI2C Port = iota
	PortUART1
	PortUSB
)

// OutputProtocolItems returns the VALSET items that enable exactly protos on
// port.
func OutputProtocolItems(port Port, protos Protocol) ([]KeyValue, error) {
	var ubxKey, nmeaKey Key
	switch port {
	case PortI2C:
		ubxKey, nmeaKey = KeyI2COutProtUBX, KeyI2COutProtNMEA
	case PortUART1:
		ubxKey, nmeaKey = KeyUART1OutProtUBX, KeyUART1OutProtNMEA
	case PortUSB:
		ubxKey, nmeaKey = KeyUSBOutProtUBX, KeyUSBOutProtNMEA
	default:
		return nil, fmt.Errorf("ubx: unknown port %d", port)
	}
	return []KeyValue{
		{Key: ubxKey, Value: boolValue(protos&ProtoUBX != 0)},
		{Key: nmeaKey, Value: boolValue(protos&ProtoNMEA != 0)},
	}, nil
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
