// Package fwpkg implements the incremental parser for firmware update
// packages: a tagged-union descriptor codec and a streaming state machine
// that routes component images to registered consumers by descriptor match.
package fwpkg

// Core format constants that never change.
// For offsets within the variable-length header, see header.go.

// magicUUID is the fixed 16-byte sequence every package must begin with.
var magicUUID = [16]byte{
	0xF0, 0x18, 0x87, 0x8C, 0xCB, 0x7D, 0x49, 0x43,
	0x98, 0x00, 0xA0, 0x2F, 0x05, 0x9A, 0xCA, 0x02,
}

// ProtocolVersion is the only version string NewParser accepts.
const ProtocolVersion = "1.0.0"

const (
	headerSizeFieldOffset = 17 // offset of the u16 header-size field
	headerSizeKnownAt     = 19 // bytes needed before headerSize is readable
	uuidLength            = 16
)
