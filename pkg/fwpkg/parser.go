package fwpkg

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// ParserState is one node of the streaming state machine (spec §4.3).
type ParserState int

const (
	StateWaitingForUUID ParserState = iota
	StateWaitingForLength
	StateWaitingForHeader
	StateParsingOutComponents
	StateDone
)

func (s ParserState) String() string {
	switch s {
	case StateWaitingForUUID:
		return "WaitingForUUID"
	case StateWaitingForLength:
		return "WaitingForLength"
	case StateWaitingForHeader:
		return "WaitingForHeader"
	case StateParsingOutComponents:
		return "ParsingOutComponents"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// ImageCallback receives the bytes of a component image as they stream
// past, possibly across several calls. status is non-nil only in cases
// this package never currently produces; it exists so callers have a
// single place to plug in delivery-side failures.
type ImageCallback func(status error, data []byte)

type registeredConsumer struct {
	descriptors []Descriptor
	callback    ImageCallback
}

// Parser consumes a firmware update package incrementally, chunk by chunk,
// and dispatches each component image's bytes to whichever registered
// consumer's descriptors are a subset of the matching device record's.
//
// A Parser is not safe for concurrent use: ProcessBytes and
// RegisterComponentRoute must be serialized by the caller (spec §5).
type Parser struct {
	logger hclog.Logger

	state   ParserState
	lastErr error

	headerBytes []byte
	headerSize  uint16

	images       []imagePlanEntry
	currentImage int

	bytesReceived       uint64
	totalBytesToReceive uint64

	registeredComponents []registeredConsumer
}

// NewParser constructs a Parser for the given protocol version, logging
// nothing by default. Only ProtocolVersion is currently accepted.
func NewParser(version string) (*Parser, error) {
	return NewParserWithLogger(version, hclog.NewNullLogger())
}

// NewParserWithLogger is NewParser with an explicit structured logger.
func NewParserWithLogger(version string, logger hclog.Logger) (*Parser, error) {
	if version != ProtocolVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Parser{
		logger: logger,
		state:  StateWaitingForUUID,
	}, nil
}

// RegisterComponentRoute sorts descriptors in place and registers callback
// to receive any component image whose matching device record's descriptor
// set is a superset of descriptors. Registration order breaks ties among
// consumers that could both claim the same image: first registered wins
// (spec §4.5).
func (p *Parser) RegisterComponentRoute(descriptors []Descriptor, callback ImageCallback) {
	SortDescriptors(descriptors)
	p.registeredComponents = append(p.registeredComponents, registeredConsumer{
		descriptors: descriptors,
		callback:    callback,
	})
	p.logger.Debug("registered component route", "descriptor_count", len(descriptors))
}

// State reports the parser's current state.
func (p *Parser) State() ParserState {
	return p.state
}

// Err returns the error that caused the most recent ProcessBytes call to
// return false, or nil if no fatal error has occurred yet.
func (p *Parser) Err() error {
	return p.lastErr
}

// ProcessBytes feeds the next chunk of package bytes to the parser. It
// returns false on any fatal parse error, after which the parser's
// behavior on further input is undefined and the caller should stop
// feeding it (spec §4.6).
func (p *Parser) ProcessBytes(chunk []byte) bool {
	for len(chunk) > 0 && p.state != StateDone {
		n, ok := p.updateStateMachine(chunk)
		if !ok {
			return false
		}
		chunk = chunk[n:]
		p.bytesReceived += uint64(n)

		if p.state == StateParsingOutComponents && p.bytesReceived >= p.totalBytesToReceive {
			p.state = StateDone
			p.logger.Debug("package fully received", "total_bytes", p.totalBytesToReceive)
		}
	}
	return true
}

// updateStateMachine consumes a prefix of chunk appropriate to the current
// state and reports how many bytes it accounted for. A false return means
// a fatal error was recorded in p.lastErr.
func (p *Parser) updateStateMachine(chunk []byte) (int, bool) {
	switch p.state {
	case StateWaitingForUUID:
		return p.stepWaitingForUUID(chunk)
	case StateWaitingForLength:
		return p.stepWaitingForLength(chunk)
	case StateWaitingForHeader:
		return p.stepWaitingForHeader(chunk)
	case StateParsingOutComponents:
		return p.stepParsingOutComponents(chunk)
	default:
		return len(chunk), true
	}
}

// accumulate appends a prefix of chunk to the header scratch buffer up to
// target total bytes, returning how much of chunk it consumed and whether
// the target has now been reached.
func (p *Parser) accumulate(chunk []byte, target int) (int, bool) {
	needed := target - len(p.headerBytes)
	n := len(chunk)
	if n > needed {
		n = needed
	}
	p.headerBytes = append(p.headerBytes, chunk[:n]...)
	return n, len(p.headerBytes) >= target
}

func (p *Parser) stepWaitingForUUID(chunk []byte) (int, bool) {
	n, complete := p.accumulate(chunk, uuidLength)
	if !complete {
		return n, true
	}
	if !bytes.Equal(p.headerBytes[:uuidLength], magicUUID[:]) {
		p.lastErr = ErrInvalidMagic
		p.logger.Error("magic UUID mismatch")
		return n, false
	}
	p.state = StateWaitingForLength
	return n, true
}

func (p *Parser) stepWaitingForLength(chunk []byte) (int, bool) {
	n, complete := p.accumulate(chunk, headerSizeKnownAt)
	if !complete {
		return n, true
	}
	p.headerSize = binary.LittleEndian.Uint16(p.headerBytes[headerSizeFieldOffset:headerSizeKnownAt])
	if int(p.headerSize) < headerSizeKnownAt {
		p.lastErr = fmt.Errorf("%w: header size %d is smaller than the %d bytes already read", ErrTruncated, p.headerSize, headerSizeKnownAt)
		p.logger.Error("header size too small", "header_size", p.headerSize)
		return n, false
	}
	p.logger.Debug("header size known", "header_size", p.headerSize)
	p.state = StateWaitingForHeader
	return n, true
}

func (p *Parser) stepWaitingForHeader(chunk []byte) (int, bool) {
	n, complete := p.accumulate(chunk, int(p.headerSize))
	if !complete {
		return n, true
	}
	if err := p.parseHeader(); err != nil {
		p.lastErr = err
		p.logger.Error("failed to parse header", "error", err)
		return n, false
	}
	p.logger.Debug("header parsed", "image_count", len(p.images))
	p.state = StateParsingOutComponents
	return n, true
}

func (p *Parser) stepParsingOutComponents(chunk []byte) (int, bool) {
	n := p.handoutFirmwareImage(chunk)
	return n, true
}

// handoutFirmwareImage implements spec §4.4's seven-step contract: advance
// past zero-length images, gap around or deliver into the current image,
// and report how many bytes of chunk were accounted for.
func (p *Parser) handoutFirmwareImage(chunk []byte) int {
	for p.currentImage < len(p.images) && p.images[p.currentImage].length == 0 {
		p.currentImage++
	}
	if p.currentImage >= len(p.images) {
		return len(chunk)
	}

	img := p.images[p.currentImage]
	br := p.bytesReceived
	left := uint64(img.offset)
	right := left + uint64(img.length)
	chunkLen := uint64(len(chunk))

	if br+chunkLen <= left {
		return len(chunk)
	}
	if br >= right {
		p.currentImage++
		return 0
	}

	start := br
	if left > start {
		start = left
	}
	if start > br {
		return int(start - br)
	}

	n := right - start
	if n > chunkLen {
		n = chunkLen
	}
	if img.consumer != nil {
		img.consumer(nil, chunk[:n])
	}
	if n == right-start {
		p.currentImage++
	}
	return int(n)
}
