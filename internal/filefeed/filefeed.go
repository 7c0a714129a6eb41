// Package filefeed streams a firmware update package file into a
// fwpkg.Parser in bounded chunks, the way a bundle would arrive over a
// slow transport rather than all at once.
package filefeed

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/bmc-fw/fwupdate/pkg/fwpkg"
)

// DefaultChunkSize matches what a typical BMC transport (MCTP/PLDM) would
// hand the parser per frame; callers with a faster local transport can
// pass a larger size to Feeder.ChunkSize.
const DefaultChunkSize = 4096

// Feeder opens a package file and feeds it to a Parser one bounded chunk
// at a time.
type Feeder struct {
	path      string
	file      *os.File
	ChunkSize int
	logger    hclog.Logger
}

// New creates a Feeder for path, logging nothing by default.
func New(path string) *Feeder {
	return NewWithLogger(path, hclog.NewNullLogger())
}

// NewWithLogger is New with an explicit structured logger.
func NewWithLogger(path string, logger hclog.Logger) *Feeder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Feeder{path: path, ChunkSize: DefaultChunkSize, logger: logger}
}

// Open opens the underlying file. Feed calls it implicitly if needed.
func (f *Feeder) Open() error {
	if f.file != nil {
		return nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("filefeed: open %s: %w", f.path, err)
	}
	f.file = file
	return nil
}

// Close closes the underlying file.
func (f *Feeder) Close() error {
	if f.file != nil {
		err := f.file.Close()
		f.file = nil
		return err
	}
	return nil
}

// Feed reads the file in ChunkSize-bounded chunks and calls
// parser.ProcessBytes on each, stopping early once the parser reaches
// fwpkg.StateDone. It returns the number of bytes actually fed and any
// error the read loop or the parser itself encountered.
func (f *Feeder) Feed(parser *fwpkg.Parser) (int64, error) {
	if err := f.Open(); err != nil {
		return 0, err
	}
	defer f.Close()

	chunkSize := f.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	var total int64
	for parser.State() != fwpkg.StateDone {
		n, readErr := f.file.Read(buf)
		if n > 0 {
			total += int64(n)
			if !parser.ProcessBytes(buf[:n]) {
				f.logger.Error("parser rejected package bytes", "error", parser.Err(), "bytes_fed", total)
				return total, fmt.Errorf("filefeed: %s: %w", f.path, parser.Err())
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return total, fmt.Errorf("filefeed: read %s: %w", f.path, readErr)
		}
		if n == 0 {
			break
		}
	}

	f.logger.Debug("package feed complete", "bytes_fed", total, "state", parser.State())
	return total, nil
}
