package filefeed

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmc-fw/fwupdate/pkg/fwpkg"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFeeder_EmptyFileLeavesParserWaiting(t *testing.T) {
	path := writeTempFile(t, nil)
	parser, err := fwpkg.NewParser(fwpkg.ProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}

	f := New(path)
	n, err := f.Feed(parser)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if n != 0 {
		t.Fatalf("fed %d bytes, want 0", n)
	}
	if parser.State() != fwpkg.StateWaitingForUUID {
		t.Fatalf("State() = %v, want WaitingForUUID", parser.State())
	}
}

func TestFeeder_BadMagicPropagatesParserError(t *testing.T) {
	path := writeTempFile(t, make([]byte, 32))
	parser, err := fwpkg.NewParser(fwpkg.ProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}

	f := New(path)
	_, feedErr := f.Feed(parser)
	if feedErr == nil {
		t.Fatal("expected Feed to fail on bad magic")
	}
	if !errors.Is(feedErr, fwpkg.ErrInvalidMagic) {
		t.Fatalf("feedErr = %v, want wrapping ErrInvalidMagic", feedErr)
	}
}

func TestFeeder_ChunkSizeDefaultsWhenUnset(t *testing.T) {
	f := New("/nonexistent")
	if f.ChunkSize != DefaultChunkSize {
		t.Fatalf("ChunkSize = %d, want %d", f.ChunkSize, DefaultChunkSize)
	}
}
