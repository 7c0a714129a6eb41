package logging

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// stateTaggingWriter wraps an io.Writer and prefixes each line with the
// value stateFn reports at the moment that line completes, rather than a
// fixed string. Callers plug in the parser's current state (or a route/
// consumer name) so log output shows what the parser was doing when the
// line was emitted, not just the tool's name.
type stateTaggingWriter struct {
	stateFn func() string
	writer  io.Writer
	buffer  bytes.Buffer
}

func newStateTaggingWriter(stateFn func() string, w io.Writer) *stateTaggingWriter {
	return &stateTaggingWriter{stateFn: stateFn, writer: w}
}

// Write implements io.Writer. It buffers data until a newline is
// encountered, then writes the tagged line to the underlying writer.
func (sw *stateTaggingWriter) Write(p []byte) (int, error) {
	n := len(p)
	if _, err := sw.buffer.Write(p); err != nil {
		return 0, err
	}

	for {
		line, err := sw.buffer.ReadBytes('\n')
		if err != nil {
			// Incomplete line: write it back and wait for the rest.
			if len(line) > 0 {
				if _, wErr := sw.buffer.Write(line); wErr != nil {
					return 0, wErr
				}
			}
			break
		}

		if _, err := sw.writer.Write([]byte(sw.prefix())); err != nil {
			return 0, err
		}
		if _, err := sw.writer.Write(line); err != nil {
			return 0, err
		}
	}

	return n, nil
}

func (sw *stateTaggingWriter) prefix() string {
	if sw.stateFn == nil {
		return "🛠️  "
	}
	if state := sw.stateFn(); state != "" {
		return "🛠️  [" + state + "] "
	}
	return "🛠️  "
}

// NewLogger creates an hclog logger whose non-JSON output tags each line
// with whatever stateFn reports at write time — a parser's current state,
// a feed route name, anything the caller considers "current" — instead of
// a static prefix. stateFn may be nil, in which case lines only get the
// plain tool prefix.
func NewLogger(name string, level string, output io.Writer, stateFn func() string) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	// Determine if JSON format should be used
	jsonFormat := os.Getenv("FWUPDATE_JSON_LOG") == "1"

	// Tag lines for non-JSON output only; structured JSON already carries
	// context in its fields.
	if !jsonFormat {
		output = newStateTaggingWriter(stateFn, output)
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts)
}

// GetLogLevel returns the configured log level from environment
func GetLogLevel() string {
	level := os.Getenv("FWUPDATE_LOG_LEVEL")
	if level == "" {
		level = "warn" // Default to warn for production safety
	}
	return level
}
