package fwpkg

import "errors"

// Error kinds, all fatal to the current parse. They are exported as
// sentinels so collaborators can distinguish them with errors.Is.
var (
	ErrUnsupportedVersion    = errors.New("fwpkg: unsupported protocol version")
	ErrInvalidMagic          = errors.New("fwpkg: invalid magic UUID")
	ErrTruncated             = errors.New("fwpkg: truncated input")
	ErrUnknownDescriptorType = errors.New("fwpkg: unknown descriptor type")
	ErrMalformedRecord       = errors.New("fwpkg: malformed header record")

	// ErrNoMatchingConsumer is a sub-case of ErrMalformedRecord: every image
	// in the package went unmatched by any registered consumer. Wrapped so
	// callers can tell it apart from a structurally broken header with
	// errors.Is while ProcessBytes still just returns false either way.
	ErrNoMatchingConsumer = errors.New("fwpkg: no registered consumer matched any component image")
)
