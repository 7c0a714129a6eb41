// Package httpfeed exposes a chi HTTP handler that streams an uploaded
// firmware update package body straight into a fwpkg.Parser and reports,
// per named consumer route, how many image bytes it received.
package httpfeed

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"github.com/bmc-fw/fwupdate/pkg/fwpkg"
)

// ChunkSize is how much of the request body is read per Parser.ProcessBytes
// call, bounding memory use for a single upload regardless of package size.
const ChunkSize = 32 * 1024

// ConsumerRoute names one registered consumer for reporting purposes; the
// descriptors are what actually drive matching (spec.md §4.5).
type ConsumerRoute struct {
	Name        string
	Descriptors []fwpkg.Descriptor
}

// Handler serves POST /firmware, registering a fresh Parser per request
// against its consumer routes so concurrent uploads never share parser
// state.
type Handler struct {
	routes []ConsumerRoute
	logger hclog.Logger
}

// NewHandler creates a Handler that dispatches each upload against routes.
func NewHandler(routes []ConsumerRoute, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{routes: routes, logger: logger}
}

// Routes mounts the handler's endpoints onto a fresh chi.Router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/firmware", h.ServeUpload)
	return r
}

type uploadResponse struct {
	BytesReceived int64          `json:"bytes_received"`
	State         string         `json:"state"`
	MatchedBytes  map[string]int `json:"matched_bytes"`
}

// ServeUpload handles POST /firmware: it streams r.Body into a new parser
// registered with every route in h.routes, then reports how many bytes
// each named route's consumer received.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	parser, err := fwpkg.NewParserWithLogger(fwpkg.ProtocolVersion, h.logger.Named("parser"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	matched := make(map[string]int, len(h.routes))
	for _, route := range h.routes {
		name := route.Name
		parser.RegisterComponentRoute(route.Descriptors, func(status error, data []byte) {
			matched[name] += len(data)
		})
	}

	total, feedErr := streamBody(r.Body, parser)
	if feedErr != nil {
		h.logger.Error("upload rejected", "error", feedErr, "bytes_received", total)
		unprocessableEntity(w, feedErr.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, uploadResponse{
		BytesReceived: total,
		State:         parser.State().String(),
		MatchedBytes:  matched,
	})
}

// streamBody reads body in ChunkSize-bounded pieces, feeding each to
// parser, mirroring internal/filefeed's file-based read loop but over an
// arbitrary io.Reader.
func streamBody(body io.Reader, parser *fwpkg.Parser) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64

	for parser.State() != fwpkg.StateDone {
		n, readErr := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if !parser.ProcessBytes(buf[:n]) {
				return total, parser.Err()
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return total, readErr
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
