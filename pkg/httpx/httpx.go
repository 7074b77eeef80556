// Package httpx decouples the health and probe handlers from a concrete HTTP
// server. A handler written against these types runs unchanged under net/http
// inside the API server and under fasthttp in the standalone probe, so
// deployments pick whichever transport their probe tooling expects.
package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Request is the transport-neutral view of an inbound request. Handlers that
// need cancellation or deadlines use Ctx.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
	// Raw exposes the underlying transport request (*http.Request or
	// *fasthttp.RequestCtx) as an escape hatch.
	Raw interface{}
}

// ResponseWriter is the subset of response behavior both transports provide.
// WriteHeader is idempotent: the first call wins, and Write flushes a 200 when
// no status was set.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the handler signature shared by all adapters.
type HandlerFunc func(w ResponseWriter, r *Request)

// WriteJSON marshals v and writes it with the given status. Marshal failures
// turn into a bare 500 so a broken payload never produces a half-written body.
func WriteJSON(w ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
