package httpx

import (
	"bytes"
	"io"
	"net/http"

	"github.com/valyala/fasthttp"
)

// FastHTTPAdapter mounts a HandlerFunc on a fasthttp server. The RequestCtx
// itself serves as the request context, so handler cancellation follows the
// connection. Response headers are buffered and flushed on the first
// WriteHeader call.
func FastHTTPAdapter(h HandlerFunc) fasthttp.RequestHandler {
	return func(rc *fasthttp.RequestCtx) {
		hdr := make(http.Header)
		rc.Request.Header.VisitAll(func(k, v []byte) {
			hdr.Add(string(k), string(v))
		})

		req := &Request{
			Ctx:        rc,
			Method:     string(rc.Method()),
			Path:       string(rc.Path()),
			Header:     hdr,
			Body:       io.NopCloser(bytes.NewReader(rc.PostBody())),
			RemoteAddr: rc.RemoteAddr().String(),
			Raw:        rc,
		}

		h(&fastResponseWriter{rc: rc, header: make(http.Header)}, req)
		_ = req.Body.Close()
	}
}

type fastResponseWriter struct {
	rc     *fasthttp.RequestCtx
	header http.Header
	wrote  bool
}

func (f *fastResponseWriter) Header() http.Header { return f.header }

func (f *fastResponseWriter) WriteHeader(status int) {
	if f.wrote {
		return
	}
	f.wrote = true
	for k, vals := range f.header {
		for _, v := range vals {
			f.rc.Response.Header.Add(k, v)
		}
	}
	f.rc.SetStatusCode(status)
}

func (f *fastResponseWriter) Write(b []byte) (int, error) {
	f.WriteHeader(http.StatusOK)
	return f.rc.Write(b)
}
