package httpx

import "net/http"

// NetHTTPAdapter mounts a HandlerFunc on a net/http server. Headers pass
// through to the underlying writer directly; the wrapper only enforces the
// first-WriteHeader-wins contract.
func NetHTTPAdapter(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := &Request{
			Ctx:        r.Context(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Header:     r.Header,
			Body:       r.Body,
			RemoteAddr: r.RemoteAddr,
			Raw:        r,
		}
		h(&netResponseWriter{w: w}, req)
	})
}

type netResponseWriter struct {
	w     http.ResponseWriter
	wrote bool
}

func (n *netResponseWriter) Header() http.Header { return n.w.Header() }

func (n *netResponseWriter) WriteHeader(status int) {
	if n.wrote {
		return
	}
	n.wrote = true
	n.w.WriteHeader(status)
}

func (n *netResponseWriter) Write(b []byte) (int, error) {
	n.WriteHeader(http.StatusOK)
	return n.w.Write(b)
}
