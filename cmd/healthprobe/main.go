package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"

	"inboxd/pkg/httpx"
)

// healthprobe is a tiny sidecar that answers liveness checks without going
// through the full API stack. The transport flag exists so deployments can
// pick whichever server their probe tooling expects.
func main() {
	addr := flag.String("addr", ":8081", "listen address for the health probe")
	ver := flag.String("version", "dev", "version string to return")
	transport := flag.String("transport", "fasthttp", "server transport: fasthttp or nethttp")
	flag.Parse()

	probe := func(w httpx.ResponseWriter, r *httpx.Request) {
		switch r.Path {
		case "/health", "/healthz":
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": *ver})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}

	fmt.Printf("health probe (%s) listening on %s\n", *transport, *addr)
	switch *transport {
	case "nethttp":
		if err := http.ListenAndServe(*addr, httpx.NetHTTPAdapter(probe)); err != nil {
			fmt.Printf("nethttp server exit: %v\n", err)
		}
	default:
		// tune server options for high throughput
		srv := &fasthttp.Server{
			Handler:            httpx.FastHTTPAdapter(probe),
			Name:               "inboxd-healthprobe",
			ReadTimeout:        5 * time.Second,
			WriteTimeout:       5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}
		if err := srv.ListenAndServe(*addr); err != nil {
			fmt.Printf("fasthttp server exit: %v\n", err)
		}
	}
}
