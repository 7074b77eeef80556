package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestNetHTTPAdapterRoundTrip(t *testing.T) {
	var gotMethod, gotPath string
	h := NetHTTPAdapter(func(w ResponseWriter, r *Request) {
		gotMethod, gotPath = r.Method, r.Path
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if gotMethod != http.MethodGet || gotPath != "/healthz" {
		t.Fatalf("handler saw %s %s", gotMethod, gotPath)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestNetHTTPAdapterFirstStatusWins(t *testing.T) {
	h := NetHTTPAdapter(func(w ResponseWriter, r *Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("missing"))
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestFastHTTPAdapterRoundTrip(t *testing.T) {
	handler := FastHTTPAdapter(func(w ResponseWriter, r *Request) {
		if r.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var rc fasthttp.RequestCtx
	rc.Request.SetRequestURI("/healthz")
	rc.Request.Header.SetMethod(http.MethodGet)
	handler(&rc)

	if rc.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", rc.Response.StatusCode())
	}
	var body map[string]string
	if err := json.Unmarshal(rc.Response.Body(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}
