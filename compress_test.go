package engineio

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kosmic-labs/engineio/config"
)

func TestNegotiateEncodingPrefersBrotli(t *testing.T) {
	cfg := config.New(config.WithCompression(true, 0))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	if got := negotiateEncoding(req, cfg, 2048); got != "br" {
		t.Fatalf("expected br to be preferred, got %q", got)
	}
}

func TestNegotiateEncodingBelowThresholdSkips(t *testing.T) {
	cfg := config.New(config.WithCompression(true, 1024))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	if got := negotiateEncoding(req, cfg, 10); got != "" {
		t.Fatalf("expected no encoding below threshold, got %q", got)
	}
}

func TestNegotiateEncodingDisabled(t *testing.T) {
	cfg := config.New(config.WithCompression(false, 0))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")

	if got := negotiateEncoding(req, cfg, 10000); got != "" {
		t.Fatalf("expected no encoding when compression disabled, got %q", got)
	}
}

func TestCompressBodyGzipRoundtrips(t *testing.T) {
	body := []byte(strings.Repeat("hello engine.io ", 100))
	compressed, err := compressBody("gzip", body)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(out, body) {
		t.Fatalf("roundtrip mismatch")
	}
}

func TestWriteResponseBodySetsContentEncoding(t *testing.T) {
	cfg := config.New(config.WithCompression(true, 0))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()

	writeResponseBody(rr, req, cfg, "text/plain", []byte(strings.Repeat("x", 2000)))

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("expected gzip content-encoding, got %q", got)
	}
}

func TestWriteResponseBodyIdentityWhenNotNegotiated(t *testing.T) {
	cfg := config.New(config.WithCompression(true, 0))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()

	writeResponseBody(rr, req, cfg, "text/plain", []byte("hi"))

	if got := rr.Header().Get("Content-Encoding"); got != "" {
		t.Fatalf("expected no content-encoding without Accept-Encoding, got %q", got)
	}
	if rr.Body.String() != "hi" {
		t.Fatalf("expected identity body, got %q", rr.Body.String())
	}
}
