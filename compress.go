package engineio

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/kosmic-labs/engineio/config"
)

// negotiateEncoding picks the best content-coding the client advertises via
// Accept-Encoding, preferring brotli and zstd over the stdlib codecs when
// offered, and "" when none apply or compression is disabled/too small to
// bother with.
func negotiateEncoding(r *http.Request, cfg *config.ServerConfig, bodyLen int) string {
	if !cfg.CompressionEnabled || int64(bodyLen) < cfg.CompressionThreshold {
		return ""
	}
	accept := r.Header.Get("Accept-Encoding")
	if accept == "" {
		return ""
	}
	for _, enc := range []string{"br", "zstd", "gzip", "deflate"} {
		if strings.Contains(accept, enc) {
			return enc
		}
	}
	return ""
}

// compressBody encodes body with the named content-coding.
func compressBody(encoding string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case "deflate":
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case "br":
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return body, nil
	}
	return buf.Bytes(), nil
}

// writeResponseBody writes body to w, applying content-coding negotiation
// when it's worth the trouble.
func writeResponseBody(w http.ResponseWriter, r *http.Request, cfg *config.ServerConfig, contentType string, body []byte) {
	encoding := negotiateEncoding(r, cfg, len(body))
	if encoding != "" {
		if compressed, err := compressBody(encoding, body); err == nil {
			w.Header().Set("Content-Encoding", encoding)
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(compressed)
			return
		}
		log.Debug("compression with %s failed, falling back to identity", encoding)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
