package transport

import (
	"net/http"
)

// HTTPContext adapts a net/http request/response pair to the Environ view,
// and carries the raw (w, r) pair through to the websocket upgrader.
type HTTPContext struct {
	w       http.ResponseWriter
	r       *http.Request
	environ *Environ
}

// NewHTTPContext translates an *http.Request into the stable Environ view.
func NewHTTPContext(w http.ResponseWriter, r *http.Request) *HTTPContext {
	headers := make(map[string][]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = v
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return &HTTPContext{
		w: w,
		r: r,
		environ: &Environ{
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.Query(),
			Headers:    headers,
			Body:       r.Body,
			RawURI:     r.RequestURI,
			Scheme:     scheme,
			RemoteAddr: r.RemoteAddr,
		},
	}
}

// Environ returns the stable request view, for ConnectHandler.
func (c *HTTPContext) Environ() *Environ { return c.environ }

// Request returns the underlying *http.Request, for callers (e.g. the
// websocket upgrader) that need framework-specific access.
func (c *HTTPContext) Request() *http.Request { return c.r }

// ResponseWriter returns the underlying http.ResponseWriter.
func (c *HTTPContext) ResponseWriter() http.ResponseWriter { return c.w }
