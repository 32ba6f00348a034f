// Package config defines the Engine.IO server configuration as a struct
// built through functional options.
package config

import (
	"encoding/json"
	"net/http"
	"time"
)

// TransportName identifies one of the two supported low-level transports.
type TransportName string

const (
	Polling   TransportName = "polling"
	WebSocket TransportName = "websocket"
)

// OriginMatcher decides whether a CORS request Origin is allowed. Returning
// true allows the request; the zero value (nil) is treated as "no
// allowlist configured".
type OriginMatcher func(origin string) bool

// CookieConfig is the structured cookie spec
type CookieConfig struct {
	Name     string
	Path     string
	SameSite http.SameSite
	Secure   bool
	HttpOnly bool
}

// JSONCodec lets an embedder swap the JSON encoder/decoder used for the
// handshake OPEN packet and for decoding structured MESSAGE payloads.
type JSONCodec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type defaultJSONCodec struct{}

func (defaultJSONCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (defaultJSONCodec) Unmarshal(d []byte, v any) error { return json.Unmarshal(d, v) }

// ServerConfig holds every recognized Engine.IO server option.
type ServerConfig struct {
	PingInterval      time.Duration
	PingTimeout       time.Duration
	PingGracePeriod   time.Duration
	UpgradeTimeout    time.Duration
	MaxHTTPBufferSize int64

	AllowUpgrades bool
	Transports    map[TransportName]bool

	CompressionEnabled   bool
	CompressionThreshold int64

	Cookie *CookieConfig

	// CorsAllowedOrigins is nil or the literal "*" (any Origin is allowed and
	// echoed back), or an OriginMatcher predicate built from a static
	// allowlist or supplied directly.
	CorsAllowedOrigins any
	CorsCredentials    bool

	MonitorClients bool

	JSON JSONCodec

	// Path is the HTTP mount point, default "/engine.io/".
	Path string
}

// Option mutates a ServerConfig at construction time.
type Option func(*ServerConfig)

// New builds a ServerConfig from the given options, starting from the
// protocol's documented defaults.
func New(opts ...Option) *ServerConfig {
	c := &ServerConfig{
		PingInterval:         25 * time.Second,
		PingTimeout:          20 * time.Second,
		PingGracePeriod:      0,
		UpgradeTimeout:       10 * time.Second,
		MaxHTTPBufferSize:    1e6,
		AllowUpgrades:        true,
		Transports:           map[TransportName]bool{Polling: true, WebSocket: true},
		CompressionEnabled:   true,
		CompressionThreshold: 1024,
		CorsAllowedOrigins:   "*",
		CorsCredentials:      false,
		MonitorClients:       true,
		JSON:                 defaultJSONCodec{},
		Path:                 "/engine.io/",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithPingInterval(d time.Duration) Option { return func(c *ServerConfig) { c.PingInterval = d } }
func WithPingTimeout(d time.Duration) Option  { return func(c *ServerConfig) { c.PingTimeout = d } }
func WithPingGracePeriod(d time.Duration) Option {
	return func(c *ServerConfig) { c.PingGracePeriod = d }
}
func WithUpgradeTimeout(d time.Duration) Option {
	return func(c *ServerConfig) { c.UpgradeTimeout = d }
}
func WithMaxHTTPBufferSize(n int64) Option {
	return func(c *ServerConfig) { c.MaxHTTPBufferSize = n }
}
func WithAllowUpgrades(allow bool) Option { return func(c *ServerConfig) { c.AllowUpgrades = allow } }

// WithTransports restricts the enabled transport set.
func WithTransports(names ...TransportName) Option {
	return func(c *ServerConfig) {
		m := make(map[TransportName]bool, len(names))
		for _, n := range names {
			m[n] = true
		}
		c.Transports = m
	}
}

func WithCompression(enabled bool, threshold int64) Option {
	return func(c *ServerConfig) {
		c.CompressionEnabled = enabled
		c.CompressionThreshold = threshold
	}
}

// WithCookieName sets the legacy-style single cookie name (default path
// "/", SameSite=Lax).
func WithCookieName(name string) Option {
	return func(c *ServerConfig) {
		c.Cookie = &CookieConfig{Name: name, Path: "/", SameSite: http.SameSiteLaxMode}
	}
}

// WithCookie sets the full structured cookie spec
func WithCookie(cc CookieConfig) Option {
	return func(c *ServerConfig) {
		if cc.Name == "" {
			cc.Name = "io"
		}
		if cc.Path == "" {
			cc.Path = "/"
		}
		if cc.SameSite == http.SameSiteDefaultMode {
			cc.SameSite = http.SameSiteLaxMode
		}
		c.Cookie = &cc
	}
}

// WithCorsOrigins sets a static allowlist of origins. A single "*" is
// treated as the wildcard (equivalent to the default), not a literal
// origin string.
func WithCorsOrigins(origins ...string) Option {
	if len(origins) == 1 && origins[0] == "*" {
		return func(c *ServerConfig) { c.CorsAllowedOrigins = "*" }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *ServerConfig) {
		c.CorsAllowedOrigins = OriginMatcher(func(origin string) bool { return allowed[origin] })
	}
}

// WithCorsMatcher sets an arbitrary origin predicate.
func WithCorsMatcher(fn OriginMatcher) Option {
	return func(c *ServerConfig) { c.CorsAllowedOrigins = fn }
}

func WithCorsCredentials(allow bool) Option {
	return func(c *ServerConfig) { c.CorsCredentials = allow }
}

func WithMonitorClients(enabled bool) Option {
	return func(c *ServerConfig) { c.MonitorClients = enabled }
}

func WithJSONCodec(codec JSONCodec) Option {
	return func(c *ServerConfig) { c.JSON = codec }
}

func WithPath(path string) Option {
	return func(c *ServerConfig) { c.Path = path }
}

// HasTransport reports whether name is in the enabled transport set.
func (c *ServerConfig) HasTransport(name TransportName) bool {
	return c.Transports[name]
}
