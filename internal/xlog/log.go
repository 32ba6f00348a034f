// Package xlog is a minimal namespaced, colorized debug logger, grounded on
// the zishang520/socket.io project's pkg/log: a DEBUG-env-var-gated,
// glob-filtered logger used the same way across every package of this
// module (e.g. `var log = xlog.New("engine:session")`).
package xlog

import (
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/gookit/color"
)

// DEBUG globally gates Debug output; set directly or exported for embedders
// to flip at startup.
var DEBUG = os.Getenv("DEBUG") != ""

// Output is the shared writer backing every Log instance.
var Output io.Writer = os.Stderr

var namespaceFilter atomic.Pointer[regexp.Regexp]

func init() {
	if ns := os.Getenv("DEBUG"); ns != "" && ns != "1" && ns != "true" {
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(strings.TrimSpace(ns)), `\*`, `.*`) + "$"
		namespaceFilter.Store(regexp.MustCompile(pattern))
	}
}

// Log is a namespaced logger with severity-colored output.
type Log struct {
	*log.Logger
	namespace string
}

// New creates a logger scoped to the given namespace (e.g. "engine:session").
func New(namespace string) *Log {
	return &Log{
		Logger:    log.New(Output, namespace+" ", 0),
		namespace: namespace,
	}
}

func (l *Log) allowed() bool {
	if !DEBUG {
		return false
	}
	if f := namespaceFilter.Load(); f != nil {
		return f.MatchString(l.namespace)
	}
	return true
}

// Debug logs a namespace-filtered, DEBUG-gated message.
func (l *Log) Debug(format string, args ...any) {
	if l.allowed() {
		l.Logger.Println(color.Debug.Sprintf(format, args...))
	}
}

// Info logs an always-on informational message.
func (l *Log) Info(format string, args ...any) {
	l.Logger.Println(color.Info.Sprintf(format, args...))
}

// Warn logs an always-on warning.
func (l *Log) Warn(format string, args ...any) {
	l.Logger.Println(color.Warn.Sprintf(format, args...))
}

// Error logs an always-on error.
func (l *Log) Error(format string, args ...any) {
	l.Logger.Println(color.Danger.Sprintf(format, args...))
}
