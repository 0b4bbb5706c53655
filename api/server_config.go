package api

import (
	"log/slog"
	"time"
)

// Defaults applied by HTTPServerConfig.WithDefaults.
const (
	DefaultGracefulShutdownDuration = 30 * time.Second
	DefaultReadTimeout              = 60 * time.Second
	DefaultWriteTimeout             = 30 * time.Second
)

// HTTPServerConfig configures the metadata governance HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port of the API listener.
	ListenAddr string

	// MetricsAddr is the address of the Prometheus listener. Empty disables it.
	MetricsAddr string

	// EnablePprof mounts /debug/pprof on the API listener.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long Shutdown reports not ready before it stops
	// accepting requests.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds the wait for in-flight requests.
	GracefulShutdownDuration time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WithDefaults returns a copy with zero timeouts and a nil logger replaced.
func (c HTTPServerConfig) WithDefaults() *HTTPServerConfig {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.GracefulShutdownDuration == 0 {
		c.GracefulShutdownDuration = DefaultGracefulShutdownDuration
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return &c
}
