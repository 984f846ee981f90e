// SPDX-License-Identifier: MIT

package config

import "time"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., ":8808")
	ListenAddr string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout bounds response writes; 0 means no timeout, which the
	// stream endpoint requires since its response never completes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration

	// MaxHeaderBytes caps request header parsing
	MaxHeaderBytes int

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration
}

const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 0 // no timeout, crucial for streaming
	defaultIdleTimeout     = 120 * time.Second
	defaultMaxHeaderBytes  = 1 << 20 // 1 MB
	defaultShutdownTimeout = 10 * time.Second
)

// ParseServerConfig builds the server configuration for the given listen
// address, with timeouts overridable via environment variables.
func ParseServerConfig(listenAddr string) ServerConfig {
	shutdownTimeout := ParseDuration("FBMIRROR_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	if shutdownTimeout < 3*time.Second {
		shutdownTimeout = 3 * time.Second
	}

	maxHeaderBytes := ParseInt("FBMIRROR_SERVER_MAX_HEADER_BYTES", defaultMaxHeaderBytes)
	if maxHeaderBytes <= 0 {
		maxHeaderBytes = defaultMaxHeaderBytes
	}

	return ServerConfig{
		ListenAddr:      listenAddr,
		ReadTimeout:     ParseDuration("FBMIRROR_SERVER_READ_TIMEOUT", defaultReadTimeout),
		WriteTimeout:    ParseDuration("FBMIRROR_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
		IdleTimeout:     ParseDuration("FBMIRROR_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		MaxHeaderBytes:  maxHeaderBytes,
		ShutdownTimeout: shutdownTimeout,
	}
}
