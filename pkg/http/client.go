package http

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig holds HTTP client configuration
// Optimized for different WordPress fleet shapes (single site, many sites)
type HTTPClientConfig struct {
	// Connection pooling
	MaxIdleConns        int           // Total idle connections across all hosts
	MaxIdleConnsPerHost int           // Idle connections per host
	MaxConnsPerHost     int           // Maximum connections per host (including active)
	IdleConnTimeout     time.Duration // How long idle connections stay alive

	// Timeouts
	DialTimeout           time.Duration // TCP connection timeout
	TLSHandshakeTimeout   time.Duration // TLS handshake timeout
	ResponseHeaderTimeout time.Duration // Waiting for response headers
	ExpectContinueTimeout time.Duration // 100-continue timeout

	// Keep-alive
	DisableKeepAlives bool
	KeepAlive         time.Duration

	// Compression
	DisableCompression bool

	// TLS
	InsecureSkipVerify bool
	MinTLSVersion      uint16
}

// SingleSiteClientConfig returns optimized config for a deployment that
// talks to one WordPress host - tune the whole pool for depth to it
// rather than spread across many hosts.
func SingleSiteClientConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		// One host - tune for it
		MaxIdleConns:        50,  // Total pool size
		MaxIdleConnsPerHost: 50,  // All for the one site
		MaxConnsPerHost:     100, // Allow 100 concurrent to the site
		IdleConnTimeout:     90 * time.Second,

		// Timeouts tuned for a WP REST backend (PHP cold starts, plugins)
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Keep-alive
		DisableKeepAlives: false,
		KeepAlive:         60 * time.Second,

		// Compression (WP REST responses are JSON, worth compressing)
		DisableCompression: false,

		// TLS
		InsecureSkipVerify: false, // Production should verify
		MinTLSVersion:      tls.VersionTLS12,
	}
}

// MultiSiteClientConfig returns optimized config for a deployment managing
// many distinct WordPress sites through the Router - tune for breadth
// across hosts instead of depth to any one.
func MultiSiteClientConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		// Many distinct sites, each its own host
		MaxIdleConns:        200, // Large pool spread across sites
		MaxIdleConnsPerHost: 5,   // Only a few per site
		MaxConnsPerHost:     20,  // Limit concurrent per site
		IdleConnTimeout:     30 * time.Second,

		// Timeouts tuned for a heterogeneous site fleet
		DialTimeout:           8 * time.Second,
		TLSHandshakeTimeout:   8 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Keep-alive
		DisableKeepAlives: false,
		KeepAlive:         30 * time.Second, // Shorter, sites churn more

		// Compression
		DisableCompression: false,

		// TLS
		InsecureSkipVerify: false,
		MinTLSVersion:      tls.VersionTLS12,
	}
}

// DefaultClientConfig returns a balanced configuration for general use.
func DefaultClientConfig() *HTTPClientConfig {
	return &HTTPClientConfig{
		// Balanced settings
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		// Standard timeouts
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Keep-alive
		DisableKeepAlives: false,
		KeepAlive:         60 * time.Second,

		// Compression
		DisableCompression: false,

		// TLS
		InsecureSkipVerify: false,
		MinTLSVersion:      tls.VersionTLS12,
	}
}

// NewHTTPClient creates an HTTP client with the given configuration.
// Optimized for HTTP/2 with connection pooling and keep-alive.
func NewHTTPClient(cfg *HTTPClientConfig, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		// Connection pooling - critical for performance
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		// Timeouts
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,

		// Keep-alive - reuse connections
		DisableKeepAlives: cfg.DisableKeepAlives,

		// Compression
		DisableCompression: cfg.DisableCompression,

		// TLS configuration
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			MinVersion:         cfg.MinTLSVersion,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			},
		},

		// Force HTTP/2 for better performance
		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
