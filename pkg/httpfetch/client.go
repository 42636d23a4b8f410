// Package httpfetch implements the bounded-retry HTTP client used to fetch
// JWKS documents and OpenID configuration metadata.
package httpfetch

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// ClientBuilder constructs an *http.Client suitable for fetching remote
// JSON documents: bounded timeouts and an optional CA bundle for private
// issuer deployments. It intentionally omits a private-IP-blocking
// transport guard (see DESIGN.md) since the PDP's issuer set is an
// operator-controlled allowlist, not arbitrary user input.
type ClientBuilder struct {
	timeout    time.Duration
	caCertPath string
}

// NewClientBuilder returns a builder with the package defaults: a 30s
// overall timeout and 10s TLS-handshake/response-header timeouts.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{timeout: 30 * time.Second}
}

// WithTimeout overrides the overall request timeout.
func (b *ClientBuilder) WithTimeout(d time.Duration) *ClientBuilder {
	b.timeout = d
	return b
}

// WithCABundle adds a PEM CA bundle to the client's trust pool. A blank
// path is a no-op, so builders can be constructed unconditionally.
func (b *ClientBuilder) WithCABundle(path string) *ClientBuilder {
	b.caCertPath = path
	return b
}

// Build assembles the *http.Client.
func (b *ClientBuilder) Build() (*http.Client, error) {
	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	if b.caCertPath != "" {
		pemBytes, err := os.ReadFile(b.caCertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle %q: %w", b.caCertPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("no certificates parsed from CA bundle %q", b.caCertPath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &http.Client{
		Timeout:   b.timeout,
		Transport: transport,
	}, nil
}
