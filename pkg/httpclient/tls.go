package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLSConfig holds TLS options for upstream inference endpoints.
type TLSConfig struct {
	InsecureSkipVerify bool   // Skip certificate verification (VERIFY_SSL=false)
	CACertificate      string // Path to custom CA certificate file
}

// ConfigureTLS creates an http.Transport with the given TLS configuration.
func ConfigureTLS(config *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{},
	}

	if config != nil && config.CACertificate != "" {
		caCert, err := os.ReadFile(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate from %s: %w", config.CACertificate, err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s", config.CACertificate)
		}

		transport.TLSClientConfig.RootCAs = caCertPool
	}

	if config != nil && config.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	return transport, nil
}

// WithTLSConfig configures the underlying transport. Errors fall back to
// the default transport so a bad CA path degrades to standard verification.
func WithTLSConfig(config *TLSConfig) (Option, error) {
	if config == nil {
		return func(c *Client) {}, nil
	}

	transport, err := ConfigureTLS(config)
	if err != nil {
		return nil, err
	}

	return func(c *Client) {
		if c.client != nil {
			c.client.Transport = transport
			return
		}
		c.client = &http.Client{
			Transport: transport,
			Timeout:   120 * time.Second,
		}
	}, nil
}
