package httpexec

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/ezbench/ezbench/internal/auth"
	"github.com/ezbench/ezbench/internal/config"
)

// Option customizes the client built by New.
type Option func(*clientOptions)

type clientOptions struct {
	tlsConfig *tls.Config
}

// WithTLSConfig sets the TLS configuration used for https targets.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *clientOptions) {
		o.tlsConfig = cfg
	}
}

// NewClient builds the HTTP client for one worker. Transparent decompression
// is disabled so that transferred bytes are counted as received.
func NewClient(target string, h config.HTTPConfig, timeout time.Duration, proxyAuth *auth.BasicProvider, opts ...Option) (*http.Client, error) {
	if timeout < 0 {
		timeout = 0
	}
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if h.Interface != "" {
		ip := net.ParseIP(h.Interface)
		if ip == nil {
			return nil, fmt.Errorf("interface %q is not an IP address", h.Interface)
		}
		dialer.LocalAddr = &net.TCPAddr{IP: ip}
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}

	if h.Version == config.HTTPVersion2 && u.Scheme == "http" {
		if h.Proxy != "" {
			return nil, errors.New("HTTP/2 prior knowledge cannot be used through a proxy")
		}
		return &http.Client{
			Timeout: timeout,
			Transport: &http2.Transport{
				AllowHTTP:          true,
				DisableCompression: true,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					return dialer.DialContext(ctx, network, addr)
				},
			},
		}, nil
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     !h.KeepAlive || h.Version == config.HTTPVersion10,
		DisableCompression:    true,
		MaxIdleConns:          1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig:       o.tlsConfig,
	}
	if h.Proxy != "" {
		transport.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: h.Proxy})
		if proxyAuth != nil {
			transport.ProxyConnectHeader = http.Header{"Proxy-Authorization": {proxyAuth.HeaderValue()}}
		}
	}

	switch h.Version {
	case config.HTTPVersion2:
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	default:
		// A non-nil empty map keeps the transport on HTTP/1.1.
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}
