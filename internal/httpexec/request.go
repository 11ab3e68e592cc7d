package httpexec

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ezbench/ezbench/internal/auth"
	"github.com/ezbench/ezbench/internal/config"
)

// UserAgent is sent with every request unless a User-Agent header is configured.
var UserAgent = "ezab 1.0"

// RequestBuilder builds identical requests for every trial.
type RequestBuilder struct {
	method       string
	target       string
	headers      http.Header
	authProvider auth.Provider
	proxyAuth    auth.Provider
}

// NewRequestBuilder validates the request options of h and prepares the
// header set. provider and proxyAuth may be nil.
func NewRequestBuilder(target string, h config.HTTPConfig, provider, proxyAuth auth.Provider) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := http.MethodGet
	if h.Head {
		method = http.MethodHead
	}

	headers := http.Header{}
	headers.Set("User-Agent", UserAgent)
	headers.Set("Accept", "*/*")
	if h.Compress {
		headers.Set("Accept-Encoding", "gzip, deflate")
	}
	for key, value := range h.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", trimmedKey)
		}
		headers.Set(http.CanonicalHeaderKey(trimmedKey), value)
	}
	if len(h.Cookies) > 0 {
		for _, cookie := range h.Cookies {
			if strings.ContainsAny(cookie, "\r\n") {
				return nil, fmt.Errorf("invalid cookie %q", cookie)
			}
		}
		headers.Set("Cookie", strings.Join(h.Cookies, "; "))
	}

	return &RequestBuilder{
		method:       method,
		target:       target,
		headers:      headers,
		authProvider: provider,
		proxyAuth:    proxyAuth,
	}, nil
}

func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, b.method, b.target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = b.headers.Clone()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}

	if b.authProvider != nil {
		if err := b.authProvider.InjectHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("auth provider inject header: %w", err)
		}
	}
	// Plain-HTTP proxies see the request itself; HTTPS targets carry the
	// credentials on CONNECT instead.
	if b.proxyAuth != nil && req.URL.Scheme == "http" {
		if err := b.proxyAuth.InjectHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("proxy auth inject header: %w", err)
		}
	}

	return req, nil
}
