package auth

import (
	"context"
	"net/http"

	"github.com/ezbench/ezbench/internal/config"
)

// Provider defines the interface for authentication providers that can
// obtain tokens and inject them into HTTP requests.
type Provider interface {
	// Token returns the credential value placed after the scheme.
	Token(ctx context.Context) (string, error)

	// InjectHeader injects the credential into the request header the
	// provider is responsible for.
	InjectHeader(ctx context.Context, req *http.Request) error

	// Close releases any resources held by the provider.
	Close() error
}

// FromConfig returns the providers configured for target requests and for
// the proxy. Either may be nil.
func FromConfig(h config.HTTPConfig) (target Provider, proxy *BasicProvider, err error) {
	switch {
	case h.BasicAuth != "":
		target, err = NewBasicProvider(h.BasicAuth)
		if err != nil {
			return nil, nil, err
		}
	case h.BearerToken != "":
		target, err = NewBearerProvider(h.BearerToken)
		if err != nil {
			return nil, nil, err
		}
	}

	if h.ProxyAuth != "" {
		proxy, err = NewProxyBasicProvider(h.ProxyAuth)
		if err != nil {
			return nil, nil, err
		}
	}
	return target, proxy, nil
}
