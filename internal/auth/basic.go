package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

const (
	headerAuthorization      = "Authorization"
	headerProxyAuthorization = "Proxy-Authorization"
)

// BasicProvider injects HTTP basic credentials, either for the origin
// server or for a proxy.
type BasicProvider struct {
	header string
	token  string
}

// NewBasicProvider creates a provider for "user:password" credentials sent
// in the Authorization header.
func NewBasicProvider(credentials string) (*BasicProvider, error) {
	return newBasicProvider(headerAuthorization, credentials)
}

// NewProxyBasicProvider creates a provider for "user:password" credentials
// sent in the Proxy-Authorization header.
func NewProxyBasicProvider(credentials string) (*BasicProvider, error) {
	return newBasicProvider(headerProxyAuthorization, credentials)
}

func newBasicProvider(header, credentials string) (*BasicProvider, error) {
	user, pass, ok := strings.Cut(credentials, ":")
	if !ok || user == "" {
		return nil, errors.New("credentials must be in user:password form")
	}
	return &BasicProvider{
		header: header,
		token:  base64.StdEncoding.EncodeToString([]byte(user + ":" + pass)),
	}, nil
}

// Token returns the base64 encoded credentials.
func (p *BasicProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

// HeaderValue returns the full header value, e.g. for CONNECT requests.
func (p *BasicProvider) HeaderValue() string {
	return "Basic " + p.token
}

// InjectHeader sets the credentials on req.
func (p *BasicProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	req.Header.Set(p.header, p.HeaderValue())
	return nil
}

// Close is a no-op for basic providers.
func (p *BasicProvider) Close() error {
	return nil
}
