package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// BearerProvider sends a token obtained outside the benchmark as
// "Authorization: Bearer <token>".
type BearerProvider struct {
	token string
}

// NewBearerProvider accepts the bare token or a full "Bearer <token>" value.
func NewBearerProvider(token string) (*BearerProvider, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, errors.New("bearer token cannot be empty")
	}
	return &BearerProvider{token: token}, nil
}

func (p *BearerProvider) Token(ctx context.Context) (string, error) {
	return p.token, nil
}

func (p *BearerProvider) InjectHeader(ctx context.Context, req *http.Request) error {
	req.Header.Set(headerAuthorization, "Bearer "+p.token)
	return nil
}

func (p *BearerProvider) Close() error {
	return nil
}
