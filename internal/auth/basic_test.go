package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ezbench/ezbench/internal/config"
)

func TestBasicProvider(t *testing.T) {
	provider, err := NewBasicProvider("aladdin:open sesame")
	if err != nil {
		t.Fatalf("NewBasicProvider() error = %v", err)
	}

	req := httptest.NewRequest("GET", "http://example.com", nil)
	if err := provider.InjectHeader(context.Background(), req); err != nil {
		t.Fatalf("InjectHeader() error = %v", err)
	}

	want := "Basic YWxhZGRpbjpvcGVuIHNlc2FtZQ=="
	if got := req.Header.Get("Authorization"); got != want {
		t.Errorf("Authorization header = %q, want %q", got, want)
	}
	user, pass, ok := req.BasicAuth()
	if !ok || user != "aladdin" || pass != "open sesame" {
		t.Errorf("BasicAuth() = %q, %q, %v", user, pass, ok)
	}
}

func TestProxyBasicProvider(t *testing.T) {
	provider, err := NewProxyBasicProvider("proxy:secret")
	if err != nil {
		t.Fatalf("NewProxyBasicProvider() error = %v", err)
	}

	req := httptest.NewRequest("GET", "http://example.com", nil)
	if err := provider.InjectHeader(context.Background(), req); err != nil {
		t.Fatalf("InjectHeader() error = %v", err)
	}

	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization header = %q, want empty", got)
	}
	if got := req.Header.Get("Proxy-Authorization"); got != provider.HeaderValue() {
		t.Errorf("Proxy-Authorization header = %q, want %q", got, provider.HeaderValue())
	}
}

func TestBasicProviderRejectsMalformedCredentials(t *testing.T) {
	for _, creds := range []string{"", "nocolon", ":password"} {
		if _, err := NewBasicProvider(creds); err == nil {
			t.Errorf("NewBasicProvider(%q) expected error", creds)
		}
	}
}

func TestFromConfig(t *testing.T) {
	target, proxy, err := FromConfig(config.HTTPConfig{BasicAuth: "u:p", ProxyAuth: "x:y"})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if _, ok := target.(*BasicProvider); !ok {
		t.Errorf("target provider = %T, want *BasicProvider", target)
	}
	if proxy == nil {
		t.Fatal("expected proxy provider")
	}

	target, proxy, err = FromConfig(config.HTTPConfig{BearerToken: "tok"})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if _, ok := target.(*BearerProvider); !ok {
		t.Errorf("target provider = %T, want *BearerProvider", target)
	}
	if proxy != nil {
		t.Errorf("proxy provider = %v, want nil", proxy)
	}

	target, proxy, err = FromConfig(config.HTTPConfig{})
	if err != nil || target != nil || proxy != nil {
		t.Errorf("FromConfig(empty) = %v, %v, %v", target, proxy, err)
	}
}
