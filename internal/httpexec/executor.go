package httpexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/ezbench/ezbench/internal/auth"
	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
)

// Executor issues one HTTP request per pass.
type Executor struct {
	client   *http.Client
	builder  *RequestBuilder
	provider auth.Provider
}

// New builds an executor for cfg.
func New(cfg config.Config, opts ...Option) (*Executor, error) {
	provider, proxyAuth, err := auth.FromConfig(cfg.HTTP)
	if err != nil {
		return nil, err
	}

	var proxyProvider auth.Provider
	if proxyAuth != nil {
		proxyProvider = proxyAuth
	}
	builder, err := NewRequestBuilder(cfg.Target, cfg.HTTP, provider, proxyProvider)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(cfg.Target, cfg.HTTP, cfg.Timeout, proxyAuth, opts...)
	if err != nil {
		return nil, err
	}

	return &Executor{client: client, builder: builder, provider: provider}, nil
}

// Pass performs one request and records its trial.
func (e *Executor) Pass(ctx context.Context, record func(metrics.Trial)) error {
	record(e.do(ctx))
	return nil
}

func (e *Executor) do(ctx context.Context) metrics.Trial {
	start := time.Now()
	trial := metrics.Trial{Start: start}

	var wroteErr error
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			wroteErr = info.Err
		},
	}

	req, err := e.builder.Build(httptrace.WithClientTrace(ctx, trace))
	if err != nil {
		trial.Err = err
		trial.Elapsed = time.Since(start)
		return trial
	}

	resp, err := e.client.Do(req)
	if err != nil {
		trial.Err = err
		trial.WriteError = wroteErr != nil || isWriteError(err)
		trial.Elapsed = time.Since(start)
		return trial
	}

	body, err := io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	trial.Elapsed = time.Since(start)
	if err != nil {
		trial.Err = fmt.Errorf("read body: %w", err)
		return trial
	}

	trial.BodyBytes = body
	trial.Bytes = headerBytes(resp) + body
	trial.Size = body
	trial.NonOK = resp.StatusCode/100 != 2
	return trial
}

func (e *Executor) Close() error {
	e.client.CloseIdleConnections()
	if e.provider != nil {
		return e.provider.Close()
	}
	return nil
}

func isWriteError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "write"
}

// headerBytes approximates the size of the response head on the wire.
func headerBytes(resp *http.Response) int64 {
	// "HTTP/1.1 200 OK\r\n"
	n := len(resp.Proto) + 1 + len(resp.Status) + 2
	for key, values := range resp.Header {
		for _, v := range values {
			n += len(key) + 2 + len(v) + 2
		}
	}
	// Terminating blank line.
	return int64(n + 2)
}
