// Package httpexec implements the HTTP task executor used by ezab.
//
// Each pass issues one request against the target and records a single
// trial: elapsed time until the body is fully read, total and body bytes,
// whether the status was outside 2xx, and whether the failure happened while
// writing the request.
//
// The transport honors keepalive vs connection close, proxies with basic
// authentication, custom headers and cookies, response compression
// negotiation, a local bind address and an HTTP version selector. HTTP/2 is
// negotiated over TLS, or spoken with prior knowledge (h2c) on http:// URLs.
package httpexec
