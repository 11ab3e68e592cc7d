package httpexec

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestIsWriteError(t *testing.T) {
	write := &net.OpError{Op: "write", Net: "tcp", Err: errors.New("broken pipe")}
	read := &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}

	if !isWriteError(fmt.Errorf("Get: %w", write)) {
		t.Error("wrapped write OpError not classified as write error")
	}
	if isWriteError(read) {
		t.Error("read OpError classified as write error")
	}
	if isWriteError(errors.New("timeout")) {
		t.Error("plain error classified as write error")
	}
}

func TestHeaderBytes(t *testing.T) {
	resp := &http.Response{
		Proto:  "HTTP/1.1",
		Status: "200 OK",
		Header: http.Header{"Content-Length": {"5"}},
	}
	// "HTTP/1.1 200 OK\r\n" + "Content-Length: 5\r\n" + "\r\n"
	if got, want := headerBytes(resp), int64(17+19+2); got != want {
		t.Errorf("headerBytes() = %d, want %d", got, want)
	}
}
