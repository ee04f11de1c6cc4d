package http

import (
	"errors"
	"io"
	"net"
	"net/url"
	"testing"
)

func TestRetryable(t *testing.T) {
	dialErr := &url.Error{Op: "Post", URL: "http://localhost:1/7", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	readErr := &url.Error{Op: "Post", URL: "http://localhost:1/7", Err: io.ErrUnexpectedEOF}

	testCases := map[string]struct {
		err  error
		want bool
	}{
		"dial":   {err: dialErr, want: true},
		"status": {err: &statusError{status: "404 Not Found"}, want: true},
		"read":   {err: readErr, want: false},
		"eof":    {err: io.EOF, want: false},
	}
	for name, tc := range testCases {
		if got := retryable(tc.err); got != tc.want {
			t.Errorf("%s: expected retryable=%v, got %v", name, tc.want, got)
		}
	}
}
