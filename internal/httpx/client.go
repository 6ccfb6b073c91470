// Package httpx builds the HTTP clients shared by the API layer.
package httpx

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"time"

	"golang.org/x/net/http2"

	"github.com/ricordi-app/ricordi-sync/internal/constants"
)

// NewClient creates the HTTP client used for ordinary API requests.
// Pooled connections, HTTP/2 where the server supports it, and a fixed
// overall timeout. Timeouts for individual operations are delegated here
// rather than scattered through the coordinators.
func NewClient() *nethttp.Client {
	tr := newTransport()
	return &nethttp.Client{
		Transport: tr,
		Timeout:   constants.RequestTimeout,
	}
}

// NewLongRequestClient creates the client for the long-running ask query.
// It has no overall timeout: the query is bounded only by explicit
// cancellation through its context.
func NewLongRequestClient() *nethttp.Client {
	return &nethttp.Client{
		Transport: newTransport(),
		Timeout:   0,
	}
}

func newTransport() *nethttp.Transport {
	tr := &nethttp.Transport{
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       16,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	_ = http2.ConfigureTransport(tr)

	// Runtime toggle for HTTP/2, useful for debugging compatibility issues.
	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return tr
}
