package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 10 * time.Second

// NewClient returns an HTTP client with standard timeout configuration.
// A single client is shared across all concurrent oracle calls so the
// fan-out reuses one connection pool.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}
