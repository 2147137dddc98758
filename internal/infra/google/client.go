// Package google talks to Google Drive and Google OAuth on behalf of owners.
package google

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 30 * time.Second

// NewHTTPClient returns the traced client shared by the Drive and OAuth clients.
// The timeout bounds connection setup and headers only, so long downloads are
// limited by the request context instead.
func NewHTTPClient() *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = defaultTimeout
	return &http.Client{Transport: otelhttp.NewTransport(base)}
}
