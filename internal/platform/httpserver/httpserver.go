// Package httpserver builds the server the signon API runs on.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server for the login and challenge endpoints. The
// write timeout stays above the per-request timeout middleware so slow
// directory calls are cut off there, with a response, rather than here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
