package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with defaults for the SOAP endpoint. The write
// timeout leaves room for a status update that waits on the per-signal lock.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
