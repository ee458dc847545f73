package testutil

import (
	"net/http"
	"time"

	"signals/pkg/requestcontext"
)

// WithSubject sets the authenticated caller as RequireAuth would.
func WithSubject(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithSubject(req.Context(), subject))
}

// WithRequestTime pins requestcontext.Now for the request.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
