package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signals/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis down")
}

func serve(h http.Handler, subject, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/signals/sigmax/soap", nil)
	req.RemoteAddr = remote
	if subject != "" {
		req = testutil.WithSubject(req, subject)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	t.Run("limits per subject", func(t *testing.T) {
		h := NewLimiter(NewInMemory(), 2, time.Minute, logger).Middleware(ok)

		assert.Equal(t, http.StatusOK, serve(h, "citycontrol", "10.0.0.1:1234").Code)
		second := serve(h, "citycontrol", "10.0.0.2:1234")
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

		third := serve(h, "citycontrol", "10.0.0.3:1234")
		assert.Equal(t, http.StatusTooManyRequests, third.Code)
		assert.NotEmpty(t, third.Header().Get("Retry-After"))
		assert.Contains(t, third.Body.String(), "rate_limit_exceeded")

		assert.Equal(t, http.StatusOK, serve(h, "other", "10.0.0.3:1234").Code)
	})

	t.Run("falls back to the remote address", func(t *testing.T) {
		h := NewLimiter(NewInMemory(), 1, time.Minute, logger).Middleware(ok)

		assert.Equal(t, http.StatusOK, serve(h, "", "10.0.0.1:1234").Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(h, "", "10.0.0.1:5678").Code)
		assert.Equal(t, http.StatusOK, serve(h, "", "10.0.0.2:1234").Code)
	})

	t.Run("retry after counts from the request time", func(t *testing.T) {
		start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		store := NewInMemory()
		store.now = func() time.Time { return start }
		h := NewLimiter(store, 1, time.Minute, logger).Middleware(ok)

		assert.Equal(t, http.StatusOK, serve(h, "citycontrol", "10.0.0.1:1234").Code)

		req := httptest.NewRequest(http.MethodPost, "/signals/sigmax/soap", nil)
		req = testutil.WithRequestTime(testutil.WithSubject(req, "citycontrol"), start.Add(20*time.Second))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "40", rec.Header().Get("Retry-After"))
	})

	t.Run("store failure lets the request through", func(t *testing.T) {
		h := NewLimiter(failingStore{}, 1, time.Minute, logger).Middleware(ok)

		assert.Equal(t, http.StatusOK, serve(h, "citycontrol", "10.0.0.1:1234").Code)
	})
}
