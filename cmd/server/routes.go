package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signals/internal/app"
	jwttoken "signals/internal/jwt_token"
	"signals/internal/platform/config"
	platformmetrics "signals/internal/platform/metrics"
	"signals/internal/platform/middleware"
	"signals/internal/ratelimit"
	"signals/internal/sigmax/handler"
	dErrors "signals/pkg/domain-errors"
	"signals/pkg/platform/httputil"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

func newRouter(cfg config.Config, a *app.App, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(platformmetrics.New().Middleware)

	var validator middleware.JWTValidator
	if cfg.Server.AuthDisabled {
		log.Warn("authentication disabled on the sigmax endpoint")
	} else {
		jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
		validator = jwttoken.NewJWTServiceAdapter(jwtService)
	}
	var opts []handler.Option
	if cfg.Server.InboundRateLimit > 0 {
		var store ratelimit.Store = ratelimit.NewInMemory()
		if a.Redis != nil {
			store = ratelimit.NewRedis(a.Redis.Client)
		}
		limiter := ratelimit.NewLimiter(store, cfg.Server.InboundRateLimit, cfg.Server.InboundRateWindow, log)
		opts = append(opts, handler.WithMiddleware(limiter.Middleware))
	}
	handler.New(a.Service, a.Service.Builder(), log, validator, opts...).Register(r)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", healthHandler(a))
	return r
}

func healthHandler(hc healthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := hc.Health(ctx); err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "backend unavailable"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
