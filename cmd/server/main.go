package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"signals/internal/app"
	"signals/internal/platform/config"
	"signals/internal/platform/httpserver"
	"signals/internal/platform/logger"
	"signals/internal/sigmax/trigger"
)

const shutdownTimeout = 10 * time.Second

// main wires the shared dependencies, exposes the SOAP endpoint and runs the
// background loops until SIGINT or SIGTERM.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close backends", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.Addr, newRouter(cfg, a, log))

	var consumer *trigger.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err = trigger.NewConsumer(trigger.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.PushTopic,
			Group:   cfg.Kafka.Group,
		}, a.Service, log)
		if err != nil {
			return err
		}
	} else {
		log.Info("kafka push trigger disabled, no brokers configured")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting signals sigmax bridge", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		runSweeper(ctx, a, cfg.Sigmax.SweepInterval, log)
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(ctx)
		})
		g.Go(func() error {
			<-ctx.Done()
			consumer.Close()
			return nil
		})
	}

	return g.Wait()
}

// runSweeper fails signals that stayed in TE_VERZENDEN for too long.
func runSweeper(ctx context.Context, a *app.App, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		log.Info("stuck-sending sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := a.Service.FailStuckSending(ctx)
			if err != nil && ctx.Err() == nil {
				log.ErrorContext(ctx, "stuck-sending sweep failed", "error", err)
				continue
			}
			if len(ids) > 0 {
				log.InfoContext(ctx, "failed stuck signals", "count", len(ids), "signal_ids", ids)
			}
		}
	}
}
