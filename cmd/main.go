package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianbio/batchsight-backend/internal/app"
	"github.com/meridianbio/batchsight-backend/internal/observability"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "batchsight-backend",
		Environment: a.Cfg.Environment,
		Version:     a.Cfg.Version,
	})
	if shutdownTracing != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				a.Log.Warn("otel shutdown", "error", err)
			}
		}()
	}

	a.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server starting", "port", a.Cfg.Port)
		return a.Run(":" + a.Cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Close()
		return gctx.Err()
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		a.Log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
