package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"strbackend/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Load the model repository and serve the admin API",
		Example: "  strbackend serve --config strbackend.yaml\n  strbackend serve --model-repository ./models --addr :9090",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				o.cfg.Addr = addr
			}
			return serve(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", os.Getenv("STRBACKEND_ADDR"), "HTTP listen address, e.g. :8080 (defaults to STRBACKEND_ADDR or config)")
	return cmd
}

func serve(ctx context.Context, o *options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := o.newManager()
	if err != nil {
		return err
	}
	if err := mgr.LoadAll(ctx); err != nil {
		o.log.Warn().Err(err).Msg("some models failed to load")
	}

	srv := &http.Server{
		Addr:              o.cfg.Addr,
		Handler:           httpapi.NewMux(mgr, httpapi.Options{CORSOrigins: o.cfg.CORSOrigins, Logger: &o.log}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.log.Info().Str("addr", srv.Addr).Str("repository", o.cfg.ModelRepository).
			Strs("models", mgr.LoadedModels()).Msg("strbackend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			o.log.Error().Err(err).Msg("graceful shutdown error")
		}
		return mgr.Close()
	})
	return g.Wait()
}
