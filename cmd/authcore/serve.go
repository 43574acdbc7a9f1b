// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/observability"
	"github.com/authcore/authcore/internal/web"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(opts *rootOptions) *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the login, logout, session and password endpoints",
		Long: `Start the HTTP API. Sessions are carried in a cookie; expired sessions
are swept in the background. Prometheus metrics and health probes are
served on a separate listener unless --metrics-addr is empty.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.ErrOrStderr(), nil)
		},
	}

	flags := cmd.Flags()
	flags.String("http-addr", defaults.HTTP.Addr, "HTTP listen address")
	flags.String("metrics-addr", defaults.Metrics.Addr, "metrics and health listen address (empty disables)")
	flags.String("session-mode", defaults.Session.Mode, "session mode (per-user or single)")
	flags.Duration("session-ttl", defaults.Session.TTL, "session lifetime (0 never expires)")

	return cmd
}

// runServe runs until ctx is cancelled or a listener fails. onListen, when
// set, receives the bound HTTP address once requests are being accepted.
func runServe(ctx context.Context, cfg *config.Config, logw io.Writer, onListen func(addr string)) error {
	logger, err := setup(cfg, logw)
	if err != nil {
		return err
	}
	// A memory store starts empty and no running command can provision it.
	if cfg.Store.Driver == config.DriverMemory {
		return oops.Code("CONFIG_INVALID").
			With("driver", cfg.Store.Driver).
			Errorf("serve needs a persistent store driver (sqlite or postgres)")
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var ready atomic.Bool
	var metrics *observability.AuthMetrics
	if cfg.Metrics.Addr != "" {
		obsServer := observability.NewServer(cfg.Metrics.Addr, ready.Load, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		metrics = obsServer.Metrics()
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	s, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.close()

	var recorder auth.MetricsRecorder
	handlerOpts := []web.Option{web.WithLogger(logger)}
	if metrics != nil {
		recorder = metrics
		handlerOpts = append(handlerOpts, web.WithRecorder(metrics))
	}

	svc, err := newService(cfg, s, logger, recorder)
	if err != nil {
		return err
	}

	sweeper, err := auth.NewSweeper(s.sessions, cfg.Session.SweepInterval, logger)
	if err != nil {
		return err
	}
	if metrics != nil {
		sweeper.OnSwept(metrics.SessionsSweptAdd)
	}
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	handler, err := web.NewHandler(svc, web.Config{
		CookieName:   cfg.HTTP.CookieName,
		CookieSecure: cfg.HTTP.CookieSecure,
	}, handlerOpts...)
	if err != nil {
		cancel(nil)
		<-sweepDone
		return err
	}

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		cancel(nil)
		<-sweepDone
		return oops.Code("LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           handler.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- err
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrCh, "http", logger)

	ready.Store(true)
	logger.Info("authcore started",
		"http_addr", listener.Addr().String(),
		"store", cfg.Store.Driver,
		"session_mode", cfg.Session.Mode,
		"session_ttl", cfg.Session.TTL,
	)
	if onListen != nil {
		onListen(listener.Addr().String())
	}

	<-ctx.Done()
	ready.Store(false)
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error shutting down http server", "error", err)
	}
	<-sweepDone

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels ctx with the first error a server reports.
// It returns when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok || err == nil {
			return
		}
		logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
		cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrap(err))
	case <-ctx.Done():
	}
}
