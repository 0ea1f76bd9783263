package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"comfyd/internal/httpapi"
)

type serveOptions struct {
	addr            string
	corsOrigins     string
	requestLogLevel string
	shutdownTimeout time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{shutdownTimeout: 10 * time.Second}
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  comfyd serve --addr :8080 --backend-url http://127.0.0.1:8188",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Addr = opts.addr
			}
			if origins := splitCSV(opts.corsOrigins); len(origins) > 0 {
				a.cfg.CORS.Enabled = true
				a.cfg.CORS.Origins = origins
			}
			ln, err := net.Listen("tcp", a.cfg.Addr)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, ln, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", a.cfg.Addr, "HTTP listen address, e.g. :8080 (defaults COMFYD_ADDR)")
	cmd.Flags().StringVar(&opts.corsOrigins, "cors-origins", "", "Comma-separated allowed origins; enables CORS")
	cmd.Flags().StringVar(&opts.requestLogLevel, "request-log-level", "", "Per-request log level: off|error|info|debug (defaults COMFYD_HTTP_LOG_LEVEL)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", opts.shutdownTimeout, "Grace period for running jobs on shutdown")
	return cmd
}

// serve runs the API on ln until ctx ends, then cancels running jobs, waits
// for their outcomes to stream out and closes the server.
func (a *app) serve(ctx context.Context, ln net.Listener, opts *serveOptions) error {
	reg, client, mgr, err := a.services(httpapi.NewMetricsPublisher())
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer client.CloseIdleConnections()

	httpapi.SetLogger(a.log.With().Str("component", "httpapi").Logger())
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(a.cfg.CORS.Enabled, a.cfg.CORS.Origins, a.cfg.CORS.Methods, a.cfg.CORS.Headers)
	if opts.requestLogLevel != "" {
		httpapi.SetRequestLogLevel(opts.requestLogLevel)
	}
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Handler:           httpapi.NewMux(mgr, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", ln.Addr().String()).Str("backend", client.BaseURL()).
			Str("default_workflow", a.cfg.DefaultWorkflow).Int("workflows", len(reg.Workflows())).
			Msg("comfyd listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		_ = mgr.Shutdown(context.Background())
		return err
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	// Streaming handlers turn this into cancelled outcomes.
	cancelBase()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("jobs did not finish in time")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return <-errCh
}
