package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ctagard/brs-dap/internal/config"
	"github.com/ctagard/brs-dap/internal/dap"
	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/internal/mcp"
	"github.com/ctagard/brs-dap/internal/metrics"
	"github.com/ctagard/brs-dap/internal/session"
)

// Registry holds the device adapters serve can dial. Builds that ship a
// device transport register it here before Execute.
var Registry = device.NewRegistry()

func newServeCmd(a *app) *cobra.Command {
	var (
		listen      string
		mcpAddr     string
		metricsAddr string
		mode        string
		adapter     string
		workspace   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Debug Adapter Protocol",
		Long: `Serve DAP over stdin/stdout, or over TCP with --listen. Each IDE
connection gets its own debug session.

--mcp additionally exposes the sessions to agents over MCP streamable HTTP;
--metrics serves Prometheus metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("listen") {
				a.cfg.Listen = listen
			}
			if flags.Changed("mcp") {
				a.cfg.MCPAddr = mcpAddr
			}
			if flags.Changed("metrics") {
				a.cfg.MetricsAddr = metricsAddr
			}
			if flags.Changed("mode") {
				a.cfg.Mode = config.CapabilityMode(mode)
			}
			if flags.Changed("adapter") {
				a.cfg.Adapter = adapter
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, workspace)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "TCP address for DAP clients (default: stdio)")
	cmd.Flags().StringVar(&mcpAddr, "mcp", "", "Address for the MCP endpoint, e.g. 127.0.0.1:7070")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Address for the Prometheus /metrics endpoint")
	cmd.Flags().StringVar(&mode, "mode", "", "MCP capability mode: readonly or full")
	cmd.Flags().StringVar(&adapter, "adapter", "", "Device adapter used for new sessions")
	cmd.Flags().StringVar(&workspace, "workspace", "", "Folder that ${workspaceFolder} in launch arguments refers to")

	return cmd
}

func (a *app) serve(ctx context.Context, workspace string) error {
	cfg := a.cfg
	logger := a.logger

	manager := session.NewManager(session.ManagerOptions{
		MaxSessions:    cfg.MaxSessions,
		SessionTimeout: cfg.SessionTimeout,
		Deployer:       deploy.NewLocalDeployer(cfg.Files, logger),
		Registry:       Registry,
		Adapter:        cfg.Adapter,
		Logger:         logger,
	})
	defer manager.Close()

	srv := dap.NewServer(manager, logger)
	srv.Workspace = workspace

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MCPAddr != "" {
		m := mcp.NewServer(cfg, manager, logger)
		g.Go(func() error { return m.ListenAndServe(ctx, cfg.MCPAddr) })
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })
	}

	g.Go(func() error {
		var err error
		if cfg.Listen != "" {
			err = srv.ServeTCP(ctx, cfg.Listen)
		} else {
			logger.Info("serving DAP on stdio")
			err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		}
		if err != nil {
			return err
		}
		// a finished DAP server stops the side endpoints too
		return errServerDone
	})

	if err := g.Wait(); err != nil && !stderrors.Is(err, errServerDone) {
		return err
	}
	return nil
}

var errServerDone = stderrors.New("dap server finished")

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics endpoint: %w", err)
	}
	return nil
}
