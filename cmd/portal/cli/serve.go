package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tkingovr/portal/internal/access"
	"github.com/tkingovr/portal/internal/admin"
	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/metrics"
	"github.com/tkingovr/portal/internal/routes"
	"github.com/tkingovr/portal/internal/server"
)

var (
	serveListen  string
	serveAdmin   string
	serveNoAdmin bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the route table and the admin server",
	Long: `Compile the route table and serve it. The admin server runs alongside
on its own address with the access log, statistics, dry runs and metrics.`,
	Example: `  portal serve -c portal.yaml
  portal serve -c portal.yaml --listen :8080 --no-admin`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (overrides settings.listen)")
	serveCmd.Flags().StringVar(&serveAdmin, "admin", "", "admin listen address (overrides settings.admin_addr)")
	serveCmd.Flags().BoolVar(&serveNoAdmin, "no-admin", false, "do not start the admin server")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}
	if serveAdmin != "" {
		cfg.AdminAddr = serveAdmin
	}

	table, engine, err := routes.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("compiling routes: %w", err)
	}

	store, err := access.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating access store: %w", err)
	}
	defer store.Close()

	prom := metrics.NewPrometheus(metrics.Options{EnableRuntimeMetrics: true})

	dopts := append(dispatchOptions(cfg), dispatch.WithObserver(
		dispatch.AccessLog(store, logger),
		dispatch.Metrics(prom),
		dispatch.RequestLog(logger),
	))
	srv, err := server.New(table.Filter(),
		server.WithLogger(logger),
		server.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout),
		server.WithDispatchOptions(dopts...),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	if !serveNoAdmin {
		adm := admin.NewServer(cfg.AdminAddr, store, srv.Dispatcher(), table, logger,
			admin.WithEngine(engine),
			admin.WithMetrics(prom),
		)
		g.Go(func() error {
			if err := adm.ListenAndServe(ctx); err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return srv.Run(ctx, cfg.Listen)
	})

	logger.Info("starting portal",
		slog.String("listen", cfg.Listen),
		slog.Int("routes", len(table.Routes)),
		slog.String("access_log", cfg.LogDir),
	)
	return g.Wait()
}
