package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkingovr/portal/internal/access"
	"github.com/tkingovr/portal/internal/admin"
	"github.com/tkingovr/portal/internal/dispatch"
	"github.com/tkingovr/portal/internal/routes"
)

var (
	adminAddr   string
	adminLogDir string
	adminSince  time.Duration
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Start the admin server only (no route server)",
	Long: `Start the admin server over an existing access log directory. Recent
records are loaded from disk; dry runs use the configured route table.`,
	Example: `  portal admin -l :8081 -a ~/.portal/logs
  portal admin -c portal.yaml --since 72h`,
	RunE: runAdmin,
}

func init() {
	adminCmd.Flags().StringVarP(&adminAddr, "listen", "l", "", "admin listen address (overrides settings.admin_addr)")
	adminCmd.Flags().StringVarP(&adminLogDir, "access-dir", "a", "", "access log directory (overrides settings.log_dir)")
	adminCmd.Flags().DurationVar(&adminSince, "since", 24*time.Hour, "load access records newer than this")
	rootCmd.AddCommand(adminCmd)
}

func runAdmin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if adminAddr != "" {
		cfg.AdminAddr = adminAddr
	}
	if adminLogDir != "" {
		cfg.LogDir = adminLogDir
	}

	store, err := access.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating access store: %w", err)
	}
	defer store.Close()
	n, err := store.Replay(time.Now().Add(-adminSince))
	if err != nil {
		return fmt.Errorf("loading access log: %w", err)
	}
	logger.Info("loaded access records", "count", n, "dir", cfg.LogDir)

	table, engine, err := routes.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("compiling routes: %w", err)
	}
	d, err := dispatch.New(table.Filter(), append([]dispatch.Option{dispatch.WithLogger(logger)}, dispatchOptions(cfg)...)...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down admin server")
		cancel()
	}()

	adm := admin.NewServer(cfg.AdminAddr, store, d, table, logger, admin.WithEngine(engine))
	return adm.ListenAndServe(ctx)
}
