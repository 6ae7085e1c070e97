package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smbsyncd/internal/daemon"
	"smbsyncd/internal/logger"
	"smbsyncd/internal/probe"
	"smbsyncd/internal/registry"
	"smbsyncd/internal/repository"
	"smbsyncd/internal/scheduler"
	"smbsyncd/internal/supervisor"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync agent daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		jobRepo := repository.NewJobRepository()
		reg := registry.New(jobRepo)
		sup := supervisor.New(reg, jobRepo,
			repository.NewServerRepository(), cfg.WorkDir, cfg.RclonePath)

		sched := scheduler.New(reg, probe.New(), sup,
			time.Duration(cfg.TickSeconds)*time.Second)
		sched.Start()

		srv := daemon.NewServer(reg, sup, cfg.DaemonPort)
		srv.Start()

		logger.Log.Info("smbsyncd ready",
			zap.Int("port", cfg.DaemonPort),
			zap.String("db", cfg.DBPath))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		sched.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
