package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmainah/resolveit-app/internal/config"
	"github.com/danmainah/resolveit-app/internal/logger"
)

var (
	rootCtx context.Context
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "resolvectl",
	Short:         "Служебные команды ResolveIt",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Init("info")
		logger.SetTextFormatter()
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	rootCmd.AddCommand(migrateCmd, createAdminCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "resolvectl:", err)
		stop()
		os.Exit(1)
	}
}
