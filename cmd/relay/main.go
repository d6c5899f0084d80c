package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tarotdesk/relay-server/internal/app"
	"github.com/tarotdesk/relay-server/internal/config"
	"github.com/tarotdesk/relay-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "relay",
		Short:         "TarotDesk real-time chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}
	root.AddCommand(serve)

	return root
}

func runServe(configPath string) error {
	bootLog := log.New("info")

	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting relay server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
