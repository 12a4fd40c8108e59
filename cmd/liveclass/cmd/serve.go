package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liveclass/internal/app"
	"liveclass/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithPrecedence(configPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		application, err := app.NewApplication(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		if err := application.Start(ctx); err != nil {
			return fmt.Errorf("failed to start application: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "liveclass listening on %s (database: %s)\n", application.GetAddr(), cfg.Database.Driver)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			log.Printf("Received signal %v, shutting down gracefully", sig)
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()
		if err := application.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
