package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/toolsmith/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operation set over HTTP, or over MCP stdio with --stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := flags.openApp()
			if err != nil {
				return err
			}
			defer application.Close()
			application.Start(ctx)
			logger := application.Logger

			if stdio {
				if application.MCPHandler == nil {
					return fmt.Errorf("mcp is disabled in configuration")
				}
				logger.Info().Msg("serving MCP over stdio")
				return application.MCPHandler.ServeStdio(ctx, os.Stdin, os.Stdout)
			}

			srv := server.New(application)
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			logger.Info().
				Str("url", fmt.Sprintf("http://%s:%d", application.Config.Server.Host, application.Config.Server.Port)).
				Msg("server ready")

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
				return nil
			case <-ctx.Done():
				logger.Info().Msg("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Str("error", err.Error()).Msg("server shutdown failed")
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve MCP over stdin/stdout instead of HTTP")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Server port (overrides config)")
	cmd.Flags().StringVar(&flags.host, "host", "", "Server host (overrides config)")
	return cmd
}
