package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/LoreKit/internal/app"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var (
		httpPort int
		grpcPort int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the annotation HTTP API and gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if httpPort > 0 {
				cfg.Server.HTTP.Port = httpPort
			}
			if grpcPort > 0 {
				cfg.Server.GRPC.Enabled = true
				cfg.Server.GRPC.Port = grpcPort
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// The server logs with the configured format, not the CLI console.
			logger, err := logging.NewLogger(logging.LogConfig{
				Level:            cfg.Log.Level,
				Format:           cfg.Log.Format,
				OutputPaths:      cfg.Log.OutputPaths,
				ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, err := app.NewServer(ctx, cfg, Version, logger)
			if err != nil {
				return err
			}
			logger.Info("lorekit starting",
				logging.String("version", Version),
				logging.String("http_addr", cfg.Server.HTTP.Addr()),
				logging.Bool("grpc", cfg.Server.GRPC.Enabled))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&httpPort, "http-port", 0, "override server.http.port")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "enable gRPC health on this port")
	return cmd
}
