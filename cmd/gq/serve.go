package main

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/graderqueue/internal/auth"
	"github.com/zulandar/graderqueue/internal/config"
	"github.com/zulandar/graderqueue/internal/dispatch"
	"github.com/zulandar/graderqueue/internal/job"
	"github.com/zulandar/graderqueue/internal/logging"
	"github.com/zulandar/graderqueue/internal/queue"
	"github.com/zulandar/graderqueue/internal/server"
	"github.com/zulandar/graderqueue/internal/tags"
	"github.com/zulandar/graderqueue/internal/wake"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grader queue API server",
		Long:  "Serves POST /api (and /api.php) until interrupted, waking idle workers as jobs arrive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to grader queue config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides listen_port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.ListenPort = port
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	key, err := loadServiceKey(cfg.Auth)
	if err != nil {
		return err
	}
	if key == nil {
		log.Warn("serve: no auth.private_key_file configured, sealed platform requests will be refused")
	}

	transport, err := wake.NewTransport(cfg.Wake)
	if err != nil {
		return err
	}
	if c, ok := transport.(io.Closer); ok {
		defer c.Close()
	}

	store := queue.NewStore(gormDB)
	signaler := wake.NewSignaler(wake.SignalerOpts{
		DB:        gormDB,
		Transport: transport,
		Timeout:   cfg.Wake.Timeout,
		Pending:   store,
		Logger:    log.Named("wake"),
	})
	stopSweeper, err := signaler.StartSweeper(cfg.Wake.SweepSchedule)
	if err != nil {
		return err
	}
	defer stopSweeper()

	d, err := dispatch.New(dispatch.Opts{
		Auth: auth.NewResolver(auth.ResolverOpts{
			DB:                    gormDB,
			PrivateKey:            key,
			AcceptInterfaceTokens: cfg.Auth.AcceptInterfaceTokens,
		}),
		Builder: job.NewBuilder(cfg.Solution.DefaultExtensions),
		Router:  tags.NewRouter(gormDB),
		Store:   store,
		Wake:    signaler,
		Logger:  log.Named("dispatch"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	log.Info("serve: starting",
		zap.String("version", Version),
		zap.String("database", cfg.Database.Driver),
		zap.String("wake_transport", cfg.Wake.Transport),
		zap.Bool("interface_tokens", cfg.Auth.AcceptInterfaceTokens))

	return server.Start(ctx, server.StartOpts{
		Handler:        d,
		Port:           cfg.ListenPort,
		MaxUploadBytes: cfg.Solution.MaxUploadBytes,
		Logger:         log.Named("http"),
	})
}

// loadServiceKey returns nil when no key file is configured.
func loadServiceKey(c config.AuthConfig) (*rsa.PrivateKey, error) {
	if c.PrivateKeyFile == "" {
		return nil, nil
	}
	return auth.LoadPrivateKey(c.PrivateKeyFile)
}
