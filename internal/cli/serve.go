package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"mt5Assistant/internal/adapters/httpapi"
)

func newServeCmd(settingsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *settingsPath)
		},
	}
}

func runServe(cmd *cobra.Command, settingsPath string) error {
	cfg, settings, err := loadConfig(settingsPath)
	if err != nil {
		return err
	}
	rt, err := bootstrap(cfg, settings, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := httpapi.New(httpapi.Config{
		Service:        rt.service,
		Logger:         rt.logger,
		RequestTimeout: cfg.RequestTimeout,
		Registerer:     prometheus.DefaultRegisterer,
		Gatherer:       prometheus.DefaultGatherer,
	})
	if err != nil {
		return err
	}

	serviceDone := make(chan error, 1)
	go func() { serviceDone <- rt.service.Start(ctx) }()

	httpDone := make(chan error, 1)
	go func() { httpDone <- server.Listen(cfg.HTTPAddr) }()

	select {
	case <-ctx.Done():
		rt.logger.Info(context.Background(), "Shutdown signal received")
	case err = <-httpDone:
		rt.logger.Error(context.Background(), err, "HTTP API stopped unexpectedly")
		stop()
	}

	if serr := server.Shutdown(); serr != nil {
		rt.logger.Error(context.Background(), serr, "HTTP API shutdown failed")
	}
	if serr := <-serviceDone; serr != nil && !errors.Is(serr, context.Canceled) {
		rt.logger.Error(context.Background(), serr, "Trading service exited with error")
		if err == nil {
			err = serr
		}
	}
	rt.logger.Info(context.Background(), "Application finished gracefully.")
	return err
}
