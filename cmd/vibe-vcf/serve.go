package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/metrics"
	"github.com/inodb/vibe-vcf/internal/server"
	"github.com/inodb/vibe-vcf/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve features over HTTP",
		Long: `Serve opens the store and answers feature, reference sequence, header and
stats requests over HTTP. Prometheus metrics are served at /metrics.`,
		Example: `  vibe-vcf serve --url gs://bucket/data.vcf.gz --addr :8080
  curl 'localhost:8080/features/12?start=25245000&end=25246000'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("creating logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck
			return runServe(cmd.Context(), logger)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Int("max-features", 0, "Maximum features per request (0 = unlimited)")
	bindFlag(cmd.Flags().Lookup("addr"), "serve.addr")
	bindFlag(cmd.Flags().Lookup("max-features"), "serve.max_features")

	return cmd
}

func runServe(ctx context.Context, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := openStore(ctx, logger, store.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}
	defer s.Close()

	if !viper.GetBool("verbose") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(s, server.Options{
		Logger:      logger,
		Gatherer:    reg,
		MaxFeatures: viper.GetInt("serve.max_features"),
	})

	srv := &http.Server{
		Addr:              viper.GetString("serve.addr"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
