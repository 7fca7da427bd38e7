package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/veneer"
	"github.com/aretw0/veneer/pkg/server"
)

var (
	serveAddr    string
	serveMetrics bool
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the database over HTTP",
	Long: `Expose the configured database, with its transforms installed, over a
CouchDB-style REST API. Clients read and write plain documents while the
backend stores the transformed ones.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := slog.Default()
		opts, err := cfg.Options(logger)
		if err != nil {
			return err
		}

		hopts := []server.Option{server.WithLogger(logger), server.WithTimeout(serveTimeout)}
		if serveMetrics {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts = append(opts, veneer.WithMetrics(reg))
			hopts = append(hopts, server.WithMetrics(reg))
		}

		db, err := veneer.Open(cfg.Location, opts...)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		srv := server.NewHTTPServer(serveAddr, server.New(db, hopts...).Router())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("serving", "addr", serveAddr, "adapter", cfg.Adapter, "location", cfg.Location)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5984", "Listen address")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().DurationVar(&serveTimeout, "timeout", 30*time.Second, "Per-request timeout")
}
