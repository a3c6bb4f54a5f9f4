package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/regimeiq/osint-threat-monitor/internal/api"
	"github.com/regimeiq/osint-threat-monitor/internal/config"
	"github.com/regimeiq/osint-threat-monitor/internal/disagreement"
	"github.com/regimeiq/osint-threat-monitor/internal/engine"
	"github.com/regimeiq/osint-threat-monitor/internal/metrics"
	"github.com/regimeiq/osint-threat-monitor/internal/models"
	"github.com/regimeiq/osint-threat-monitor/internal/repo"
	"github.com/regimeiq/osint-threat-monitor/internal/services"
	"github.com/regimeiq/osint-threat-monitor/internal/utils"
)

func main() {
	root := &cobra.Command{
		Use:   "threat-correlator",
		Short: "Correlate and score heterogeneous security records",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newCorrelateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the correlation engine HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
			logger.Info("starting threat-correlator", slog.String("address", cfg.Server.Address))

			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			memStore := repo.NewMemoryStore()
			var store repo.ResultStore = memStore
			if cfg.Redis.Enabled && cfg.Redis.Addr != "" {
				redisStore, err := repo.NewRedisStore(cfg.Redis)
				if err != nil {
					logger.Warn("redis unavailable, using in-memory store", slog.Any("error", err))
				} else {
					store = redisStore
					defer redisStore.Close()
				}
			}

			var secondary repo.SecondarySignal
			if cfg.Classifier.BaseURL != "" {
				secondary = repo.NewClassifierClient(cfg.Classifier.BaseURL, cfg.Classifier.TierPath, cfg.Classifier.Timeout)
			}
			monitor := disagreement.NewMonitor(logger, secondary, store)

			pipeline := engine.NewPipeline(cfg, logger, memStore, store, monitor)
			service := services.NewCorrelationService(logger, pipeline, store, memStore, monitor)
			server := api.NewServer(cfg.Server, logger, service)

			ctx, stop := signalContext()
			defer stop()

			var metricsServer *http.Server
			if cfg.Server.MetricsAddress != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsServer = &http.Server{
					Addr:         cfg.Server.MetricsAddress,
					Handler:      mux,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 15 * time.Second,
				}
				go func() {
					logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
					if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server exited", slog.Any("error", err))
						stop()
					}
				}()
			}

			go func() {
				if serveErr := server.Start(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					logger.Error("http server exited", slog.Any("error", serveErr))
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown", slog.Any("error", err))
			}
			if metricsServer != nil {
				metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
				if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics server shutdown", slog.Any("error", err))
				}
				cancelMetrics()
			}

			logger.Info("threat-correlator stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	return cmd
}

func newCorrelateCmd() *cobra.Command {
	var (
		configPath  string
		recordsPath string
		windowHours float64
		minCluster  int
	)

	cmd := &cobra.Command{
		Use:   "correlate",
		Short: "Run one correlation pass over a records file and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)

			raw, err := os.ReadFile(recordsPath)
			if err != nil {
				return fmt.Errorf("read records: %w", err)
			}
			var records []models.Record
			if err := json.Unmarshal(raw, &records); err != nil {
				return fmt.Errorf("parse records: %w", err)
			}

			store := repo.NewMemoryStore()
			store.PutRecords(records...)
			monitor := disagreement.NewMonitor(logger, nil, store)
			pipeline := engine.NewPipeline(cfg, logger, store, store, monitor)

			req := models.CorrelateRequest{
				WindowHours:    windowHours,
				MinClusterSize: minCluster,
			}
			req.WindowStart, req.WindowEnd = recordBounds(records)

			ctx, stop := signalContext()
			defer stop()

			result, err := pipeline.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("correlation run: %w", err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	cmd.Flags().StringVarP(&recordsPath, "records", "r", "records.json", "path to the JSON records file")
	cmd.Flags().Float64Var(&windowHours, "window-hours", 0, "maximum pair gap in hours (0 = configured default)")
	cmd.Flags().IntVar(&minCluster, "min-cluster-size", 0, "minimum thread size (0 = configured default)")
	return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// recordBounds widens the window to cover every timestamped record, padded
// so boundary records are not excluded.
func recordBounds(records []models.Record) (time.Time, time.Time) {
	var start, end time.Time
	for _, rec := range records {
		if rec.Timestamp.IsZero() {
			continue
		}
		if start.IsZero() || rec.Timestamp.Before(start) {
			start = rec.Timestamp
		}
		if end.IsZero() || rec.Timestamp.After(end) {
			end = rec.Timestamp
		}
	}
	if !start.IsZero() {
		start = start.Add(-time.Minute)
		end = end.Add(time.Minute)
	}
	return start, end
}
