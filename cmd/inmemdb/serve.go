package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raniellyferreira/inmemdb"
	"github.com/raniellyferreira/inmemdb/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inmemdb server",
	Long: `Start the inmemdb server. Settings come from flags, the config file, or
environment variables named INMEMDB_<flag> (e.g. INMEMDB_CLEAN_PERIOD=10s).
A .env file in the working directory is loaded first.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", "localhost:7081", wrapString("Address to listen on"))
	flags.Int("databases", 10, wrapString("Number of databases"))
	flags.Duration("clean-period", 30*time.Second, wrapString("How often expired keys are removed"))
	flags.Duration("replication-period", 2*time.Second, wrapString("How often queued writes are sent to replicas"))
	flags.Int("output-limit", 1024, wrapString("Replies and messages queued for one client before it is disconnected"))
	flags.Bool("persistence", false, wrapString("Load the snapshot file on start and write it periodically"))
	flags.String("dump-file", "dump.rdb", wrapString("Snapshot file path"))
	flags.Duration("sync-period", time.Minute, wrapString("How often the snapshot file is written"))
	flags.Bool("notifications", false, wrapString("Publish keyspace notifications"))
	flags.Bool("off-heap", false, wrapString("Accepted for compatibility, has no effect"))
	flags.String("replica-of", "", wrapString("Follow the primary at host:port"))
	flags.String("metrics-addr", "", wrapString("Address for the Prometheus /metrics endpoint, empty to disable"))
	flags.Bool("debug", false, wrapString("Log debug messages"))
}

// buildOptions turns the resolved viper settings into DB options
func buildOptions(logger inmemdb.Logger, collector *metrics.Collector) []inmemdb.Option {
	opts := []inmemdb.Option{
		inmemdb.WithAddr(viper.GetString("addr")),
		inmemdb.WithDatabases(viper.GetInt("databases")),
		inmemdb.WithCleanPeriod(viper.GetDuration("clean-period")),
		inmemdb.WithReplicationPeriod(viper.GetDuration("replication-period")),
		inmemdb.WithOutputLimit(viper.GetInt("output-limit")),
		inmemdb.WithNotifications(viper.GetBool("notifications")),
		inmemdb.WithOffHeap(viper.GetBool("off-heap")),
		inmemdb.WithLogger(logger),
		inmemdb.WithMetrics(collector),
	}
	if viper.GetBool("persistence") {
		opts = append(opts, inmemdb.WithPersistence(viper.GetString("dump-file"), viper.GetDuration("sync-period")))
	}
	if primary := viper.GetString("replica-of"); primary != "" {
		opts = append(opts, inmemdb.WithReplicaOf(primary))
	}
	return opts
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := inmemdb.NewLogger(viper.GetBool("debug"))
	collector := metrics.NewCollector()

	db, err := inmemdb.New(buildOptions(logger, collector)...)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := db.Start(ctx); err != nil {
		_ = db.Close()
		return err
	}

	var metricsServer *http.Server
	if addr := viper.GetString("metrics-addr"); addr != "" {
		metricsServer = newMetricsServer(addr, collector)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics endpoint failed", inmemdb.Field{Key: "error", Value: err})
			}
		}()
		logger.Info("Metrics endpoint listening", inmemdb.Field{Key: "addr", Value: addr})
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return db.Close()
}

func newMetricsServer(addr string, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		collector.WritePrometheus(w)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
