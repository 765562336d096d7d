// Command statsd-server runs the StatsD-compatible metrics aggregator:
// a UDP listener, the processor, the periodic tick/flush driver, a TCP
// carbon writer, an optional host/self stat collector, and an optional
// internal Prometheus exporter, wired together the way
// cmd/hekad/main.go wires a heka daemon's pipeline, replacing that
// file's flag-based config with the pack's cobra/viper idiom.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bicycleday/gostatsd/config"
	"github.com/bicycleday/gostatsd/internalstats"
	"github.com/bicycleday/gostatsd/plugin/setmetric"
	"github.com/bicycleday/gostatsd/processor"
	"github.com/bicycleday/gostatsd/server"
	"github.com/bicycleday/gostatsd/statcollector"
)

var configPath string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statsd-server",
		Short: "StatsD-compatible metrics aggregator with a Graphite egress",
		RunE:  run,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "optional INI config file; flags take precedence over its values")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	log := logrus.New()
	instanceID := uuid.NewString()
	entry := log.WithField("instance", instanceID)

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		entry.WithError(err).Error("failed to load configuration")
		return err
	}

	registry := processor.NewRegistry()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		registry.Register(setmetric.NewFactory(setmetric.NewGoRedisAdapter(redisClient), instanceID, time.Hour))
	}

	proc := processor.New(cfg.ProcessorConfig(), wallClock, registry)
	proc.OnFail(func(raw string, err error) {
		entry.WithError(err).WithField("message", raw).Debug("dropped malformed ingest")
	})

	listener, err := server.NewListener(cfg.ListenAddr, proc, cfg.MonitorMessage, cfg.MonitorResponse, entry)
	if err != nil {
		entry.WithError(err).WithField("addr", cfg.ListenAddr).Error("failed to bind UDP listener")
		return err
	}
	defer listener.Close()

	writer := server.NewCarbonWriter(cfg.CarbonAddr, 5*time.Second, entry)
	defer writer.Close()

	driver := server.NewDriver(proc, writer, cfg.FlushInterval, time.Now, entry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go listener.Run(ctx)
	go driver.Run(ctx)

	if cfg.StatCollectorInterval > 0 {
		collector := statcollector.New(proc, cfg.StatCollectorInterval, entry)
		go collector.Run(ctx)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		exporter := internalstats.New(proc)
		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if lerr := metricsSrv.ListenAndServe(); lerr != nil && !errors.Is(lerr, http.ErrServerClosed) {
				entry.WithError(lerr).WithField("addr", cfg.MetricsAddr).Warn("internal metrics server stopped")
			}
		}()
	}

	entry.WithFields(logrus.Fields{
		"listen": cfg.ListenAddr,
		"carbon": cfg.CarbonAddr,
	}).Info("statsd-server started")

	<-ctx.Done()
	entry.Info("shutting down")

	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		metricsSrv.Shutdown(shutdownCtx)
	}

	return nil
}

// wallClock is the Clock passed to processor.New in production; every
// time-consuming component takes a Clock constructor param so tests can
// substitute a deterministic one instead.
func wallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
