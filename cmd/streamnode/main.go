// Command streamnode runs a StreamPay chain node: the block producer, the
// HTTP API, Prometheus metrics and the configured event sinks.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trufnetwork/streampay/core/api"
	"github.com/trufnetwork/streampay/core/chain"
	"github.com/trufnetwork/streampay/core/config"
	"github.com/trufnetwork/streampay/core/events"
	"github.com/trufnetwork/streampay/core/logging"
	"github.com/trufnetwork/streampay/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("STREAMPAY_CONFIG"), "Path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "streamnode: %+v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateNode(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	logging.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	sink, closeSinks, err := buildSinks(cfg.Node.Events, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	node, err := chain.NewNode(cfg.Node.Chain,
		chain.WithLogger(logger),
		chain.WithEventSink(sink),
		chain.WithMetrics(chain.NewMetrics(reg)))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Node.HTTPAddr,
		Handler:           api.NewRouter(api.NewHandler(node, api.WithLogger(logger)), promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return node.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("http api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func buildSinks(cfg config.Events, logger *zap.Logger) (events.Sink, func(), error) {
	var sinks events.Multi
	closers := []func() error{}
	if cfg.Log {
		sinks = append(sinks, events.NewLogSink(logger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		byKind := make(map[types.EventKind]string, len(cfg.TopicByKind))
		for kind, topic := range cfg.TopicByKind {
			byKind[types.EventKind(kind)] = topic
		}
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, byKind)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, kafkaSink)
		closers = append(closers, kafkaSink.Close)
		logger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("failed to close event sink", zap.Error(err))
			}
		}
	}
	return sinks, closeAll, nil
}
