// Command keeper runs the StreamPay keeper agent against a node's HTTP API.
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
	"github.com/trufnetwork/streampay/core/auth"
	"github.com/trufnetwork/streampay/core/config"
	"github.com/trufnetwork/streampay/core/keeper"
	"github.com/trufnetwork/streampay/core/logging"
	"github.com/trufnetwork/streampay/core/spclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("STREAMPAY_CONFIG"), "Path to YAML config file")
		once       = flag.Bool("once", false, "Run a single cycle and exit")
	)
	flag.Parse()

	if err := run(*configPath, *once); err != nil {
		fmt.Fprintf(os.Stderr, "keeper: %+v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateKeeper(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	logging.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signer, err := auth.NewEthSignerFromHex(cfg.Keeper.PrivateKey)
	if err != nil {
		return errors.Wrap(err, "load keeper key")
	}
	client, err := spclient.NewClient(ctx, cfg.Keeper.NodeURL,
		spclient.WithSigner(signer),
		spclient.WithLogger(logger))
	if err != nil {
		return err
	}

	var oracle keeper.FeeOracle = keeper.NewNodeOracle(client)
	if cfg.Keeper.FeePrice != "" {
		if oracle, err = keeper.NewStaticOracle(cfg.Keeper.FeePrice); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	options := []keeper.Option{
		keeper.WithLogger(logger),
		keeper.WithMetrics(keeper.NewMetrics(reg)),
	}
	if cfg.Keeper.RedisURL != "" {
		rdb, err := keeper.ConnectRedis(ctx, cfg.Keeper.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		options = append(options, keeper.WithJournal(keeper.NewRedisJournal(rdb, cfg.Keeper.JournalKey, cfg.Keeper.JournalSize)))
	}

	agent, err := keeper.NewAgent(cfg.Keeper.Config, client, oracle, options...)
	if err != nil {
		return err
	}
	logger.Info("keeper account", zap.String("address", client.Address().Address()))

	if once {
		rec := agent.RunCycle(ctx)
		if rec.Action == keeper.ActionSkippedError {
			return errors.New(rec.Error)
		}
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.Keeper.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agent.Run(ctx)
	})
	if srv.Addr != "" {
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
