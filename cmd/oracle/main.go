// Command oracle runs the subgraph availability oracle: it periodically
// validates curated subgraph deployments against IPFS and reconciles an
// on-chain deny list.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/graphops/availability-oracle/internal/config"
	"github.com/graphops/availability-oracle/internal/ipfscat"
	"github.com/graphops/availability-oracle/internal/metrics"
	"github.com/graphops/availability-oracle/internal/reconcile"
	"github.com/graphops/availability-oracle/internal/scheduler"
	"github.com/graphops/availability-oracle/internal/statemanager"
	"github.com/graphops/availability-oracle/internal/subgraph"
	"github.com/graphops/availability-oracle/internal/validator"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Info("starting availability oracle",
		slog.Int("period_secs", cfg.PeriodSecs),
		slog.Bool("dry_run", cfg.DryRun),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	go func() {
		addr := ":" + strconv.Itoa(cfg.MetricsPort)
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := metrics.Serve(addr, registry); err != nil {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	ipfs := ipfscat.New(cfg.IPFS, cfg.IPFSConcurrency, cfg.IPFSTimeout)
	networkSubgraph := subgraph.New(cfg.Subgraph)
	epochSubgraph := subgraph.New(cfg.EpochBlockOracleSubgraph)

	var smParams statemanager.Params
	smParams.DryRun = cfg.DryRun
	smParams.RPCURL = cfg.RPCURL
	smParams.SigningKey = cfg.SigningKey
	smParams.SubgraphAvailabilityManager = cfg.SubgraphAvailabilityManager
	smParams.RewardsManager = cfg.RewardsManager
	smParams.OracleIndex = cfg.OracleIndex

	sm, err := statemanager.New(ctx, smParams, logger)
	if err != nil {
		log.Fatalf("failed to construct state manager: %v", err)
	}

	v := validator.New(ipfs, validator.DefaultForbiddenHostFnPrefixes)

	engine := reconcile.New(reconcile.Deps{
		NetworkSubgraph:          networkSubgraph,
		EpochSubgraph:            epochSubgraph,
		Validator:                v,
		StateManager:             sm,
		SupportedDataSourceKinds: cfg.SupportedDataSourceKinds,
		MinSignal:                cfg.MinSignal,
		GracePeriod:              cfg.GracePeriod,
		Logger:                   logger,
		Metrics:                  m,
	})

	sched := scheduler.New(engine, ipfs, m, logger)

	period := time.Duration(cfg.PeriodSecs) * time.Second
	if err := sched.Run(ctx, period, reconcile.Cache{}); err != nil {
		logger.Error("oracle exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
