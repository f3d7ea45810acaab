// Package reconcile implements the oracle's single reconciliation cycle:
// it streams deployments, consults the valid-deployment cache, runs up to
// 100 validations in parallel, diffs against on-chain deny bits, forwards
// changed entries to the state manager, and returns the updated cache.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphops/availability-oracle/internal/cidutil"
	"github.com/graphops/availability-oracle/internal/domain"
	"github.com/graphops/availability-oracle/internal/metrics"
	"github.com/graphops/availability-oracle/internal/statemanager"
	"github.com/graphops/availability-oracle/internal/subgraph"
	"github.com/graphops/availability-oracle/internal/validator"
)

// CacheTTL is the valid-deployment cache's time-to-live: a deployment whose
// most recent verdict was Yes within this window is assumed still valid.
const CacheTTL = 24 * time.Hour

// ValidatorConcurrency bounds in-flight validations per cycle, independent
// of the IPFS client's own concurrency gate.
const ValidatorConcurrency = 100

// Cache is the valid-deployment cache, owned by the scheduler and passed
// through each cycle.
type Cache map[string]domain.CacheEntry

// Deps wires the reconciliation engine's collaborators.
type Deps struct {
	NetworkSubgraph          subgraph.NetworkSubgraph
	EpochSubgraph            subgraph.EpochBlockOracleSubgraph
	Validator                *validator.Validator
	StateManager             statemanager.StateManager
	SupportedDataSourceKinds []string
	MinSignal                uint64
	GracePeriod              time.Duration
	Logger                   *slog.Logger
	Metrics                  *metrics.Metrics
}

// Engine runs reconciliation cycles.
type Engine struct {
	deps Deps
}

// New builds an Engine.
func New(deps Deps) *Engine {
	return &Engine{deps: deps}
}

type validated struct {
	deployment    domain.Deployment
	cid           string
	verdict       domain.Verdict
	lastValidated time.Time
}

// Reconcile runs one cycle against cache and returns the updated cache. On
// any transport/other error it returns the original cache unchanged, per
// spec §4.6's "caller retains the pre-cycle cache on failure" rule.
func (e *Engine) Reconcile(ctx context.Context, cache Cache) (Cache, error) {
	networks, err := e.deps.EpochSubgraph.SupportedNetworks(ctx)
	if err != nil {
		return cache, fmt.Errorf("fetch supported networks: %w", err)
	}
	e.deps.Logger.Info("supported networks drained", slog.Any("networks", networks))

	supportedNetworks := toSet(networks)
	supportedKinds := toSet(e.deps.SupportedDataSourceKinds)

	deploymentsCh := e.deps.NetworkSubgraph.DeploymentsOverThreshold(ctx, e.deps.MinSignal, e.deps.GracePeriod)

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(cycleCtx)
	g.SetLimit(ValidatorConcurrency)

	var mu sync.Mutex
	var results []validated
	var streamErr error

	for item := range deploymentsCh {
		if item.Err != nil {
			streamErr = fmt.Errorf("subgraph stream: %w", item.Err)
			cancel()
			break
		}
		d := item.Deployment
		g.Go(func() error {
			r, err := e.validateOne(gctx, d, cache, supportedNetworks, supportedKinds)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	drain(deploymentsCh)

	if err := g.Wait(); err != nil {
		return cache, err
	}
	if streamErr != nil {
		return cache, streamErr
	}

	changed, newCache := e.diff(results)

	if err := e.deps.StateManager.DenyMany(ctx, changed); err != nil {
		return cache, fmt.Errorf("deny_many: %w", err)
	}

	return newCache, nil
}

func (e *Engine) validateOne(ctx context.Context, d domain.Deployment, cache Cache, supportedNetworks, supportedKinds map[string]bool) (validated, error) {
	cid, err := cidutil.CIDv0(d.ID)
	if err != nil {
		return validated{}, fmt.Errorf("compute cidv0 for deployment: %w", err)
	}

	if entry, ok := cache[cid]; ok && time.Since(entry.LastValidated) < CacheTTL {
		e.deps.Metrics.ValidDeploymentCacheHits.Inc()
		return validated{deployment: d, cid: cid, verdict: domain.Yes(), lastValidated: entry.LastValidated}, nil
	}

	verdict, err := e.deps.Validator.Validate(ctx, cid, supportedNetworks, supportedKinds)
	if err != nil {
		return validated{}, fmt.Errorf("validate %s: %w", cid, err)
	}
	return validated{deployment: d, cid: cid, verdict: verdict, lastValidated: time.Now()}, nil
}

// diff reduces validation results to the changed-entries batch for
// deny_many and the updated cache, logging per spec §4.6 step 5.
func (e *Engine) diff(results []validated) ([]statemanager.Entry, Cache) {
	newCache := make(Cache, len(results))
	var changed []statemanager.Entry

	for _, r := range results {
		shouldDeny := !r.verdict.Valid
		didChange := r.deployment.Deny != shouldDeny

		if !r.verdict.Valid {
			e.deps.Logger.Info("deployment invalid",
				slog.String("cid", r.cid),
				slog.String("reason", r.verdict.Reason.Error()),
			)
		}
		if didChange {
			e.deps.Logger.Info("deny status changed",
				slog.String("cid", r.cid),
				slog.Bool("old", r.deployment.Deny),
				slog.Bool("new", shouldDeny),
			)
			changed = append(changed, statemanager.Entry{ID: r.deployment.ID, Deny: shouldDeny})
		}

		if !shouldDeny {
			newCache[r.cid] = domain.CacheEntry{CID: r.cid, LastValidated: r.lastValidated}
		}
	}

	return changed, newCache
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func drain(ch <-chan subgraph.DeploymentOrError) {
	go func() {
		for range ch {
		}
	}()
}
