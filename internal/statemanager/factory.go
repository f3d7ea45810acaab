package statemanager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

// Params carries every configuration value the construction-rule factory
// needs. Pointers are nil when the corresponding flag was not set.
type Params struct {
	DryRun                      bool
	RPCURL                      string
	SigningKey                  string
	SubgraphAvailabilityManager *common.Address
	RewardsManager              *common.Address
	OracleIndex                 *uint8
}

// New selects and constructs a StateManager variant per spec §4.5's
// construction rules: dry-run overrides everything; otherwise the
// availability-manager variant is chosen when both the availability-manager
// contract address and oracle index are set, the rewards-manager variant
// when only its contract address is set, and it is a configuration error
// otherwise.
func New(ctx context.Context, p Params, logger *slog.Logger) (StateManager, error) {
	if p.DryRun {
		return NewDryRun(logger), nil
	}

	if p.SubgraphAvailabilityManager != nil && p.OracleIndex != nil {
		return NewSubgraphAvailabilityManagerContract(ctx, p.RPCURL, p.SigningKey, *p.SubgraphAvailabilityManager, *p.OracleIndex, logger)
	}

	if p.RewardsManager != nil {
		return NewRewardsManagerContract(ctx, p.RPCURL, p.SigningKey, *p.RewardsManager, logger)
	}

	return nil, fmt.Errorf("no state manager configured: set --subgraph-availability-manager-contract with --oracle-index, or --rewards-manager-contract, or --dry-run")
}
