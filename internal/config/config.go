// Package config loads the oracle's configuration from CLI flags and
// environment variables, binding each flag to its paired env var the way
// the teacher's internal/config package binds viper to env vars.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultSupportedDataSourceKinds is the default set from spec §6;
// "ethereum/contract" is a literal alias of "ethereum", not special-cased.
var DefaultSupportedDataSourceKinds = []string{"ethereum", "ethereum/contract", "file/ipfs", "substreams", "file/arweave"}

// Config is the oracle's fully resolved, validated configuration.
type Config struct {
	IPFS                        string
	Subgraph                    string
	EpochBlockOracleSubgraph    string
	PeriodSecs                  int
	MinSignal                   uint64
	GracePeriod                 time.Duration
	IPFSConcurrency             int64
	IPFSTimeout                 time.Duration
	SigningKey                  string
	DryRun                      bool
	MetricsPort                 int
	SupportedDataSourceKinds    []string
	SubgraphAvailabilityManager *common.Address
	RewardsManager              *common.Address
	RPCURL                      string
	OracleIndex                 *uint8
}

// flagEnv is one (long flag, env var) pair from spec §6.
type flagEnv struct {
	flag, env string
}

var (
	fIPFS           = flagEnv{"ipfs", "ORACLE_IPFS"}
	fSubgraph       = flagEnv{"subgraph", "ORACLE_SUBGRAPH"}
	fEpochSubgraph  = flagEnv{"epoch-block-oracle-subgraph", "EPOCH_BLOCK_ORACLE_SUBGRAPH"}
	fPeriod         = flagEnv{"period-secs", "ORACLE_PERIOD_SECS"}
	fMinSignal      = flagEnv{"min-signal", "ORACLE_MIN_SIGNAL"}
	fGracePeriod    = flagEnv{"grace-period", "ORACLE_GRACE_PERIOD"}
	fIPFSConcurrent = flagEnv{"ipfs-concurrency", "ORACLE_IPFS_CONCURRENCY"}
	fIPFSTimeout    = flagEnv{"ipfs-timeout-secs", "ORACLE_IPFS_TIMEOUT_SECS"}
	fSigningKey     = flagEnv{"signing-key", "ORACLE_SIGNING_KEY"}
	fDryRun         = flagEnv{"dry-run", ""}
	fMetricsPort    = flagEnv{"metrics-port", "ORACLE_METRICS_PORT"}
	fDSKinds        = flagEnv{"supported-data-source-kinds", "SUPPORTED_DATA_SOURCE_KINDS"}
	fAvailMgr       = flagEnv{"subgraph-availability-manager-contract", "SUBGRAPH_AVAILABILITY_MANAGER_CONTRACT"}
	fRewardsMgr     = flagEnv{"rewards-manager-contract", "REWARDS_MANAGER_CONTRACT"}
	fRPCURL         = flagEnv{"url", "RPC_URL"}
	fOracleIndex    = flagEnv{"oracle-index", "ORACLE_INDEX"}
)

// Load parses args (excluding the program name) and the process environment
// into a validated Config.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	fs := pflag.NewFlagSet("oracle", pflag.ContinueOnError)
	fs.String(fIPFS.flag, "", "IPFS HTTP endpoint URL")
	fs.String(fSubgraph.flag, "", "network subgraph GraphQL URL")
	fs.String(fEpochSubgraph.flag, "", "epoch block oracle subgraph GraphQL URL")
	fs.Int(fPeriod.flag, 0, "reconciliation period in seconds; 0 means run once")
	fs.Uint64(fMinSignal.flag, 100, "minimum signal threshold")
	fs.Int(fGracePeriod.flag, 0, "grace period in seconds")
	fs.Int64(fIPFSConcurrent.flag, 100, "max in-flight IPFS cat calls")
	fs.Int(fIPFSTimeout.flag, 30, "per-call IPFS timeout in seconds")
	fs.String(fSigningKey.flag, "", "hex secp256k1 oracle signing key")
	fs.Bool(fDryRun.flag, false, "log deny-list changes instead of submitting them")
	fs.Int(fMetricsPort.flag, 8090, "metrics HTTP port")
	fs.String(fDSKinds.flag, strings.Join(DefaultSupportedDataSourceKinds, ","), "comma-separated supported data source kinds")
	fs.String(fAvailMgr.flag, "", "subgraph availability manager contract address")
	fs.String(fRewardsMgr.flag, "", "rewards manager contract address")
	fs.String(fRPCURL.flag, "", "Ethereum JSON-RPC endpoint")
	fs.Uint(fOracleIndex.flag, 0, "this oracle's index when voting")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	for _, fe := range []flagEnv{fIPFS, fSubgraph, fEpochSubgraph, fPeriod, fMinSignal, fGracePeriod,
		fIPFSConcurrent, fIPFSTimeout, fSigningKey, fMetricsPort, fDSKinds, fAvailMgr, fRewardsMgr, fRPCURL, fOracleIndex} {
		if fe.env != "" {
			if err := v.BindEnv(fe.flag, fe.env); err != nil {
				return nil, fmt.Errorf("bind env %s: %w", fe.env, err)
			}
		}
		if err := v.BindPFlag(fe.flag, fs.Lookup(fe.flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", fe.flag, err)
		}
	}
	if err := v.BindPFlag(fDryRun.flag, fs.Lookup(fDryRun.flag)); err != nil {
		return nil, fmt.Errorf("bind flag %s: %w", fDryRun.flag, err)
	}

	cfg := &Config{
		IPFS:                     v.GetString(fIPFS.flag),
		Subgraph:                 v.GetString(fSubgraph.flag),
		EpochBlockOracleSubgraph: v.GetString(fEpochSubgraph.flag),
		PeriodSecs:               v.GetInt(fPeriod.flag),
		MinSignal:                v.GetUint64(fMinSignal.flag),
		GracePeriod:              time.Duration(v.GetInt(fGracePeriod.flag)) * time.Second,
		IPFSConcurrency:          v.GetInt64(fIPFSConcurrent.flag),
		IPFSTimeout:              time.Duration(v.GetInt(fIPFSTimeout.flag)) * time.Second,
		SigningKey:               v.GetString(fSigningKey.flag),
		DryRun:                   v.GetBool(fDryRun.flag),
		MetricsPort:              v.GetInt(fMetricsPort.flag),
		RPCURL:                   v.GetString(fRPCURL.flag),
	}

	cfg.SupportedDataSourceKinds = splitKinds(v.GetString(fDSKinds.flag))

	if addr := v.GetString(fAvailMgr.flag); addr != "" {
		a := common.HexToAddress(addr)
		cfg.SubgraphAvailabilityManager = &a
	}
	if addr := v.GetString(fRewardsMgr.flag); addr != "" {
		a := common.HexToAddress(addr)
		cfg.RewardsManager = &a
	}
	if fs.Changed(fOracleIndex.flag) || os.Getenv(fOracleIndex.env) != "" {
		idx := uint8(v.GetUint(fOracleIndex.flag))
		cfg.OracleIndex = &idx
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitKinds(raw string) []string {
	parts := strings.Split(raw, ",")
	kinds := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kinds = append(kinds, p)
		}
	}
	return kinds
}

func (c *Config) validate() error {
	if c.IPFS == "" {
		return fmt.Errorf("--ipfs is required")
	}
	if c.Subgraph == "" {
		return fmt.Errorf("--subgraph is required")
	}
	if c.EpochBlockOracleSubgraph == "" {
		return fmt.Errorf("--epoch-block-oracle-subgraph is required")
	}
	if !c.DryRun {
		if c.SigningKey == "" {
			return fmt.Errorf("--signing-key is required unless --dry-run")
		}
		if c.RPCURL == "" {
			return fmt.Errorf("--url is required unless --dry-run")
		}
		if c.SubgraphAvailabilityManager == nil && c.RewardsManager == nil {
			return fmt.Errorf("one of --subgraph-availability-manager-contract (with --oracle-index) or --rewards-manager-contract is required unless --dry-run")
		}
	}
	return nil
}
