// Package statemanager applies deny-list diffs computed by the
// reconciliation engine to one of three sinks: the rewards-manager
// contract, the subgraph-availability-manager contract (oracle-index
// voting), or a dry-run logger that performs no I/O.
package statemanager

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/graphops/availability-oracle/internal/domain"
)

// Entry is one (deployment id, deny bit) pair submitted in a deny_many call.
type Entry struct {
	ID   domain.DeploymentID
	Deny bool
}

// StateManager applies a batch of deny-bit changes. Implementations must
// treat an empty batch as a no-op: no transaction is sent.
type StateManager interface {
	DenyMany(ctx context.Context, entries []Entry) error
}

const rewardsManagerABIJSON = `[{
	"name": "setDenied",
	"type": "function",
	"inputs": [
		{"name": "ids", "type": "bytes32[]"},
		{"name": "deniedStatus", "type": "bool[]"}
	],
	"outputs": []
}]`

const availabilityManagerABIJSON = `[{
	"name": "voteDeny",
	"type": "function",
	"inputs": [
		{"name": "ids", "type": "bytes32[]"},
		{"name": "deniedStatus", "type": "bool[]"},
		{"name": "oracleIndex", "type": "uint8"}
	],
	"outputs": []
}]`

// signer holds the key material and RPC client shared by both contract
// variants.
type signer struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	logger     *slog.Logger
}

func newSigner(ctx context.Context, rpcURL, signingKeyHex string, logger *slog.Logger) (*signer, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(signingKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("derive public key from signing key")
	}
	address := crypto.PubkeyToAddress(*publicKey)

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	return &signer{client: client, privateKey: privateKey, address: address, chainID: chainID, logger: logger}, nil
}

// sendCall builds, signs and submits a single transaction calling method on
// contract with the given ABI-packed arguments, blocking until the node
// accepts it for broadcast (it does not wait for a receipt).
func (s *signer) sendCall(ctx context.Context, contract common.Address, parsedABI abi.ABI, method string, args ...interface{}) error {
	callData, err := parsedABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.address)
	if err != nil {
		return fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := s.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     s.address,
		To:       &contract,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     callData,
	})
	if err != nil {
		return fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     callData,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.privateKey)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}

	s.logger.Info("deny_many transaction submitted",
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.String("contract", contract.Hex()),
		slog.String("method", method),
	)
	return nil
}

func splitEntries(entries []Entry) ([][32]byte, []bool) {
	ids := make([][32]byte, len(entries))
	denied := make([]bool, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		denied[i] = e.Deny
	}
	return ids, denied
}

// RewardsManagerContract calls the rewards-manager's bulk deny function,
// signed by the oracle's key.
type RewardsManagerContract struct {
	signer   *signer
	contract common.Address
	parsed   abi.ABI
}

// NewRewardsManagerContract builds a RewardsManagerContract variant.
func NewRewardsManagerContract(ctx context.Context, rpcURL, signingKeyHex string, contract common.Address, logger *slog.Logger) (*RewardsManagerContract, error) {
	s, err := newSigner(ctx, rpcURL, signingKeyHex, logger)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(rewardsManagerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse rewards manager abi: %w", err)
	}
	return &RewardsManagerContract{signer: s, contract: contract, parsed: parsed}, nil
}

// DenyMany calls setDenied(ids, deniedStatus) with the full batch.
func (r *RewardsManagerContract) DenyMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ids, denied := splitEntries(entries)
	return r.signer.sendCall(ctx, r.contract, r.parsed, "setDenied", ids, denied)
}

// SubgraphAvailabilityManagerContract calls the availability-manager's
// per-oracle voting function.
type SubgraphAvailabilityManagerContract struct {
	signer      *signer
	contract    common.Address
	parsed      abi.ABI
	oracleIndex uint8
}

// NewSubgraphAvailabilityManagerContract builds a
// SubgraphAvailabilityManagerContract variant voting at oracleIndex.
func NewSubgraphAvailabilityManagerContract(ctx context.Context, rpcURL, signingKeyHex string, contract common.Address, oracleIndex uint8, logger *slog.Logger) (*SubgraphAvailabilityManagerContract, error) {
	s, err := newSigner(ctx, rpcURL, signingKeyHex, logger)
	if err != nil {
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(availabilityManagerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse availability manager abi: %w", err)
	}
	return &SubgraphAvailabilityManagerContract{signer: s, contract: contract, parsed: parsed, oracleIndex: oracleIndex}, nil
}

// DenyMany calls voteDeny(ids, deniedStatus, oracleIndex) with the full batch.
func (a *SubgraphAvailabilityManagerContract) DenyMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ids, denied := splitEntries(entries)
	return a.signer.sendCall(ctx, a.contract, a.parsed, "voteDeny", ids, denied, a.oracleIndex)
}

// DryRun logs each entry and performs no I/O.
type DryRun struct {
	logger *slog.Logger
}

// NewDryRun builds a DryRun state manager.
func NewDryRun(logger *slog.Logger) *DryRun {
	return &DryRun{logger: logger}
}

// DenyMany logs the batch without submitting any transaction.
func (d *DryRun) DenyMany(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		d.logger.Info("dry-run deny_many",
			slog.String("id", common.Hash(e.ID).Hex()),
			slog.Bool("deny", e.Deny),
		)
	}
	return nil
}
