package port

import (
	"context"
	"math/big"

	"sakura_marketplace/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NetworkRegistry is the static table of supported networks.
type NetworkRegistry interface {
	// ListNetworks returns every supported network in registry order.
	ListNetworks() []entity.NetworkDefinition

	// GetNetwork looks a network up by chain id.
	GetNetwork(chainID uint64) (entity.NetworkDefinition, bool)

	// DefaultNetwork is the network a wallet is moved to when it connects on an unsupported chain.
	DefaultNetwork() entity.NetworkDefinition
}

// BlockchainClient performs read-only calls against a network's public RPC endpoint.
// Nothing here needs a signer; transactions are signed by the wallet provider.
type BlockchainClient interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	NetworkStats(ctx context.Context) (entity.NetworkStats, error)

	// Definition returns the network definition associated with this client.
	Definition() entity.NetworkDefinition
}

// BlockchainClientProvider hands out cached clients per network.
type BlockchainClientProvider interface {
	GetClient(networkDefinition entity.NetworkDefinition) (BlockchainClient, error)
}
