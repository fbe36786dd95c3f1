package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/metrics"
	"sakura_marketplace/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// statsBlockWindow is the number of blocks averaged for the block time statistic.
const statsBlockWindow = 10

// EVMClient implements port.BlockchainClient for EVM-compatible chains.
// Every call is rate limited and runs through a circuit breaker keyed by network.
type EVMClient struct {
	ethClient      *ethclient.Client
	netDef         entity.NetworkDefinition
	rpcCallTimeout time.Duration
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	metrics        port.Metrics
}

// ClientOptions configures NewEVMClient.
type ClientOptions struct {
	ConnectionTimeout time.Duration
	RPCCallTimeout    time.Duration
	RateLimit         float64
	BurstLimit        int
	Breaker           gobreaker.Settings
	Metrics           port.Metrics
}

// NewEVMClient dials the primary RPC URL of netDef, then each fallback until one succeeds.
func NewEVMClient(netDef entity.NetworkDefinition, opts ClientOptions) (*EVMClient, error) {
	var lastErr error

	for _, rpcURL := range netDef.RPCURLs() {
		ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()

		if err == nil {
			return newEVMClient(client, netDef, opts), nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}

	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", netDef.Name, lastErr)
}

// NewEVMClientFromRPC wraps an existing rpc.Client. Used for in-process backends.
func NewEVMClientFromRPC(rpcClient *rpc.Client, netDef entity.NetworkDefinition, opts ClientOptions) *EVMClient {
	return newEVMClient(ethclient.NewClient(rpcClient), netDef, opts)
}

func newEVMClient(ec *ethclient.Client, netDef entity.NetworkDefinition, opts ClientOptions) *EVMClient {
	settings := opts.Breaker
	settings.Name = "rpc:" + netDef.Identifier
	if settings.IsSuccessful == nil {
		settings.IsSuccessful = isEndpointHealthy
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.BurstLimit
	if burst <= 0 {
		burst = 1
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	timeout := opts.RPCCallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &EVMClient{
		ethClient:      ec,
		netDef:         netDef,
		rpcCallTimeout: timeout,
		limiter:        rate.NewLimiter(limit, burst),
		breaker:        gobreaker.NewCircuitBreaker(settings),
		metrics:        recorder,
	}
}

// isEndpointHealthy keeps JSON-RPC application errors (reverts, bad params) from tripping the breaker:
// the endpoint answered, the call itself was rejected.
func isEndpointHealthy(err error) bool {
	if err == nil || errors.Is(err, ethereum.NotFound) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

func guarded[T any](ctx context.Context, c *EVMClient, method string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.IncRPCCall(c.netDef.Identifier, method, "throttled")
		return zero, fmt.Errorf("%s on %s: rate limiter: %w", method, c.netDef.Name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.rpcCallTimeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return fn(callCtx)
	})
	if err != nil {
		c.metrics.IncRPCCall(c.netDef.Identifier, method, "error")
		return zero, fmt.Errorf("%s on %s: %w", method, c.netDef.Name, err)
	}
	c.metrics.IncRPCCall(c.netDef.Identifier, method, "ok")
	v, _ := out.(T)
	return v, nil
}

// BalanceAt returns the latest native balance of account.
func (c *EVMClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return guarded(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.ethClient.BalanceAt(ctx, account, nil)
	})
}

// EstimateGas estimates the gas needed by msg.
func (c *EVMClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return guarded(ctx, c, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return c.ethClient.EstimateGas(ctx, msg)
	})
}

// SuggestGasPrice returns the node's legacy gas price suggestion.
func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return guarded(ctx, c, "eth_gasPrice", func(ctx context.Context) (*big.Int, error) {
		return c.ethClient.SuggestGasPrice(ctx)
	})
}

// CallContract executes a read-only call at the latest block.
func (c *EVMClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return guarded(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.ethClient.CallContract(ctx, msg, nil)
	})
}

// TransactionReceipt returns the receipt of txHash or an error wrapping ethereum.NotFound while pending.
func (c *EVMClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return guarded(ctx, c, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return c.ethClient.TransactionReceipt(ctx, txHash)
	})
}

type blockTimestamp struct {
	Number    hexutil.Uint64 `json:"number"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// NetworkStats fetches head block, gas price and the average block time using JSON-RPC batches.
func (c *EVMClient) NetworkStats(ctx context.Context) (entity.NetworkStats, error) {
	return guarded(ctx, c, "network_stats", func(ctx context.Context) (entity.NetworkStats, error) {
		stats := entity.NetworkStats{ChainID: c.netDef.ChainID, NetworkName: c.netDef.Name}
		rawRPCClient := c.ethClient.Client()

		var head hexutil.Uint64
		var gasPrice hexutil.Big
		batchElems := []rpc.BatchElem{
			{Method: "eth_blockNumber", Result: &head},
			{Method: "eth_gasPrice", Result: &gasPrice},
		}
		if err := rawRPCClient.BatchCallContext(ctx, batchElems); err != nil {
			return stats, fmt.Errorf("RPC batch call failed: %w", err)
		}
		for _, elem := range batchElems {
			if elem.Error != nil {
				return stats, fmt.Errorf("%s failed: %w", elem.Method, elem.Error)
			}
		}

		stats.BlockNumber = uint64(head)
		price := (*big.Int)(&gasPrice)
		stats.GasPriceWei = price.String()
		stats.GasPriceGwei = utils.FormatGwei(price)

		if stats.BlockNumber < statsBlockWindow {
			return stats, nil
		}

		var latest, earlier *blockTimestamp
		blockElems := []rpc.BatchElem{
			{Method: "eth_getBlockByNumber", Args: []interface{}{hexutil.Uint64(stats.BlockNumber), false}, Result: &latest},
			{Method: "eth_getBlockByNumber", Args: []interface{}{hexutil.Uint64(stats.BlockNumber - statsBlockWindow), false}, Result: &earlier},
		}
		if err := rawRPCClient.BatchCallContext(ctx, blockElems); err != nil {
			return stats, fmt.Errorf("RPC batch call failed: %w", err)
		}
		if blockElems[0].Error != nil || blockElems[1].Error != nil || latest == nil || earlier == nil {
			// Block time is informational; head and gas price are still valid.
			return stats, nil
		}
		if latest.Timestamp > earlier.Timestamp {
			stats.AvgBlockTimeSeconds = float64(latest.Timestamp-earlier.Timestamp) / statsBlockWindow
		}
		return stats, nil
	})
}

// Definition returns the network definition for this client.
func (c *EVMClient) Definition() entity.NetworkDefinition {
	return c.netDef
}

// Close releases the underlying connection.
func (c *EVMClient) Close() {
	c.ethClient.Close()
}

var _ port.BlockchainClient = (*EVMClient)(nil)
