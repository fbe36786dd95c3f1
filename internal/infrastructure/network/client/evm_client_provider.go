package client

import (
	"fmt"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"

	"github.com/sony/gobreaker"
)

// evmClientProvider implements port.BlockchainClientProvider, caching one client per chain id.
type evmClientProvider struct {
	clients map[uint64]port.BlockchainClient
	mu      sync.Mutex
	logger  port.Logger
	opts    ClientOptions
	dial    func(entity.NetworkDefinition, ClientOptions) (port.BlockchainClient, error)
}

// NewEVMClientProvider creates a provider configured from cfg.
func NewEVMClientProvider(cfg *configloader.Config, logger port.Logger, metrics port.Metrics) port.BlockchainClientProvider {
	cb := cfg.CircuitBreaker
	log := logger.With("component", "evm_client_provider")
	opts := ClientOptions{
		ConnectionTimeout: cfg.ConnectionTimeout(),
		RPCCallTimeout:    cfg.RPCCallTimeout(),
		RateLimit:         cfg.RPCClient.RateLimit,
		BurstLimit:        cfg.RPCClient.BurstLimit,
		Metrics:           metrics,
		Breaker: gobreaker.Settings{
			MaxRequests: cb.MaxRequests,
			Interval:    time.Duration(cb.IntervalSeconds) * time.Second,
			Timeout:     time.Duration(cb.TimeoutSeconds) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cb.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("RPC circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		},
	}
	return &evmClientProvider{
		clients: make(map[uint64]port.BlockchainClient),
		logger:  log,
		opts:    opts,
		dial: func(def entity.NetworkDefinition, o ClientOptions) (port.BlockchainClient, error) {
			return NewEVMClient(def, o)
		},
	}
}

// GetClient returns the cached client for netDef, dialing it on first use.
func (p *evmClientProvider) GetClient(netDef entity.NetworkDefinition) (port.BlockchainClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, exists := p.clients[netDef.ChainID]; exists {
		return client, nil
	}

	p.logger.Info("Creating new EVM client", "network", netDef.Name, "rpc_primary", netDef.PrimaryRPCURL)
	newClient, err := p.dial(netDef, p.opts)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", netDef.Name, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", netDef.Name, err)
	}

	p.clients[netDef.ChainID] = newClient
	p.logger.Info("Successfully created and cached new EVM client", "network", netDef.Name)
	return newClient, nil
}
