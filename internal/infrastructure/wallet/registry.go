package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Registry resolves wallet kinds to providers using the configured endpoints.
// A provider is dialed and probed once, then reused.
type Registry struct {
	endpoints    map[entity.WalletKind]string
	probeTimeout time.Duration
	pollInterval time.Duration
	logger       port.Logger
	metrics      port.Metrics
	dial         func(ctx context.Context, endpoint string) (*rpc.Client, error)

	mu        sync.Mutex
	providers map[entity.WalletKind]*RPCProvider
}

// NewRegistry builds a registry from the wallets section of cfg.
func NewRegistry(cfg *configloader.Config, logger port.Logger, recorder port.Metrics) *Registry {
	return &Registry{
		endpoints:    cfg.WalletEndpoints(),
		probeTimeout: time.Duration(cfg.Wallets.ProbeTimeoutSeconds) * time.Second,
		pollInterval: time.Duration(cfg.Wallets.PollIntervalMillis) * time.Millisecond,
		logger:       logger.With("component", "wallet_registry"),
		metrics:      recorder,
		dial:         rpc.DialContext,
		providers:    make(map[entity.WalletKind]*RPCProvider),
	}
}

func notFound(kind entity.WalletKind, cause error) error {
	name := kind.DisplayName()
	return entity.NewError(entity.KindProviderNotFound, "lookup_wallet",
		fmt.Sprintf("%s not installed. Please install %s and try again.", name, name), cause)
}

// Lookup returns the provider for kind or a ProviderNotFound error when it is not configured or not answering.
func (r *Registry) Lookup(ctx context.Context, kind entity.WalletKind) (port.WalletProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[kind]; ok {
		return p, nil
	}

	endpoint, ok := r.endpoints[kind]
	if !ok {
		return nil, notFound(kind, nil)
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	client, err := r.dial(probeCtx, endpoint)
	if err != nil {
		r.logger.Warn("Failed to dial wallet endpoint", "wallet", kind.String(), "error", err)
		return nil, notFound(kind, err)
	}

	var chainID hexutil.Uint64
	if err := client.CallContext(probeCtx, &chainID, "eth_chainId"); err != nil {
		client.Close()
		r.logger.Warn("Wallet endpoint did not answer eth_chainId", "wallet", kind.String(), "error", err)
		return nil, notFound(kind, err)
	}

	p := NewRPCProvider(kind, client, r.pollInterval, r.logger, r.metrics)
	r.providers[kind] = p
	r.logger.Info("Wallet provider ready", "wallet", kind.String(), "chainId", uint64(chainID))
	return p, nil
}

// Close releases every cached provider.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for kind, p := range r.providers {
		p.Close()
		delete(r.providers, kind)
	}
}

var _ port.WalletProviderRegistry = (*Registry)(nil)
