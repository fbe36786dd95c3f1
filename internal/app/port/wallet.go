package port

import (
	"context"
	"encoding/json"

	"sakura_marketplace/internal/domain/entity"
)

// WalletProvider is an EIP-1193 style wallet: JSON-RPC requests plus emitted events.
type WalletProvider interface {
	Kind() entity.WalletKind

	// Request performs a JSON-RPC call and decodes the result into result (which may be nil).
	Request(ctx context.Context, result any, method string, params ...any) error

	// Subscribe registers handler for event. The returned func unregisters it and is safe to call twice.
	Subscribe(event entity.ProviderEvent, handler func(payload json.RawMessage)) (unsubscribe func())
}

// WalletProviderRegistry resolves a wallet kind to a reachable provider.
type WalletProviderRegistry interface {
	Lookup(ctx context.Context, kind entity.WalletKind) (WalletProvider, error)
}

// NetworkSwitcher brings a wallet's active chain to a supported network.
type NetworkSwitcher interface {
	SwitchNetwork(ctx context.Context, provider WalletProvider, targetChainID uint64) error
}

// SessionReader is the read side of the wallet session used by the workflows.
type SessionReader interface {
	Session() entity.WalletSession
	ActiveProvider() (WalletProvider, bool)
	CurrentAccount(ctx context.Context) (string, bool)
	CurrentChainID(ctx context.Context) (uint64, bool)
}

// WalletSessionManager owns the single wallet session of the process.
type WalletSessionManager interface {
	SessionReader
	Connect(ctx context.Context, kind entity.WalletKind) (string, error)
	Disconnect()
	SwitchNetwork(ctx context.Context, chainID uint64) error
	OnAccountsChanged(cb func(accounts []string)) (unregister func())
	OnChainChanged(cb func()) (unregister func())
	OnSessionChanged(cb func(entity.WalletSession)) (unregister func())
}
