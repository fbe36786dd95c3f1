package networkdefinition

import (
	"fmt"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
)

// NetworkDefinitionProvider is the static network registry.
type NetworkDefinitionProvider struct {
	logger         port.Logger
	byChainID      map[uint64]entity.NetworkDefinition
	ordered        []entity.NetworkDefinition
	defaultChainID uint64
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	FluentTestnet = entity.NetworkDefinition{
		ChainID:          20994,
		ChainIDHex:       "0x5202",
		Name:             "Fluent Testnet",
		Identifier:       "fluent-testnet",
		NativeCurrency:   entity.NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: 18},
		PrimaryRPCURL:    "https://rpc.testnet.fluent.xyz",
		BlockExplorerURL: "https://testnet.fluentscan.xyz",
		Testnet:          true,
	}
	Sepolia = entity.NetworkDefinition{
		ChainID:          11155111,
		ChainIDHex:       "0xaa36a7",
		Name:             "Sepolia",
		Identifier:       "sepolia",
		NativeCurrency:   entity.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		PrimaryRPCURL:    "https://ethereum-sepolia-rpc.publicnode.com",
		FallbackRPCURLs:  []string{"https://rpc.sepolia.org", "https://sepolia.drpc.org"},
		BlockExplorerURL: "https://sepolia.etherscan.io",
		Testnet:          true,
	}
	BaseSepolia = entity.NetworkDefinition{
		ChainID:          84532,
		ChainIDHex:       "0x14a34",
		Name:             "Base Sepolia",
		Identifier:       "base-sepolia",
		NativeCurrency:   entity.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		PrimaryRPCURL:    "https://sepolia.base.org",
		FallbackRPCURLs:  []string{"https://base-sepolia-rpc.publicnode.com"},
		BlockExplorerURL: "https://sepolia.basescan.org",
		Testnet:          true,
	}
	ArbitrumSepolia = entity.NetworkDefinition{
		ChainID:          421614,
		ChainIDHex:       "0x66eee",
		Name:             "Arbitrum Sepolia",
		Identifier:       "arbitrum-sepolia",
		NativeCurrency:   entity.NativeCurrency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
		PrimaryRPCURL:    "https://sepolia-rollup.arbitrum.io/rpc",
		FallbackRPCURLs:  []string{"https://arbitrum-sepolia-rpc.publicnode.com"},
		BlockExplorerURL: "https://sepolia.arbiscan.io",
		Testnet:          true,
	}
)

// SupportedNetworks is the registry table in display order. The first entry is the default network.
var SupportedNetworks = []entity.NetworkDefinition{ //nolint:gochecknoglobals
	FluentTestnet,
	Sepolia,
	BaseSepolia,
	ArbitrumSepolia,
}

// NewNetworkDefinitionProvider builds the registry from the compiled-in table.
func NewNetworkDefinitionProvider(log port.Logger) (*NetworkDefinitionProvider, error) {
	return NewNetworkDefinitionProviderFrom(log, SupportedNetworks)
}

// NewNetworkDefinitionProviderFrom builds a registry from defs, rejecting duplicate chain ids
// and hex ids that are not the canonical encoding of the chain id.
func NewNetworkDefinitionProviderFrom(log port.Logger, defs []entity.NetworkDefinition) (*NetworkDefinitionProvider, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("network registry needs at least one network")
	}

	p := &NetworkDefinitionProvider{
		logger:         log,
		byChainID:      make(map[uint64]entity.NetworkDefinition, len(defs)),
		ordered:        make([]entity.NetworkDefinition, 0, len(defs)),
		defaultChainID: defs[0].ChainID,
	}

	for _, def := range defs {
		if def.ChainID == 0 {
			return nil, fmt.Errorf("network %q has no chain id", def.Name)
		}
		if _, dup := p.byChainID[def.ChainID]; dup {
			return nil, fmt.Errorf("duplicate chain id %d (%s)", def.ChainID, def.Name)
		}
		if want := entity.ChainIDToHex(def.ChainID); def.ChainIDHex != want {
			return nil, fmt.Errorf("network %s: chainIdHex %q is not the canonical encoding %q", def.Name, def.ChainIDHex, want)
		}
		if def.PrimaryRPCURL == "" {
			return nil, fmt.Errorf("network %s has no RPC URL", def.Name)
		}
		p.byChainID[def.ChainID] = def
		p.ordered = append(p.ordered, def)
		p.logger.Debug("Network registered", "name", def.Name, "chainId", def.ChainID, "chainIdHex", def.ChainIDHex)
	}

	p.logger.Info("Network registry initialized", "networks", len(p.ordered), "default", defs[0].Name)
	return p, nil
}

// ListNetworks returns a copy of the registry in display order.
func (p *NetworkDefinitionProvider) ListNetworks() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defsCopy := make([]entity.NetworkDefinition, len(p.ordered))
	copy(defsCopy, p.ordered)
	return defsCopy
}

// GetNetwork returns a network definition by chain id.
func (p *NetworkDefinitionProvider) GetNetwork(chainID uint64) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.byChainID[chainID]
	return def, ok
}

// GetNetworkByIdentifier returns a network definition by its short identifier.
func (p *NetworkDefinitionProvider) GetNetworkByIdentifier(identifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range p.ordered {
		if def.Identifier == identifier {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

// DefaultNetwork returns the network wallets are switched to on connect.
func (p *NetworkDefinitionProvider) DefaultNetwork() entity.NetworkDefinition {
	return p.byChainID[p.defaultChainID]
}
