package service

import (
	"context"
	"fmt"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
)

type switchChainParameter struct {
	ChainID string `json:"chainId"`
}

type addChainParameter struct {
	ChainID           string                `json:"chainId"`
	ChainName         string                `json:"chainName"`
	RPCURLs           []string              `json:"rpcUrls"`
	NativeCurrency    entity.NativeCurrency `json:"nativeCurrency"`
	BlockExplorerURLs []string              `json:"blockExplorerUrls,omitempty"`
}

func newAddChainParameter(def entity.NetworkDefinition) addChainParameter {
	p := addChainParameter{
		ChainID:        def.ChainIDHex,
		ChainName:      def.Name,
		RPCURLs:        def.RPCURLs(),
		NativeCurrency: def.NativeCurrency,
	}
	if def.BlockExplorerURL != "" {
		p.BlockExplorerURLs = []string{def.BlockExplorerURL}
	}
	return p
}

// NetworkSwitchCoordinator implements port.NetworkSwitcher.
type NetworkSwitchCoordinator struct {
	networks port.NetworkRegistry
	logger   port.Logger
}

// NewNetworkSwitchCoordinator creates a coordinator over the network registry.
func NewNetworkSwitchCoordinator(networks port.NetworkRegistry, logger port.Logger) *NetworkSwitchCoordinator {
	return &NetworkSwitchCoordinator{networks: networks, logger: logger.With("component", "network_switch")}
}

// SwitchNetwork moves provider to targetChainID, adding the chain to the wallet when it does not know it.
func (c *NetworkSwitchCoordinator) SwitchNetwork(ctx context.Context, provider port.WalletProvider, targetChainID uint64) error {
	const op = "switch_network"

	def, ok := c.networks.GetNetwork(targetChainID)
	if !ok {
		return entity.NewError(entity.KindUnsupportedNetwork, op,
			fmt.Sprintf("Chain %d is not supported. Please switch to a supported network.", targetChainID), nil)
	}
	log := c.logger.With("network", def.Name, "chainIdHex", def.ChainIDHex)

	err := c.switchChain(ctx, provider, def)
	if err == nil {
		log.Info("Wallet switched network")
		return nil
	}
	if isUserRejected(err) {
		return entity.NewError(entity.KindUserRejected, op, "", err)
	}
	if !isUnknownChain(err) {
		return entity.NewError(entity.KindSwitchFailed, op,
			fmt.Sprintf("Failed to switch to %s: %s", def.Name, providerMessage(err)), err)
	}

	log.Info("Wallet does not know the network, adding it")
	conflict := false
	if addErr := provider.Request(ctx, nil, "wallet_addEthereumChain", newAddChainParameter(def)); addErr != nil {
		if isUserRejected(addErr) {
			return entity.NewError(entity.KindUserRejected, op, "", addErr)
		}
		if !isChainConflict(addErr) {
			return entity.NewError(entity.KindSwitchFailed, op,
				fmt.Sprintf("Failed to add %s to wallet: %s", def.Name, providerMessage(addErr)), addErr)
		}
		conflict = true
		log.Warn("Network already registered in wallet with different settings, retrying switch", "error", addErr)
	}

	if err := c.switchChain(ctx, provider, def); err != nil {
		if isUserRejected(err) {
			return entity.NewError(entity.KindUserRejected, op, "", err)
		}
		if conflict {
			return entity.NewError(entity.KindSwitchFailed, op,
				fmt.Sprintf("%s is already configured in your wallet with different settings. Please select it manually: %s", def.Name, providerMessage(err)), err)
		}
		return entity.NewError(entity.KindSwitchFailed, op,
			fmt.Sprintf("Network %s was added but switching failed: %s", def.Name, providerMessage(err)), err)
	}
	log.Info("Wallet switched network after adding it")
	return nil
}

func (c *NetworkSwitchCoordinator) switchChain(ctx context.Context, provider port.WalletProvider, def entity.NetworkDefinition) error {
	return provider.Request(ctx, nil, "wallet_switchEthereumChain", switchChainParameter{ChainID: def.ChainIDHex})
}

// providerMessage is the raw provider message without Go wrapping.
func providerMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ port.NetworkSwitcher = (*NetworkSwitchCoordinator)(nil)
