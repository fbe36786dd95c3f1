package entity

import (
	"fmt"
	"strings"
)

// NativeCurrency describes the gas token of a network as wallets expect it in wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// NetworkDefinition holds the configuration for a supported blockchain network.
// Definitions are compiled into the binary and never change at runtime.
type NetworkDefinition struct {
	ChainID          uint64         `json:"chainId" yaml:"chainId"`
	ChainIDHex       string         `json:"chainIdHex" yaml:"chainIdHex"`
	Name             string         `json:"name" yaml:"name"`
	Identifier       string         `json:"identifier" yaml:"identifier"`
	NativeCurrency   NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency"`
	PrimaryRPCURL    string         `json:"primaryRpcUrl" yaml:"primaryRpcUrl"`
	FallbackRPCURLs  []string       `json:"fallbackRpcUrls,omitempty" yaml:"fallbackRpcUrls,omitempty"`
	BlockExplorerURL string         `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
	Testnet          bool           `json:"testnet" yaml:"testnet"`
}

// RPCURLs returns the primary RPC URL followed by the fallbacks.
func (n NetworkDefinition) RPCURLs() []string {
	return append([]string{n.PrimaryRPCURL}, n.FallbackRPCURLs...)
}

// ExplorerTxURL builds a block explorer link for a transaction hash.
func (n NetworkDefinition) ExplorerTxURL(txHash string) string {
	if n.BlockExplorerURL == "" || txHash == "" {
		return ""
	}
	return strings.TrimRight(n.BlockExplorerURL, "/") + "/tx/" + txHash
}

// ChainIDToHex returns the canonical 0x-prefixed lowercase hex encoding of a chain id.
func ChainIDToHex(chainID uint64) string {
	return fmt.Sprintf("0x%x", chainID)
}

// ContractAddresses maps each logical contract to its deployed address.
type ContractAddresses struct {
	Marketplace string `json:"marketplace"`
	SakuraNFT   string `json:"sakuraNft"`
	Offer       string `json:"offer"`
}

// DeployedContracts is shared by every supported network.
var DeployedContracts = ContractAddresses{ //nolint:gochecknoglobals // static deployment table
	Marketplace: "0x5687FDA3BdE14d38057699c402606ab470EcA873",
	SakuraNFT:   "0x4Fd3765cde8D1d2BE4EdbaA03940AfC56794c304",
	Offer:       "0xd28967D75750f477E450Df81C73f34E2713B86B4",
}

// NetworkStats is a snapshot of chain activity for the dashboard.
type NetworkStats struct {
	ChainID             uint64  `json:"chainId"`
	NetworkName         string  `json:"networkName"`
	BlockNumber         uint64  `json:"blockNumber"`
	GasPriceWei         string  `json:"gasPriceWei"`
	GasPriceGwei        string  `json:"gasPriceGwei"`
	AvgBlockTimeSeconds float64 `json:"avgBlockTimeSeconds"`
}
