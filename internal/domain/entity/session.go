package entity

import (
	"fmt"
	"strings"
)

// WalletKind enumerates the wallet providers the service knows how to talk to.
type WalletKind int

const (
	WalletMetaMask WalletKind = iota + 1
	WalletOKX
	WalletBitget
)

// AllWalletKinds lists every known wallet kind.
var AllWalletKinds = []WalletKind{WalletMetaMask, WalletOKX, WalletBitget} //nolint:gochecknoglobals

func (k WalletKind) String() string {
	switch k {
	case WalletMetaMask:
		return "metamask"
	case WalletOKX:
		return "okx"
	case WalletBitget:
		return "bitget"
	default:
		return "unknown"
	}
}

// DisplayName is used in user-facing messages.
func (k WalletKind) DisplayName() string {
	switch k {
	case WalletMetaMask:
		return "MetaMask"
	case WalletOKX:
		return "OKX Wallet"
	case WalletBitget:
		return "Bitget Wallet"
	default:
		return "Wallet"
	}
}

// ParseWalletKind converts a config or request value into a WalletKind.
func ParseWalletKind(s string) (WalletKind, error) {
	for _, k := range AllWalletKinds {
		if strings.EqualFold(strings.TrimSpace(s), k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown wallet kind %q", s)
}

// ConnectionState is the lifecycle state of the wallet session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MarshalText lets the state render as a string in JSON responses.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WalletSession is a snapshot of the connected wallet. Empty Account and zero ChainID mean unknown.
type WalletSession struct {
	Account    string          `json:"account,omitempty"`
	ChainID    uint64          `json:"chainId,omitempty"`
	State      ConnectionState `json:"state"`
	WalletKind WalletKind      `json:"-"`
	Wallet     string          `json:"wallet,omitempty"`
}

// IsConnected reports whether the session has an authorized account.
func (s WalletSession) IsConnected() bool {
	return s.State == Connected && s.Account != ""
}

// ProviderEvent is an event emitted by a wallet provider.
type ProviderEvent int

const (
	EventAccountsChanged ProviderEvent = iota + 1
	EventChainChanged
)

func (e ProviderEvent) String() string {
	switch e {
	case EventAccountsChanged:
		return "accountsChanged"
	case EventChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}
