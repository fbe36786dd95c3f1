package service

import (
	"context"
	"testing"

	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSwitcher() *NetworkSwitchCoordinator {
	return NewNetworkSwitchCoordinator(testNetworks(), logger.NewNop())
}

func TestSwitchNetwork_UnsupportedChainNeverTouchesProvider(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask)

	err := newTestSwitcher().SwitchNetwork(context.Background(), w, 999)

	require.Error(t, err)
	assert.Equal(t, entity.KindUnsupportedNetwork, entity.KindOf(err))
	assert.Empty(t, w.callLog())
}

func TestSwitchNetwork_SwitchesKnownChain(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask).returns("wallet_switchEthereumChain", nil)

	require.NoError(t, newTestSwitcher().SwitchNetwork(context.Background(), w, 11155111))
	assert.Equal(t, []string{"wallet_switchEthereumChain"}, w.callLog())
}

func TestSwitchNetwork_PassesCanonicalHexChainID(t *testing.T) {
	var got []any
	w := newFakeWallet(entity.WalletMetaMask).handle("wallet_switchEthereumChain", func(params []any) (any, error) {
		got = params
		return nil, nil
	})

	require.NoError(t, newTestSwitcher().SwitchNetwork(context.Background(), w, 20994))
	require.Len(t, got, 1)
	assert.Equal(t, switchChainParameter{ChainID: "0x5202"}, got[0])
}

func TestSwitchNetwork_UnknownChainAddsThenRetriesOnce(t *testing.T) {
	cases := map[string]error{
		"code 4902":         &providerError{code: 4902, msg: "Unrecognized chain ID"},
		"wrapped in -32603": &providerError{code: -32603, msg: "Internal error", data: map[string]any{"originalError": map[string]any{"code": 4902, "message": "unknown"}}},
	}
	for name, switchErr := range cases {
		t.Run(name, func(t *testing.T) {
			switches := 0
			var added []any
			w := newFakeWallet(entity.WalletMetaMask).
				handle("wallet_switchEthereumChain", func([]any) (any, error) {
					switches++
					if switches == 1 {
						return nil, switchErr
					}
					return nil, nil
				}).
				handle("wallet_addEthereumChain", func(params []any) (any, error) {
					added = params
					return nil, nil
				})

			require.NoError(t, newTestSwitcher().SwitchNetwork(context.Background(), w, 84532))
			assert.Equal(t, []string{"wallet_switchEthereumChain", "wallet_addEthereumChain", "wallet_switchEthereumChain"}, w.callLog())

			require.Len(t, added, 1)
			param, ok := added[0].(addChainParameter)
			require.True(t, ok)
			assert.Equal(t, "0x14a34", param.ChainID)
			assert.Equal(t, "Base Sepolia", param.ChainName)
			assert.Equal(t, "https://sepolia.base.org", param.RPCURLs[0])
			assert.Equal(t, []string{"https://sepolia.basescan.org"}, param.BlockExplorerURLs)
		})
	}
}

func TestSwitchNetwork_UserRejectionShortCircuits(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask).
		fails("wallet_switchEthereumChain", &providerError{code: 4001, msg: "User rejected the request."})

	err := newTestSwitcher().SwitchNetwork(context.Background(), w, 11155111)

	assert.Equal(t, entity.KindUserRejected, entity.KindOf(err))
	assert.Equal(t, "Transaction was rejected by user", entity.UserMessage(err))
	assert.Equal(t, 0, w.count("wallet_addEthereumChain"))
}

func TestSwitchNetwork_RejectedAddIsUserRejected(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask).
		fails("wallet_switchEthereumChain", &providerError{code: 4902, msg: "Unrecognized chain"}).
		fails("wallet_addEthereumChain", &providerError{code: 4001, msg: "User rejected"})

	err := newTestSwitcher().SwitchNetwork(context.Background(), w, 11155111)

	assert.Equal(t, entity.KindUserRejected, entity.KindOf(err))
	assert.Equal(t, 1, w.count("wallet_switchEthereumChain"))
}

func TestSwitchNetwork_OtherSwitchErrorIsSwitchFailed(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask).
		fails("wallet_switchEthereumChain", &providerError{code: -32002, msg: "Request already pending"})

	err := newTestSwitcher().SwitchNetwork(context.Background(), w, 11155111)

	require.Equal(t, entity.KindSwitchFailed, entity.KindOf(err))
	assert.Equal(t, "Failed to switch to Sepolia: Request already pending", entity.UserMessage(err))
	assert.Equal(t, 0, w.count("wallet_addEthereumChain"))
}

func TestSwitchNetwork_AddConflictRetriesAndExplains(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask).
		fails("wallet_switchEthereumChain", &providerError{code: 4902, msg: "Unrecognized chain"}).
		fails("wallet_addEthereumChain", &providerError{code: -32603, msg: "Chain with the same RPC endpoint already exists"})

	err := newTestSwitcher().SwitchNetwork(context.Background(), w, 421614)

	require.Equal(t, entity.KindSwitchFailed, entity.KindOf(err))
	assert.Contains(t, entity.UserMessage(err), "Arbitrum Sepolia is already configured in your wallet")
	assert.Equal(t, 2, w.count("wallet_switchEthereumChain"))
	assert.Equal(t, 1, w.count("wallet_addEthereumChain"))
}

func TestSwitchNetwork_AddSucceededButSwitchFailed(t *testing.T) {
	w := newFakeWallet(entity.WalletMetaMask).
		fails("wallet_switchEthereumChain", &providerError{code: 4902, msg: "Unrecognized chain"}).
		returns("wallet_addEthereumChain", nil)

	err := newTestSwitcher().SwitchNetwork(context.Background(), w, 421614)

	require.Equal(t, entity.KindSwitchFailed, entity.KindOf(err))
	assert.Contains(t, entity.UserMessage(err), "Network Arbitrum Sepolia was added but switching failed")
}
