package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/contracts"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// sendTxArgs is the eth_sendTransaction parameter object.
type sendTxArgs struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Data     hexutil.Bytes  `json:"data"`
	Value    *hexutil.Big   `json:"value,omitempty"`
	Gas      hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big   `json:"gasPrice,omitempty"`
}

// txContext is what every submission needs to know about the running saga.
type txContext struct {
	provider port.WalletProvider
	client   port.BlockchainClient
	account  common.Address
	chainID  uint64
}

// txSender submits contract calls through the wallet and waits for their receipts on the network RPC.
type txSender struct {
	logger              port.Logger
	fallbackGasLimit    uint64
	confirmationTimeout time.Duration
	pollInterval        time.Duration
}

// ensureBalance fails with InsufficientFunds when the account cannot cover value (or holds nothing at all).
func (t *txSender) ensureBalance(ctx context.Context, tc txContext, value *big.Int) error {
	balance, err := tc.client.BalanceAt(ctx, tc.account)
	if err != nil {
		return classify("balance_check", err)
	}
	if balance.Sign() == 0 || (value != nil && balance.Cmp(value) < 0) {
		return entity.NewError(entity.KindInsufficientFunds, "balance_check", "", nil)
	}
	return nil
}

// estimateGas returns the estimate, or the fallback limit when the node fails for reasons other than a revert.
func (t *txSender) estimateGas(ctx context.Context, tc txContext, call contracts.ContractCall) (uint64, error) {
	to := call.To
	gas, err := tc.client.EstimateGas(ctx, ethereum.CallMsg{From: tc.account, To: &to, Data: call.Data, Value: call.Value})
	if err == nil {
		return gas, nil
	}
	if contracts.IsRevert(err) {
		return 0, entity.NewError(entity.KindContractReverted, call.Method, contracts.RevertReason(err), err)
	}
	t.logger.Warn("Gas estimation failed, using fallback limit", "method", call.Method, "gas", t.fallbackGasLimit, "error", err)
	return t.fallbackGasLimit, nil
}

// send estimates, re-verifies the wallet chain and hands the transaction to the wallet for signing.
func (t *txSender) send(ctx context.Context, tc txContext, call contracts.ContractCall) (common.Hash, error) {
	gas, err := t.estimateGas(ctx, tc, call)
	if err != nil {
		return common.Hash{}, err
	}

	gasPrice, err := tc.client.SuggestGasPrice(ctx)
	if err != nil {
		t.logger.Warn("Gas price suggestion failed, leaving it to the wallet", "method", call.Method, "error", err)
		gasPrice = nil
	}

	var walletChain hexutil.Uint64
	if err := tc.provider.Request(ctx, &walletChain, "eth_chainId"); err != nil {
		return common.Hash{}, classify(call.Method, err)
	}
	if uint64(walletChain) != tc.chainID {
		return common.Hash{}, entity.NewError(entity.KindUnsupportedNetwork, call.Method,
			fmt.Sprintf("Wallet switched to chain %d during the operation. Please switch back and try again.", uint64(walletChain)), nil)
	}

	args := sendTxArgs{
		From:  tc.account,
		To:    call.To,
		Data:  call.Data,
		Value: (*hexutil.Big)(call.Value),
		Gas:   hexutil.Uint64(gas),
	}
	if gasPrice != nil {
		args.GasPrice = (*hexutil.Big)(gasPrice)
	}

	var hash common.Hash
	if err := tc.provider.Request(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, classify(call.Method, err)
	}
	t.logger.Info("Transaction submitted", "method", call.Method, "txHash", hash.Hex(), "gas", gas)
	return hash, nil
}

// wait polls for the receipt of hash until it is mined or the confirmation timeout passes.
func (t *txSender) wait(ctx context.Context, tc txContext, method string, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, t.confirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := tc.client.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, entity.NewError(entity.KindContractReverted, method, "", nil)
			}
			t.logger.Info("Transaction confirmed", "method", method, "txHash", hash.Hex(), "block", receipt.BlockNumber)
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			t.logger.Debug("Receipt lookup failed, retrying", "txHash", hash.Hex(), "error", err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, classify(method, ctx.Err())
			}
			return nil, entity.NewError(entity.KindConfirmationTimeout, method,
				fmt.Sprintf("no receipt for %s after %s", hash.Hex(), t.confirmationTimeout), nil)
		case <-ticker.C:
		}
	}
}

// submitAndConfirm is send followed by wait for callers that do not split the two into saga steps.
func (t *txSender) submitAndConfirm(ctx context.Context, tc txContext, call contracts.ContractCall) (*types.Receipt, error) {
	hash, err := t.send(ctx, tc, call)
	if err != nil {
		return nil, err
	}
	return t.wait(ctx, tc, call.Method, hash)
}
