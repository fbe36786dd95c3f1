package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/contracts"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	existing := entity.NewError(entity.KindSwitchFailed, "switch", "manual", nil)

	tests := []struct {
		name   string
		err    error
		kind   entity.ErrorKind
		reason string
	}{
		{name: "keeps workflow errors", err: fmt.Errorf("wrapped: %w", existing), kind: entity.KindSwitchFailed, reason: "manual"},
		{name: "4001", err: &providerError{code: 4001, msg: "User rejected the request."}, kind: entity.KindUserRejected},
		{name: "rejection text", err: errors.New("MetaMask Tx Signature: User denied transaction signature."), kind: entity.KindUserRejected},
		{name: "wrapped 4001", err: &providerError{code: -32603, msg: "Internal error", data: map[string]any{"originalError": map[string]any{"code": 4001}}}, kind: entity.KindUserRejected},
		{name: "missing event", err: fmt.Errorf("Minted: %w", contracts.ErrEventNotFound), kind: entity.KindEventNotFound},
		{name: "insufficient funds", err: errors.New("insufficient funds for gas * price + value"), kind: entity.KindInsufficientFunds},
		{name: "revert", err: &providerError{code: 3, msg: "execution reverted: Listing not active"}, kind: entity.KindContractReverted, reason: "Listing not active"},
		{name: "deadline", err: fmt.Errorf("eth_call: %w", context.DeadlineExceeded), kind: entity.KindRPC, reason: "request timed out"},
		{name: "anything else", err: errors.New("dial tcp: connection refused"), kind: entity.KindRPC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}

	assert.Nil(t, classify("op", nil))
}

func TestUnknownChainDetection(t *testing.T) {
	assert.True(t, isUnknownChain(&providerError{code: 4902, msg: "x"}))
	assert.True(t, isUnknownChain(errors.New("Unrecognized chain ID \"0x5202\"")))
	assert.True(t, isUnknownChain(&providerError{code: -32603, msg: "x", data: map[string]any{"originalError": map[string]any{"code": 4902}}}))
	assert.False(t, isUnknownChain(&providerError{code: -32603, msg: "x"}))
	assert.False(t, isUnknownChain(nil))

	assert.True(t, isChainConflict(errors.New("Chain already added")))
	assert.False(t, isChainConflict(errors.New("timeout")))
}
