package service

import (
	"context"
	"errors"
	"strings"

	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/contracts"

	"github.com/ethereum/go-ethereum/rpc"
	jsoniter "github.com/json-iterator/go"
)

// EIP-1193 and JSON-RPC error codes the wallet layer distinguishes.
const (
	codeUserRejected = 4001
	codeUnknownChain = 4902
	codeInternal     = -32603
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// providerErrorData is the data member some wallets attach to -32603 errors.
type providerErrorData struct {
	OriginalError *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"originalError"`
}

func providerCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

// originalErrorCode digs the wrapped provider code out of an internal (-32603) error.
func originalErrorCode(err error) int {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) || dataErr.ErrorData() == nil {
		return 0
	}
	raw, mErr := jsonAPI.Marshal(dataErr.ErrorData())
	if mErr != nil {
		return 0
	}
	var data providerErrorData
	if jsonAPI.Unmarshal(raw, &data) != nil || data.OriginalError == nil {
		return 0
	}
	return data.OriginalError.Code
}

func isUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := providerCode(err); ok && code == codeUserRejected {
		return true
	}
	if originalErrorCode(err) == codeUserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// isUnknownChain reports the wallet does not know the requested chain yet.
func isUnknownChain(err error) bool {
	if err == nil {
		return false
	}
	code, _ := providerCode(err)
	if code == codeUnknownChain {
		return true
	}
	if code == codeInternal && originalErrorCode(err) == codeUnknownChain {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unrecognized chain")
}

// isChainConflict reports that an add-chain request clashed with an existing registration.
func isChainConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "same rpc") ||
		strings.Contains(msg, "already added")
}

func isInsufficientFunds(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "insufficient funds")
}

// classify maps any error onto exactly one taxonomy kind.
func classify(op string, err error) *entity.WorkflowError {
	if err == nil {
		return nil
	}
	var we *entity.WorkflowError
	if errors.As(err, &we) {
		return we
	}

	switch {
	case isUserRejected(err):
		return entity.NewError(entity.KindUserRejected, op, "", err)
	case errors.Is(err, contracts.ErrEventNotFound):
		return entity.NewError(entity.KindEventNotFound, op, "", err)
	case isInsufficientFunds(err):
		return entity.NewError(entity.KindInsufficientFunds, op, "", err)
	case contracts.IsRevert(err):
		return entity.NewError(entity.KindContractReverted, op, contracts.RevertReason(err), err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return entity.NewError(entity.KindRPC, op, "request timed out", err)
	default:
		return entity.NewError(entity.KindRPC, op, "", err)
	}
}

func validationError(op, reason string) *entity.WorkflowError {
	return entity.NewError(entity.KindValidation, op, reason, nil)
}
