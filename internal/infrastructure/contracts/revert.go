package contracts

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// IsRevert reports whether err is a node's answer that the call reverts.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), revertPrefix)
}

// RevertReason extracts the Error(string) reason from a revert. The empty string means no reason was given.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(raw); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}

	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), revertPrefix)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(msg[idx+len(revertPrefix):])
	rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
	return rest
}
