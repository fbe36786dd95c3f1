package entity

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories reported to API callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindProviderNotFound
	KindUserRejected
	KindUnsupportedNetwork
	KindSwitchFailed
	KindInsufficientFunds
	KindRPC
	KindContractReverted
	KindEventNotFound
	KindConfirmationTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindProviderNotFound:
		return "ProviderNotFound"
	case KindUserRejected:
		return "UserRejected"
	case KindUnsupportedNetwork:
		return "UnsupportedNetwork"
	case KindSwitchFailed:
		return "SwitchFailed"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindRPC:
		return "RpcError"
	case KindContractReverted:
		return "ContractReverted"
	case KindEventNotFound:
		return "EventNotFound"
	case KindConfirmationTimeout:
		return "ConfirmationTimeout"
	default:
		return "Unknown"
	}
}

// Retryable reports whether an operation failing with this kind may be repeated safely.
func (k ErrorKind) Retryable() bool {
	return k == KindRPC
}

// WorkflowError is the typed error surfaced by the session manager, the switch coordinator and every saga.
// Reason is a short human-readable detail that may be shown to the user; Err keeps the raw cause for logs.
type WorkflowError struct {
	Kind   ErrorKind
	Op     string
	Reason string
	Err    error
}

// NewError builds a WorkflowError.
func NewError(kind ErrorKind, op, reason string, cause error) *WorkflowError {
	return &WorkflowError{Kind: kind, Op: op, Reason: reason, Err: cause}
}

func (e *WorkflowError) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, &WorkflowError{Kind: KindUserRejected}).
func (e *WorkflowError) Is(target error) bool {
	var t *WorkflowError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Reason == "" && t.Err == nil
}

// KindOf extracts the kind of err, KindUnknown when err carries none.
func KindOf(err error) ErrorKind {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindUnknown
}

const genericFailureMessage = "Operation failed. Please check your connection and network and try again."

// UserMessage maps any error to exactly one concise message. Raw provider errors never leak through.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var we *WorkflowError
	if !errors.As(err, &we) {
		return genericFailureMessage
	}
	switch we.Kind {
	case KindValidation:
		if we.Reason != "" {
			return we.Reason
		}
		return "Invalid input. Please check the form and try again."
	case KindProviderNotFound:
		if we.Reason != "" {
			return we.Reason
		}
		return "Wallet not found. Please install the wallet extension and try again."
	case KindUserRejected:
		return "Transaction was rejected by user"
	case KindUnsupportedNetwork:
		if we.Reason != "" {
			return we.Reason
		}
		return "Unsupported network. Please switch to a supported network."
	case KindSwitchFailed:
		if we.Reason != "" {
			return we.Reason
		}
		return "Failed to switch network. Please switch manually in your wallet."
	case KindInsufficientFunds:
		return "Insufficient funds for gas fees"
	case KindRPC:
		return "Network request failed. Please check your connection and try again."
	case KindContractReverted:
		if we.Reason != "" {
			return fmt.Sprintf("Transaction reverted: %s", we.Reason)
		}
		return "Transaction failed on-chain."
	case KindEventNotFound:
		return "The contract did not emit the expected event. The deployment may not match this application."
	case KindConfirmationTimeout:
		return "Transaction confirmation timed out. Check the block explorer for its final status."
	default:
		return genericFailureMessage
	}
}

// ErrRecordNotFound is returned by store lookups that match no row.
var ErrRecordNotFound = errors.New("record not found")
