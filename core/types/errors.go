// Package types defines the values and errors shared by the plinko client.
package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Common errors.
var (
	// Wallet errors
	ErrUserRejected        = errors.New("user rejected request")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNetworkMismatch     = errors.New("network mismatch")

	// Allowance errors
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrApprovalFailed        = errors.New("approval failed")

	// Transaction errors
	ErrTimeout             = errors.New("timed out waiting for receipt")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrEventNotFound       = errors.New("play event not found in receipt")
	ErrRPC                 = errors.New("rpc error")

	// Orchestration errors
	ErrPlayInFlight = errors.New("a play is already in progress")

	// Codec errors
	ErrEncoding     = errors.New("encoding error")
	ErrMalformedLog = errors.New("malformed log")
)

// ErrorKind classifies an error for presentation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUserRejected
	KindInsufficientBalance
	KindInsufficientAllowance
	KindApprovalFailed
	KindNetworkMismatch
	KindTimeout
	KindTransactionReverted
	KindEventNotFound
	KindRPC
	KindPlayInFlight
	KindEncoding
)

var kindErrors = []struct {
	kind ErrorKind
	err  error
}{
	{KindUserRejected, ErrUserRejected},
	{KindInsufficientBalance, ErrInsufficientBalance},
	{KindInsufficientAllowance, ErrInsufficientAllowance},
	{KindApprovalFailed, ErrApprovalFailed},
	{KindNetworkMismatch, ErrNetworkMismatch},
	{KindTimeout, ErrTimeout},
	{KindTransactionReverted, ErrTransactionReverted},
	{KindEventNotFound, ErrEventNotFound},
	{KindRPC, ErrRPC},
	{KindPlayInFlight, ErrPlayInFlight},
	{KindEncoding, ErrEncoding},
	{KindEncoding, ErrMalformedLog},
}

// KindOf returns the kind of the first known error in err's chain.
// More specific kinds win over ErrRPC when both are wrapped.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, ke := range kindErrors {
		if errors.Is(err, ke.err) {
			return ke.kind
		}
	}
	return KindUnknown
}

func (k ErrorKind) String() string {
	switch k {
	case KindUserRejected:
		return "user_rejected"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindInsufficientAllowance:
		return "insufficient_allowance"
	case KindApprovalFailed:
		return "approval_failed"
	case KindNetworkMismatch:
		return "network_mismatch"
	case KindTimeout:
		return "timeout"
	case KindTransactionReverted:
		return "transaction_reverted"
	case KindEventNotFound:
		return "event_not_found"
	case KindRPC:
		return "rpc_error"
	case KindPlayInFlight:
		return "play_in_flight"
	case KindEncoding:
		return "encoding_error"
	default:
		return "unknown"
	}
}

// TxError is a failure that happened after a transaction was submitted.
type TxError struct {
	Err    error
	TxHash common.Hash
	Reason string
}

func (e *TxError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v (tx %s): %s", e.Err, e.TxHash.Hex(), e.Reason)
	}
	return fmt.Sprintf("%v (tx %s)", e.Err, e.TxHash.Hex())
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// TxHashOf returns the transaction hash attached to err, if any.
func TxHashOf(err error) (common.Hash, bool) {
	var txErr *TxError
	if errors.As(err, &txErr) {
		return txErr.TxHash, true
	}
	return common.Hash{}, false
}

// OutcomeUnknown reports whether err leaves the on-chain outcome undetermined
// from the client's point of view. The user should be pointed at the explorer
// instead of being told the play was lost.
func OutcomeUnknown(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrTransactionReverted) ||
		errors.Is(err, ErrEventNotFound)
}

// UserFacing reports whether err should be surfaced as a failure message.
// A deliberate decline is not one.
func UserFacing(err error) bool {
	return err != nil && !errors.Is(err, ErrUserRejected)
}
