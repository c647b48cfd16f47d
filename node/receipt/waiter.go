// Package receipt waits for transaction receipts.
package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

const (
	// DefaultTimeout bounds a single wait.
	DefaultTimeout = 60 * time.Second
	// DefaultInterval is the delay between receipt lookups.
	DefaultInterval = 2 * time.Second
)

// Fetcher looks up receipts.
type Fetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Waiter polls a Fetcher until a receipt shows up.
type Waiter struct {
	fetcher Fetcher
	log     log.Logger
}

// NewWaiter returns a waiter reading from fetcher.
func NewWaiter(fetcher Fetcher, logger log.Logger) *Waiter {
	if logger == nil {
		logger = log.Root()
	}
	return &Waiter{fetcher: fetcher, log: logger.New("component", "receipt")}
}

// Wait looks up the receipt of txHash immediately and then every interval.
// It returns the receipt as soon as one is found, or nil if timeout elapses
// first, including while a lookup is still in flight. A nil receipt means
// "not yet known", not failure. Lookup errors are logged and retried.
// Cancelling ctx aborts the wait with ctx.Err().
func (w *Waiter) Wait(ctx context.Context, txHash common.Hash, timeout, interval time.Duration) (*gethtypes.Receipt, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		receipt, err := w.fetcher.TransactionReceipt(waitCtx, txHash)
		switch {
		case err == nil && receipt != nil:
			w.log.Debug("Receipt found", "tx", txHash, "status", receipt.Status, "attempts", attempt)
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
		default:
			if waitCtx.Err() != nil {
				return w.expired(ctx, txHash, timeout)
			}
			w.log.Warn("Receipt lookup failed", "tx", txHash, "attempt", attempt, "err", err)
		}

		poll := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			poll.Stop()
			return w.expired(ctx, txHash, timeout)
		case <-poll.C:
		}
	}
}

// expired tells a cancelled parent context apart from the wait's own
// deadline, which yields a nil receipt.
func (w *Waiter) expired(ctx context.Context, txHash common.Hash, timeout time.Duration) (*gethtypes.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.log.Info("Receipt not found before timeout", "tx", txHash, "timeout", timeout)
	return nil, nil
}

// WaitMined waits for txHash and classifies the result: ErrTimeout when no
// receipt arrived, ErrTransactionReverted when the receipt has failed status.
func (w *Waiter) WaitMined(ctx context.Context, txHash common.Hash, timeout, interval time.Duration) (*gethtypes.Receipt, error) {
	receipt, err := w.Wait(ctx, txHash, timeout, interval)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, &types.TxError{Err: types.ErrTimeout, TxHash: txHash}
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return receipt, &types.TxError{Err: types.ErrTransactionReverted, TxHash: txHash}
	}
	return receipt, nil
}
