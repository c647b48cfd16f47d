package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("approve: %w", ErrUserRejected)
	require.Equal(t, KindUserRejected, KindOf(wrapped))
	require.Equal(t, "user_rejected", KindOf(wrapped).String())

	txErr := &TxError{Err: ErrTransactionReverted, TxHash: common.HexToHash("0x01"), Reason: "paused"}
	require.Equal(t, KindTransactionReverted, KindOf(fmt.Errorf("play: %w", txErr)))

	require.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

func TestTxError(t *testing.T) {
	hash := common.HexToHash("0xabc")
	err := fmt.Errorf("play: %w", &TxError{Err: ErrTimeout, TxHash: hash})

	require.ErrorIs(t, err, ErrTimeout)
	got, ok := TxHashOf(err)
	require.True(t, ok)
	require.Equal(t, hash, got)
	require.True(t, OutcomeUnknown(err))

	_, ok = TxHashOf(ErrInsufficientBalance)
	require.False(t, ok)
	require.False(t, OutcomeUnknown(ErrInsufficientBalance))
}

func TestUserFacing(t *testing.T) {
	require.False(t, UserFacing(nil))
	require.False(t, UserFacing(fmt.Errorf("submit: %w", ErrUserRejected)))
	require.True(t, UserFacing(ErrApprovalFailed))
}
