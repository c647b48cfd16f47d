package allowance

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/internal/testutil"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/receipt"
)

func newGate(chain *testutil.Chain) *Gate {
	logger := log.NewLogger(log.DiscardHandler())
	return New(Config{
		Owner:          testutil.PlayerAddress,
		Spender:        testutil.GameAddress,
		Token:          testutil.TokenAddress,
		ReceiptTimeout: time.Second,
		PollInterval:   time.Millisecond,
	}, chain, chain, receipt.NewWaiter(chain, logger), logger)
}

func TestEnsureSufficientSendsNothing(t *testing.T) {
	chain := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	chain.SetAllowance(testutil.PlayerAddress, testutil.GameAddress, testutil.Tokens(10))

	state, err := newGate(chain).Ensure(context.Background(), testutil.Tokens(10))
	require.NoError(t, err)
	require.True(t, state.Covers(testutil.Tokens(10)))
	require.Zero(t, chain.Count("send"))
	require.Equal(t, 1, chain.Count("allowance"))
}

func TestEnsureApprovesOnce(t *testing.T) {
	chain := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	chain.SetAllowance(testutil.PlayerAddress, testutil.GameAddress, testutil.Tokens(3))
	chain.ReceiptDelay = 2
	gate := newGate(chain)

	state, err := gate.Ensure(context.Background(), testutil.Tokens(10))
	require.NoError(t, err)
	require.Equal(t, 1, chain.Count("send"))
	require.Equal(t, 1, chain.Count("approve"))
	// initial read plus the confirming re-read
	require.Equal(t, 2, chain.Count("allowance"))
	require.Equal(t, 0, state.Amount.Cmp(testutil.Tokens(1000)))
	require.Equal(t, 0, gate.State().Amount.Cmp(testutil.Tokens(1000)))

	// a second call is satisfied by the batch approval
	_, err = gate.Ensure(context.Background(), testutil.Tokens(10))
	require.NoError(t, err)
	require.Equal(t, 1, chain.Count("send"))
}

func TestEnsureRejected(t *testing.T) {
	chain := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	chain.RejectSends = true

	_, err := newGate(chain).Ensure(context.Background(), testutil.Tokens(10))
	require.ErrorIs(t, err, types.ErrUserRejected)
	require.Equal(t, types.KindUserRejected, types.KindOf(err))
}

func TestEnsureApprovalReverted(t *testing.T) {
	chain := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	chain.RevertApprovals = true

	_, err := newGate(chain).Ensure(context.Background(), testutil.Tokens(10))
	require.ErrorIs(t, err, types.ErrApprovalFailed)
	_, ok := types.TxHashOf(err)
	require.True(t, ok)
}

func TestEnsureApprovalTimeout(t *testing.T) {
	chain := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	chain.DropReceipts = true
	logger := log.NewLogger(log.DiscardHandler())
	gate := New(Config{
		Owner:          testutil.PlayerAddress,
		Spender:        testutil.GameAddress,
		Token:          testutil.TokenAddress,
		ReceiptTimeout: 30 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, chain, chain, receipt.NewWaiter(chain, logger), logger)

	_, err := gate.Ensure(context.Background(), testutil.Tokens(10))
	require.ErrorIs(t, err, types.ErrTimeout)
}

func TestApproveExplicitAmount(t *testing.T) {
	chain := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	state, err := newGate(chain).Approve(context.Background(), testutil.Tokens(42))
	require.NoError(t, err)
	require.Equal(t, 0, state.Amount.Cmp(testutil.Tokens(42)))
	require.Equal(t, testutil.PlayerAddress, state.Owner)
	require.Equal(t, testutil.GameAddress, state.Spender)
}
