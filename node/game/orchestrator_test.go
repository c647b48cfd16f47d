package game

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/internal/testutil"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/allowance"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/chain"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/receipt"
)

type harness struct {
	chain  *testutil.Chain
	poller *Poller
	orch   *Orchestrator
}

func newHarness(t *testing.T, c *testutil.Chain, wallet chain.Wallet, native bool) *harness {
	t.Helper()
	if wallet == nil {
		wallet = c
	}
	waiter := receipt.NewWaiter(c, discard)
	poller := NewPoller(PollerConfig{Game: testutil.GameAddress}, c, discard)

	var gate *allowance.Gate
	if !native {
		gate = allowance.New(allowance.Config{
			Owner:          wallet.Address(),
			Spender:        testutil.GameAddress,
			Token:          testutil.TokenAddress,
			ReceiptTimeout: 200 * time.Millisecond,
			PollInterval:   time.Millisecond,
		}, c, wallet, waiter, discard)
	}
	orch, err := NewOrchestrator(OrchestratorConfig{
		Game:           testutil.GameAddress,
		Token:          testutil.TokenAddress,
		EntryPrice:     testutil.Tokens(10),
		Native:         native,
		ReceiptTimeout: 200 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}, c, wallet, gate, poller, waiter, discard)
	require.NoError(t, err)
	t.Cleanup(func() {
		orch.Close()
		poller.Stop()
	})
	return &harness{chain: c, poller: poller, orch: orch}
}

// approved returns a chain where the player already approved the game.
func approved() *testutil.Chain {
	c := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	c.SetAllowance(testutil.PlayerAddress, testutil.GameAddress, testutil.Tokens(1000))
	return c
}

func collect(ch <-chan Transition) []PlayState {
	var states []PlayState
	for {
		select {
		case tr := <-ch:
			states = append(states, tr.To)
		default:
			return states
		}
	}
}

func TestNewOrchestratorValidates(t *testing.T) {
	c := approved()
	waiter := receipt.NewWaiter(c, discard)

	_, err := NewOrchestrator(OrchestratorConfig{Game: testutil.GameAddress, Native: true}, c, c, nil, nil, waiter, discard)
	require.Error(t, err)

	_, err = NewOrchestrator(OrchestratorConfig{Game: testutil.GameAddress, EntryPrice: big.NewInt(1)}, c, c, nil, nil, waiter, discard)
	require.Error(t, err)
}

func TestPlayWithApproval(t *testing.T) {
	c := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	c.QueueOutcome(testutil.Outcome{Slot: 3, Payout: testutil.Tokens(30)})
	h := newHarness(t, c, nil, false)

	transitions := make(chan Transition, 32)
	sub := h.orch.SubscribeTransitions(transitions)
	defer sub.Unsubscribe()
	results := make(chan types.PlayResult, 1)
	rsub := h.orch.SubscribeResults(results)
	defer rsub.Unsubscribe()

	res, err := h.orch.Play(context.Background())
	require.NoError(t, err)
	require.Equal(t, testutil.PlayerAddress, res.Player)
	require.Equal(t, uint64(3), res.Slot)
	require.Equal(t, 0, res.Payout.Cmp(testutil.Tokens(30)))
	require.True(t, res.Won())
	require.Equal(t, int64(1), res.PlayID.Int64())
	require.NotEqual(t, common.Hash{}, res.TxHash)

	require.Equal(t, []PlayState{
		StateCheckingBalance,
		StateCheckingAllowance,
		StateApproving,
		StateSubmitting,
		StateAwaitingReceipt,
		StateExtractingEvent,
		StateResolved,
		StateIdle,
	}, collect(transitions))
	require.Equal(t, res.TxHash, (<-results).TxHash)

	// approve + play, and the approval covers many plays
	require.Equal(t, 2, c.Count("send"))
	require.Equal(t, 1, c.Count(codec.MethodApprove))
	require.Equal(t, 0, c.Allowance(testutil.PlayerAddress, testutil.GameAddress).Cmp(testutil.Tokens(990)))
	require.Equal(t, StateIdle, h.orch.State())
}

func TestPlaySkipsApprovalWhenCovered(t *testing.T) {
	h := newHarness(t, approved(), nil, false)

	transitions := make(chan Transition, 32)
	sub := h.orch.SubscribeTransitions(transitions)
	defer sub.Unsubscribe()

	_, err := h.orch.Play(context.Background())
	require.NoError(t, err)
	require.NotContains(t, collect(transitions), StateApproving)
	require.Equal(t, 1, h.chain.Count("send"))
	require.Equal(t, 0, h.chain.Count(codec.MethodApprove))
}

func TestPlayZeroPayoutResolves(t *testing.T) {
	h := newHarness(t, approved(), nil, false)
	h.chain.QueueOutcome(testutil.Outcome{Slot: 0, Payout: big.NewInt(0)})

	res, err := h.orch.Play(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Payout.Sign())
	require.False(t, res.Won())
}

func TestPlayInsufficientBalance(t *testing.T) {
	cc := approved()
	cc.SetBalance(testutil.PlayerAddress, testutil.Tokens(5))
	h := newHarness(t, cc, nil, false)

	_, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
	require.Equal(t, types.KindInsufficientBalance, types.KindOf(err))
	require.Equal(t, 0, cc.Count("send"))
	require.Equal(t, StateIdle, h.orch.State())
}

func TestPlaySingleFlight(t *testing.T) {
	cc := approved()
	entered := make(chan struct{})
	release := make(chan struct{})
	cc.OnSend = func(method string) {
		if method == codec.MethodPlay {
			close(entered)
			<-release
		}
	}
	h := newHarness(t, cc, nil, false)

	first := make(chan error, 1)
	go func() {
		_, err := h.orch.Play(context.Background())
		first <- err
	}()
	<-entered
	require.Equal(t, StateSubmitting, h.orch.State())

	_, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrPlayInFlight)

	close(release)
	require.NoError(t, <-first)
	require.Equal(t, 1, cc.Count("send"))
	require.Equal(t, StateIdle, h.orch.State())
}

func TestCloseWaitsForPlayInFlight(t *testing.T) {
	cc := approved()
	entered := make(chan struct{})
	release := make(chan struct{})
	cc.OnSend = func(method string) {
		if method == codec.MethodPlay {
			close(entered)
			<-release
		}
	}
	h := newHarness(t, cc, nil, false)

	first := make(chan error, 1)
	go func() {
		_, err := h.orch.Play(context.Background())
		first <- err
	}()
	<-entered

	closed := make(chan struct{})
	go func() {
		h.orch.Close()
		close(closed)
	}()
	require.Eventually(t, func() bool {
		_, err := h.orch.Play(context.Background())
		return errors.Is(err, ErrClosed)
	}, time.Second, time.Millisecond)

	select {
	case <-closed:
		t.Fatal("close returned with a play in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-first)
	<-closed
	require.Equal(t, StateIdle, h.orch.State())
	require.Equal(t, 1, cc.Count("send"))
}

func TestRefreshAsyncAfterStop(t *testing.T) {
	cc := approved()
	h := newHarness(t, cc, nil, false)
	h.poller.Stop()

	_, err := h.orch.Play(context.Background())
	require.NoError(t, err)
	h.orch.Close()
	require.Zero(t, cc.Count(codec.MethodGetGameState))
}

func TestPlayReverted(t *testing.T) {
	cc := approved()
	cc.RevertPlays = true
	h := newHarness(t, cc, nil, false)

	transitions := make(chan Transition, 32)
	sub := h.orch.SubscribeTransitions(transitions)
	defer sub.Unsubscribe()

	_, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrTransactionReverted)
	hash, ok := types.TxHashOf(err)
	require.True(t, ok)
	require.NotEqual(t, common.Hash{}, hash)
	require.True(t, types.OutcomeUnknown(err))

	var failed *Transition
	for len(transitions) > 0 {
		tr := <-transitions
		if tr.To == StateFailed {
			failed = &tr
		}
	}
	require.NotNil(t, failed)
	require.Equal(t, hash, failed.TxHash)
	require.ErrorIs(t, failed.Err, types.ErrTransactionReverted)
	require.Equal(t, StateIdle, h.orch.State())
}

func TestPlayMissingEventIsNotALoss(t *testing.T) {
	cc := approved()
	cc.OmitPlayEvent = true
	h := newHarness(t, cc, nil, false)

	res, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrEventNotFound)
	require.Equal(t, types.KindEventNotFound, types.KindOf(err))
	require.Nil(t, res.Payout)
	_, ok := types.TxHashOf(err)
	require.True(t, ok)
}

func TestPlayReceiptTimeout(t *testing.T) {
	cc := approved()
	cc.DropReceipts = true
	h := newHarness(t, cc, nil, false)

	_, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrTimeout)
	require.True(t, types.OutcomeUnknown(err))
	require.Equal(t, 1, cc.Count("send"))
}

func TestPlayUserRejected(t *testing.T) {
	cc := approved()
	cc.RejectSends = true
	h := newHarness(t, cc, nil, false)

	_, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrUserRejected)
	require.False(t, types.UserFacing(err))
	require.Equal(t, StateIdle, h.orch.State())
}

func TestPlayApprovalRejected(t *testing.T) {
	cc := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	cc.RejectSends = true
	h := newHarness(t, cc, nil, false)

	_, err := h.orch.Play(context.Background())
	require.ErrorIs(t, err, types.ErrUserRejected)
	require.Equal(t, 0, cc.Count(codec.MethodPlay))
}

// cancelAfterSend cancels the caller's context once the transaction is out.
type cancelAfterSend struct {
	*testutil.Chain
	cancel context.CancelFunc
}

func (w *cancelAfterSend) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	hash, err := w.Chain.SendTransaction(ctx, to, data, value)
	w.cancel()
	return hash, err
}

func TestPlayFollowsSubmittedTransactionAfterCancel(t *testing.T) {
	cc := approved()
	cc.ReceiptDelay = 3
	cc.QueueOutcome(testutil.Outcome{Slot: 10, Payout: testutil.Tokens(1000), Main: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t, cc, &cancelAfterSend{Chain: cc, cancel: cancel}, false)

	res, err := h.orch.Play(ctx)
	require.NoError(t, err)
	require.True(t, res.MainJackpotHit)
	require.Equal(t, types.SlotMainJackpot, types.KindOfSlot(res.Slot))
}

func TestPlayNative(t *testing.T) {
	cc := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(10))
	cc.Native = true
	cc.QueueOutcome(testutil.Outcome{Slot: 7, Payout: testutil.Tokens(20)})
	h := newHarness(t, cc, nil, true)

	res, err := h.orch.Play(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(7), res.Slot)
	require.Equal(t, 0, cc.Count(codec.MethodAllowance))
	require.Equal(t, 1, cc.Count("getBalance"))

	bal, err := h.orch.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, bal.Cmp(testutil.Tokens(110)))
}

func TestEntryPriceFollowsSnapshot(t *testing.T) {
	cc := testutil.NewChain(testutil.Tokens(100), testutil.Tokens(25))
	h := newHarness(t, cc, nil, false)

	require.Equal(t, 0, h.orch.EntryPrice().Cmp(testutil.Tokens(10)))
	_, err := h.poller.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, h.orch.EntryPrice().Cmp(testutil.Tokens(25)))
}
