package stats

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

var ether = big.NewInt(1e18)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), ether)
}

func play(slot uint64, payout int64, main, mini bool) types.PlayResult {
	return types.PlayResult{Slot: slot, Payout: tokens(payout), MainJackpotHit: main, MiniJackpotHit: mini}
}

func TestTracker(t *testing.T) {
	tracker := NewTracker(log.NewLogger(log.DiscardHandler()))
	entry := tokens(10)

	tracker.RecordPlay(play(0, 0, false, false), entry)
	tracker.RecordPlay(play(1, 0, false, false), entry)
	tracker.RecordPlay(play(3, 30, false, false), entry)
	tracker.RecordPlay(play(16, 250, false, true), entry)
	tracker.RecordFailure()

	s := tracker.Summary()
	require.Equal(t, uint64(4), s.Plays)
	require.Equal(t, uint64(2), s.Wins)
	require.Equal(t, uint64(1), s.Failed)
	require.Equal(t, uint64(1), s.MiniJackpots)
	require.Zero(t, s.MainJackpots)
	require.Equal(t, 0, s.Spent.Cmp(tokens(40)))
	require.Equal(t, 0, s.Won.Cmp(tokens(280)))
	require.Equal(t, 0, s.Net().Cmp(tokens(240)))
	require.Equal(t, 0, s.BestPayout.Cmp(tokens(250)))
	require.Equal(t, 2, s.Streak)
	require.Equal(t, uint64(1), s.SlotHits[16])
	require.InDelta(t, 0.5, s.WinRate(), 1e-9)
	require.Greater(t, s.PlaysPerMinute, 0.0)

	// a loss resets a winning streak
	tracker.RecordPlay(play(5, 0, false, false), entry)
	require.Equal(t, -1, tracker.Summary().Streak)
}

func TestSummaryIsACopy(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.RecordPlay(play(7, 20, false, false), tokens(10))

	s := tracker.Summary()
	s.Won.SetInt64(0)
	require.Equal(t, 0, tracker.Summary().Won.Cmp(tokens(20)))
}

func TestRender(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.RecordPlay(play(0, 0, false, false), tokens(10))
	tracker.RecordPlay(play(0, 0, false, false), tokens(10))

	out := tracker.Summary().Render(types.DefaultDecimals)
	require.Contains(t, out, "Plays:        2 (0 failed)")
	require.Contains(t, out, "Spent:        20")
	require.Contains(t, out, "Net:          -20")

	empty := NewTracker(nil).Summary()
	require.Zero(t, empty.WinRate())
	require.Contains(t, empty.Render(types.DefaultDecimals), "Net:          +0")
}

func TestStartStop(t *testing.T) {
	tracker := NewTracker(log.NewLogger(log.DiscardHandler()))
	tracker.Start(context.Background(), 5*time.Millisecond)
	tracker.Start(context.Background(), 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	tracker.Stop()
	tracker.Stop()

	// never started
	NewTracker(nil).Stop()
}
