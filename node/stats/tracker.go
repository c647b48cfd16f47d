// Package stats keeps running statistics of a play session.
package stats

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// DefaultReportInterval is the time between periodic reports.
const DefaultReportInterval = time.Minute

// Summary is a point-in-time copy of the tracked statistics.
type Summary struct {
	Plays        uint64
	Wins         uint64
	MainJackpots uint64
	MiniJackpots uint64
	Failed       uint64

	Spent *big.Int
	Won   *big.Int
	// BestPayout is the largest single payout.
	BestPayout *big.Int

	// PlaysPerMinute is measured over the recent window.
	PlaysPerMinute float64
	Streak         int // positive for consecutive wins, negative for losses

	SlotHits   [types.SlotCount]uint64
	StartTime  time.Time
	LastUpdate time.Time
}

// Net returns winnings minus spending.
func (s Summary) Net() *big.Int {
	return new(big.Int).Sub(s.Won, s.Spent)
}

// WinRate returns the fraction of plays that paid out.
func (s Summary) WinRate() float64 {
	if s.Plays == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Plays)
}

// Render formats s as a block of text, amounts with decimals.
func (s Summary) Render(decimals uint8) string {
	net := s.Net()
	sign := "+"
	if net.Sign() < 0 {
		sign = "-"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plays:        %d (%d failed)\n", s.Plays, s.Failed)
	fmt.Fprintf(&b, "Wins:         %d (%.1f%%)\n", s.Wins, s.WinRate()*100)
	fmt.Fprintf(&b, "Jackpots:     %d main, %d mini\n", s.MainJackpots, s.MiniJackpots)
	fmt.Fprintf(&b, "Spent:        %s\n", types.FormatTokenAmount(s.Spent, decimals, 2))
	fmt.Fprintf(&b, "Won:          %s\n", types.FormatTokenAmount(s.Won, decimals, 2))
	fmt.Fprintf(&b, "Net:          %s%s\n", sign, types.FormatTokenAmount(net.Abs(net), decimals, 2))
	fmt.Fprintf(&b, "Best payout:  %s\n", types.FormatTokenAmount(s.BestPayout, decimals, 2))
	fmt.Fprintf(&b, "Pace:         %.2f plays/min\n", s.PlaysPerMinute)
	return b.String()
}

type playEvent struct {
	timestamp time.Time
}

// Tracker accumulates play results. It is safe for concurrent use.
type Tracker struct {
	mu  sync.RWMutex
	log log.Logger

	plays, wins, failed uint64
	mainHits, miniHits  uint64
	spent, won, best    *big.Int
	streak              int
	slotHits            [types.SlotCount]uint64
	startTime           time.Time
	lastUpdate          time.Time

	// Sliding window for the play rate
	window     []playEvent
	windowSize time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTracker creates a tracker measuring the play rate over a five minute
// window.
func NewTracker(l log.Logger) *Tracker {
	if l == nil {
		l = log.Root()
	}
	now := time.Now()
	return &Tracker{
		log:        l,
		spent:      new(big.Int),
		won:        new(big.Int),
		best:       new(big.Int),
		startTime:  now,
		lastUpdate: now,
		window:     make([]playEvent, 0, 64),
		windowSize: 5 * time.Minute,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// RecordPlay records a resolved play that cost entry.
func (t *Tracker) RecordPlay(res types.PlayResult, entry *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.plays++
	t.lastUpdate = now
	if entry != nil {
		t.spent.Add(t.spent, entry)
	}
	if res.Slot < types.SlotCount {
		t.slotHits[res.Slot]++
	}
	if res.MainJackpotHit {
		t.mainHits++
	}
	if res.MiniJackpotHit {
		t.miniHits++
	}
	if res.Won() {
		t.wins++
		t.won.Add(t.won, res.Payout)
		if res.Payout.Cmp(t.best) > 0 {
			t.best.Set(res.Payout)
		}
		if t.streak < 0 {
			t.streak = 0
		}
		t.streak++
	} else {
		if t.streak > 0 {
			t.streak = 0
		}
		t.streak--
	}

	t.window = append(t.window, playEvent{timestamp: now})
	t.trimWindow(now)
}

// RecordFailure counts a play that did not resolve.
func (t *Tracker) RecordFailure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
	t.lastUpdate = time.Now()
}

// trimWindow drops events older than the window (must be called with lock
// held).
func (t *Tracker) trimWindow(now time.Time) {
	cutoff := now.Add(-t.windowSize)
	i := 0
	for i < len(t.window) && !t.window[i].timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		t.window = t.window[i:]
	}
}

// rate returns plays per minute over the window (must be called with lock
// held).
func (t *Tracker) rate(now time.Time) float64 {
	cutoff := now.Add(-t.windowSize)
	count := 0
	oldest := now
	for _, e := range t.window {
		if e.timestamp.After(cutoff) {
			count++
			if e.timestamp.Before(oldest) {
				oldest = e.timestamp
			}
		}
	}
	span := now.Sub(oldest)
	if span < time.Second {
		span = time.Second
	}
	return float64(count) / span.Minutes()
}

// Summary returns the current statistics.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Summary{
		Plays:          t.plays,
		Wins:           t.wins,
		MainJackpots:   t.mainHits,
		MiniJackpots:   t.miniHits,
		Failed:         t.failed,
		Spent:          new(big.Int).Set(t.spent),
		Won:            new(big.Int).Set(t.won),
		BestPayout:     new(big.Int).Set(t.best),
		PlaysPerMinute: t.rate(time.Now()),
		Streak:         t.streak,
		SlotHits:       t.slotHits,
		StartTime:      t.startTime,
		LastUpdate:     t.lastUpdate,
	}
}

// Start logs a report every interval until ctx ends or Stop is called.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.reportLoop(ctx, interval)
}

func (t *Tracker) reportLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(t.doneCh)

	for {
		select {
		case <-ctx.Done():
			t.report(true)
			return
		case <-t.stopCh:
			t.report(true)
			return
		case <-ticker.C:
			t.report(false)
		}
	}
}

func (t *Tracker) report(final bool) {
	s := t.Summary()
	msg := "Session statistics"
	if final {
		msg = "Final session statistics"
	}
	t.log.Info(msg,
		"plays", s.Plays,
		"wins", s.Wins,
		"failed", s.Failed,
		"main", s.MainJackpots,
		"mini", s.MiniJackpots,
		"spent", s.Spent,
		"won", s.Won,
		"net", s.Net(),
		"rate", fmt.Sprintf("%.2f/min", s.PlaysPerMinute),
		"uptime", time.Since(s.StartTime).Round(time.Second).String(),
	)
}

// Stop ends the report loop started by Start and waits for the final report.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		if t.started.Load() {
			<-t.doneCh
		}
	})
}
