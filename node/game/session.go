package game

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/allowance"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/chain"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/history"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/receipt"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/stats"
)

// ErrNativeEntry is returned by approval calls when the game takes its entry
// in native currency.
var ErrNativeEntry = errors.New("game takes native entry, no approval needed")

// ErrClosed is returned by Play once the session or orchestrator is closed.
var ErrClosed = errors.New("session closed")

// SessionConfig holds the configuration of one player session.
type SessionConfig struct {
	Game    common.Address
	Token   common.Address
	ChainID uint64 // zero skips the network check

	EntryPrice         *big.Int
	Native             bool
	ApprovalMultiplier int64

	ReceiptTimeout  time.Duration
	PollInterval    time.Duration
	RefreshInterval time.Duration
	ReadRandomPool  bool
}

// Session is the client surface for one player: game state, approvals, plays
// and their history. Sessions are independent of each other.
type Session struct {
	id     string
	cfg    SessionConfig
	reader chain.Reader
	wallet chain.Wallet
	store  *history.Store
	log    log.Logger

	gate   *allowance.Gate
	poller *Poller
	orch   *Orchestrator
	stats  *stats.Tracker

	scope     event.SubscriptionScope
	startOnce sync.Once
	closeOnce sync.Once
}

// NewSession wires a session for wallet. store may be nil.
func NewSession(cfg SessionConfig, reader chain.Reader, wallet chain.Wallet, store *history.Store, logger log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Root()
	}
	id := uuid.NewString()
	logger = logger.New("session", id[:8], "player", wallet.Address())

	waiter := receipt.NewWaiter(reader, logger)
	poller := NewPoller(PollerConfig{
		Game:           cfg.Game,
		Interval:       cfg.RefreshInterval,
		ReadRandomPool: cfg.ReadRandomPool,
	}, reader, logger)

	var gate *allowance.Gate
	if !cfg.Native {
		gate = allowance.New(allowance.Config{
			Owner:          wallet.Address(),
			Spender:        cfg.Game,
			Token:          cfg.Token,
			Multiplier:     cfg.ApprovalMultiplier,
			ReceiptTimeout: cfg.ReceiptTimeout,
			PollInterval:   cfg.PollInterval,
		}, reader, wallet, waiter, logger)
	}

	orch, err := NewOrchestrator(OrchestratorConfig{
		Game:           cfg.Game,
		Token:          cfg.Token,
		EntryPrice:     cfg.EntryPrice,
		Native:         cfg.Native,
		ReceiptTimeout: cfg.ReceiptTimeout,
		PollInterval:   cfg.PollInterval,
	}, reader, wallet, gate, poller, waiter, logger)
	if err != nil {
		return nil, err
	}

	return &Session{
		id:     id,
		cfg:    cfg,
		reader: reader,
		wallet: wallet,
		store:  store,
		log:    logger,
		gate:   gate,
		poller: poller,
		orch:   orch,
		stats:  stats.NewTracker(logger),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Player returns the playing address.
func (s *Session) Player() common.Address {
	return s.wallet.Address()
}

// Start checks the network, reads the game state once and starts periodic
// refreshes.
func (s *Session) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		if s.cfg.ChainID != 0 {
			if err = chain.CheckNetwork(ctx, s.reader, s.cfg.ChainID); err != nil {
				return
			}
		}
		if _, rerr := s.poller.Refresh(ctx); rerr != nil {
			s.log.Warn("Initial game state read failed", "err", rerr)
		}
		err = s.poller.Start(ctx)
		if err == nil {
			s.stats.Start(ctx, stats.DefaultReportInterval)
			s.log.Info("Session started", "game", s.cfg.Game, "interval", s.poller.cfg.Interval)
		}
	})
	return err
}

// Close waits for a play in flight, stops background work and ends every
// subscription. Plays started after Close fail with ErrClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.orch.Close()
		s.poller.Stop()
		s.stats.Stop()
		s.scope.Close()
		s.log.Info("Session closed")
	})
}

// GameState reads the game state now.
func (s *Session) GameState(ctx context.Context) (types.GameStateSnapshot, error) {
	return s.poller.Refresh(ctx)
}

// LatestGameState returns the last snapshot without reading the chain.
func (s *Session) LatestGameState() (types.GameStateSnapshot, bool) {
	return s.poller.Latest()
}

// RandomPool reads the randomness pool status.
func (s *Session) RandomPool(ctx context.Context) (types.RandomPoolStatus, error) {
	return s.poller.ReadRandomPool(ctx)
}

// EntryPrice returns the current entry price.
func (s *Session) EntryPrice() *big.Int {
	return s.orch.EntryPrice()
}

// Balance returns the player's balance in the entry currency.
func (s *Session) Balance(ctx context.Context) (*big.Int, error) {
	return s.orch.Balance(ctx)
}

// Allowance reads the game's allowance over the player's tokens.
func (s *Session) Allowance(ctx context.Context) (types.AllowanceState, error) {
	if s.gate == nil {
		return types.AllowanceState{}, ErrNativeEntry
	}
	return s.gate.Refresh(ctx)
}

// EnsureApproved makes sure the allowance covers one entry.
func (s *Session) EnsureApproved(ctx context.Context) (types.AllowanceState, error) {
	if s.gate == nil {
		return types.AllowanceState{}, ErrNativeEntry
	}
	return s.gate.Ensure(ctx, s.orch.EntryPrice())
}

// Approve sets the allowance to amount.
func (s *Session) Approve(ctx context.Context, amount *big.Int) (types.AllowanceState, error) {
	if s.gate == nil {
		return types.AllowanceState{}, ErrNativeEntry
	}
	return s.gate.Approve(ctx, amount)
}

// PlayState returns the current phase of the play in progress.
func (s *Session) PlayState() PlayState {
	return s.orch.State()
}

// Play runs one play and records it.
func (s *Session) Play(ctx context.Context) (types.PlayResult, error) {
	entry := s.orch.EntryPrice()
	res, err := s.orch.Play(ctx)
	if err != nil {
		if types.UserFacing(err) && !errors.Is(err, types.ErrPlayInFlight) && !errors.Is(err, ErrClosed) {
			s.stats.RecordFailure()
		}
		return res, err
	}
	s.stats.RecordPlay(res, entry)
	if s.store != nil {
		if _, err := s.store.Put(s.id, res); err != nil {
			s.log.Error("Failed to record play", "tx", res.TxHash, "err", err)
		}
	}
	return res, nil
}

// Stats returns the statistics of the plays made in this session.
func (s *Session) Stats() stats.Summary {
	return s.stats.Summary()
}

// History returns up to limit recorded plays, newest first.
func (s *Session) History(limit int) ([]history.Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(limit)
}

// SubscribeGameState delivers refreshed snapshots to ch until the
// subscription or the session ends.
func (s *Session) SubscribeGameState(ch chan<- types.GameStateSnapshot) event.Subscription {
	return s.scope.Track(s.poller.Subscribe(ch))
}

// SubscribePlayResults delivers resolved plays to ch.
func (s *Session) SubscribePlayResults(ch chan<- types.PlayResult) event.Subscription {
	return s.scope.Track(s.orch.SubscribeResults(ch))
}

// SubscribePlayState delivers play state transitions to ch.
func (s *Session) SubscribePlayState(ch chan<- Transition) event.Subscription {
	return s.scope.Track(s.orch.SubscribeTransitions(ch))
}
