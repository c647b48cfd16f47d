// Package game drives plays against the game contract and keeps its state
// fresh.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/events"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/allowance"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/chain"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/receipt"
)

// PlayState is a phase of a play.
type PlayState int

const (
	StateIdle PlayState = iota
	StateCheckingBalance
	StateCheckingAllowance
	StateApproving
	StateSubmitting
	StateAwaitingReceipt
	StateExtractingEvent
	StateResolved
	StateFailed
)

func (s PlayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingBalance:
		return "checking_balance"
	case StateCheckingAllowance:
		return "checking_allowance"
	case StateApproving:
		return "approving"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingReceipt:
		return "awaiting_receipt"
	case StateExtractingEvent:
		return "extracting_event"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition is published on every state change.
type Transition struct {
	From   PlayState
	To     PlayState
	TxHash common.Hash // set once the play is submitted
	Err    error       // set when To is StateFailed
	At     time.Time
}

// OrchestratorConfig holds play configuration.
type OrchestratorConfig struct {
	Game  common.Address
	Token common.Address

	// EntryPrice is used until the poller has read one from the contract.
	EntryPrice *big.Int
	// Native pays the entry as transaction value instead of token.
	Native bool

	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// Orchestrator runs plays one at a time: balance check, allowance check and
// approval, submission, confirmation and event extraction.
type Orchestrator struct {
	cfg     OrchestratorConfig
	reader  chain.Reader
	wallet  chain.Wallet
	gate    *allowance.Gate
	poller  *Poller
	waiter  *receipt.Waiter
	matcher *events.PlayMatcher
	game    *codec.Codec
	token   *codec.Codec
	log     log.Logger

	mu     sync.Mutex
	state  PlayState
	closed bool

	transitions event.FeedOf[Transition]
	results     event.FeedOf[types.PlayResult]

	active sync.WaitGroup // plays in flight
	bg     sync.WaitGroup
}

// NewOrchestrator wires an orchestrator. gate may be nil only in native mode
// and poller may be nil.
func NewOrchestrator(cfg OrchestratorConfig, reader chain.Reader, wallet chain.Wallet, gate *allowance.Gate, poller *Poller, waiter *receipt.Waiter, logger log.Logger) (*Orchestrator, error) {
	if cfg.EntryPrice == nil || cfg.EntryPrice.Sign() <= 0 {
		return nil, errors.New("entry price must be positive")
	}
	if !cfg.Native && gate == nil {
		return nil, errors.New("token entry requires an allowance gate")
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = receipt.DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = receipt.DefaultInterval
	}
	if logger == nil {
		logger = log.Root()
	}
	game := codec.NewGame()
	matcher, err := events.NewPlayMatcher(game, cfg.Game)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:     cfg,
		reader:  reader,
		wallet:  wallet,
		gate:    gate,
		poller:  poller,
		waiter:  waiter,
		matcher: matcher,
		game:    game,
		token:   codec.NewERC20(),
		log:     logger.New("component", "orchestrator"),
	}, nil
}

// State returns the current phase.
func (o *Orchestrator) State() PlayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SubscribeTransitions delivers every state change to ch.
func (o *Orchestrator) SubscribeTransitions(ch chan<- Transition) event.Subscription {
	return o.transitions.Subscribe(ch)
}

// SubscribeResults delivers every resolved play to ch.
func (o *Orchestrator) SubscribeResults(ch chan<- types.PlayResult) event.Subscription {
	return o.results.Subscribe(ch)
}

// Close rejects new plays with ErrClosed and waits for the play in flight
// and the background work it started.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.active.Wait()
	o.bg.Wait()
}

// EntryPrice returns the entry from the latest snapshot, or the configured
// one before the first snapshot.
func (o *Orchestrator) EntryPrice() *big.Int {
	if o.poller != nil {
		if snap, ok := o.poller.Latest(); ok && snap.EntryPrice != nil && snap.EntryPrice.Sign() > 0 {
			return new(big.Int).Set(snap.EntryPrice)
		}
	}
	return new(big.Int).Set(o.cfg.EntryPrice)
}

// Balance returns the player's balance in the entry currency.
func (o *Orchestrator) Balance(ctx context.Context) (*big.Int, error) {
	player := o.wallet.Address()
	if o.cfg.Native {
		return o.reader.BalanceAt(ctx, player, nil)
	}
	req, err := o.token.Call(o.cfg.Token, codec.MethodBalanceOf, player)
	if err != nil {
		return nil, err
	}
	out, err := o.reader.CallContract(ctx, req.Msg(player), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	words, err := o.token.DecodeWords(codec.MethodBalanceOf, out)
	if err != nil {
		return nil, err
	}
	return words[0], nil
}

// Play runs one play to completion. It fails immediately with
// ErrPlayInFlight when another play has not finished.
//
// ctx may abandon the play until it is submitted. After that the play is
// followed to its outcome regardless of ctx.
func (o *Orchestrator) Play(ctx context.Context) (types.PlayResult, error) {
	if err := o.begin(); err != nil {
		return types.PlayResult{}, err
	}
	defer o.active.Done()

	res, hash, err := o.run(ctx)
	if err != nil {
		if types.UserFacing(err) {
			o.log.Warn("Play failed", "tx", hash, "err", err)
		} else {
			o.log.Info("Play declined by user")
		}
		o.transition(StateFailed, hash, err)
		o.transition(StateIdle, hash, nil)
		return types.PlayResult{}, err
	}

	o.log.Info("Play resolved", "tx", hash, "slot", res.Slot, "payout", res.Payout,
		"main", res.MainJackpotHit, "mini", res.MiniJackpotHit)
	o.transition(StateResolved, hash, nil)
	o.results.Send(res)
	o.refreshAfterPlay()
	o.transition(StateIdle, hash, nil)
	return res, nil
}

// begin moves Idle to CheckingBalance atomically.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.state != StateIdle {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w (state %s)", types.ErrPlayInFlight, state)
	}
	o.state = StateCheckingBalance
	o.active.Add(1)
	o.mu.Unlock()

	o.transitions.Send(Transition{From: StateIdle, To: StateCheckingBalance, At: time.Now()})
	return nil
}

func (o *Orchestrator) transition(to PlayState, hash common.Hash, err error) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()

	o.log.Debug("Play state", "from", from, "to", to)
	o.transitions.Send(Transition{From: from, To: to, TxHash: hash, Err: err, At: time.Now()})
}

func (o *Orchestrator) run(ctx context.Context) (types.PlayResult, common.Hash, error) {
	entry := o.EntryPrice()

	balance, err := o.Balance(ctx)
	if err != nil {
		return types.PlayResult{}, common.Hash{}, err
	}
	if balance.Cmp(entry) < 0 {
		return types.PlayResult{}, common.Hash{}, fmt.Errorf("%w: have %s, need %s",
			types.ErrInsufficientBalance, balance, entry)
	}

	if !o.cfg.Native {
		o.transition(StateCheckingAllowance, common.Hash{}, nil)
		state, err := o.gate.Refresh(ctx)
		if err != nil {
			return types.PlayResult{}, common.Hash{}, err
		}
		if !state.Covers(entry) {
			o.transition(StateApproving, common.Hash{}, nil)
			if _, err := o.gate.Ensure(ctx, entry); err != nil {
				return types.PlayResult{}, common.Hash{}, err
			}
		}
	}

	o.transition(StateSubmitting, common.Hash{}, nil)
	req, err := o.game.Call(o.cfg.Game, codec.MethodPlay)
	if err != nil {
		return types.PlayResult{}, common.Hash{}, err
	}
	var value *big.Int
	if o.cfg.Native {
		value = entry
	}
	hash, err := o.wallet.SendTransaction(ctx, req.To(), req.Data(), value)
	if err != nil {
		return types.PlayResult{}, common.Hash{}, err
	}
	o.log.Info("Play submitted", "tx", hash)

	// The play is on chain now. Follow it to the end even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)
	o.transition(StateAwaitingReceipt, hash, nil)
	rcpt, err := o.waiter.WaitMined(ctx, hash, o.cfg.ReceiptTimeout, o.cfg.PollInterval)
	if err != nil {
		if errors.Is(err, types.ErrTransactionReverted) && rcpt != nil {
			reason, rerr := chain.RevertReason(ctx, o.reader, types.Transaction{
				Hash:  hash,
				From:  o.wallet.Address(),
				To:    req.To(),
				Data:  req.Data(),
				Value: value,
			}, rcpt.BlockNumber)
			if rerr != nil {
				o.log.Debug("Revert reason unavailable", "tx", hash, "err", rerr)
			}
			return types.PlayResult{}, hash, &types.TxError{Err: types.ErrTransactionReverted, TxHash: hash, Reason: reason}
		}
		return types.PlayResult{}, hash, err
	}

	o.transition(StateExtractingEvent, hash, nil)
	res, err := o.matcher.ResolveReceipt(rcpt)
	if err != nil {
		return types.PlayResult{}, hash, &types.TxError{Err: err, TxHash: hash}
	}
	return res, hash, nil
}

// refreshAfterPlay refreshes game state and allowance in the background.
func (o *Orchestrator) refreshAfterPlay() {
	if o.poller != nil {
		o.poller.RefreshAsync()
	}
	if o.gate == nil {
		return
	}
	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ReceiptTimeout)
		defer cancel()
		if _, err := o.gate.Refresh(ctx); err != nil {
			o.log.Warn("Allowance refresh failed", "err", err)
		}
	}()
}
