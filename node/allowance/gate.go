// Package allowance keeps the game's spending allowance over the player's
// tokens sufficient for the next play.
package allowance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/chain"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/node/receipt"
)

// DefaultMultiplier is how many entries one approval covers.
const DefaultMultiplier = 100

// Config holds gate configuration.
type Config struct {
	Owner   common.Address // token holder
	Spender common.Address // game contract
	Token   common.Address

	// Multiplier scales the approved amount so that one approval covers
	// several plays.
	Multiplier     int64
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
}

// Gate checks and raises the allowance of Spender over Owner's tokens.
type Gate struct {
	cfg    Config
	reader chain.Reader
	wallet chain.Wallet
	waiter *receipt.Waiter
	token  *codec.Codec
	log    log.Logger

	// mu serialises approvals.
	mu sync.Mutex

	stateMu sync.RWMutex
	state   types.AllowanceState
}

// New creates a gate.
func New(cfg Config, reader chain.Reader, wallet chain.Wallet, waiter *receipt.Waiter, logger log.Logger) *Gate {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = DefaultMultiplier
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Gate{
		cfg:    cfg,
		reader: reader,
		wallet: wallet,
		waiter: waiter,
		token:  codec.NewERC20(),
		log:    logger.New("component", "allowance"),
		state: types.AllowanceState{
			Owner:   cfg.Owner,
			Spender: cfg.Spender,
			Amount:  new(big.Int),
		},
	}
}

// State returns the last known allowance.
func (g *Gate) State() types.AllowanceState {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	s := g.state
	s.Amount = new(big.Int).Set(s.Amount)
	return s
}

// Refresh reads the current allowance from the chain.
func (g *Gate) Refresh(ctx context.Context) (types.AllowanceState, error) {
	req, err := g.token.Call(g.cfg.Token, codec.MethodAllowance, g.cfg.Owner, g.cfg.Spender)
	if err != nil {
		return types.AllowanceState{}, err
	}
	out, err := g.reader.CallContract(ctx, req.Msg(g.cfg.Owner), nil)
	if err != nil {
		return types.AllowanceState{}, fmt.Errorf("failed to read allowance: %w", err)
	}
	words, err := g.token.DecodeWords(codec.MethodAllowance, out)
	if err != nil {
		return types.AllowanceState{}, err
	}

	g.stateMu.Lock()
	g.state = types.AllowanceState{
		Owner:     g.cfg.Owner,
		Spender:   g.cfg.Spender,
		Amount:    words[0],
		UpdatedAt: time.Now(),
	}
	g.stateMu.Unlock()
	return g.State(), nil
}

// Ensure makes sure the allowance is at least required. When it already is,
// no transaction is sent. Otherwise one approval for required times the
// multiplier is submitted and confirmed, and the allowance is read again.
func (g *Gate) Ensure(ctx context.Context, required *big.Int) (types.AllowanceState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.Refresh(ctx)
	if err != nil {
		return types.AllowanceState{}, err
	}
	if state.Covers(required) {
		return state, nil
	}

	amount := new(big.Int).Mul(required, big.NewInt(g.cfg.Multiplier))
	g.log.Info("Allowance too low, requesting approval", "have", state.Amount, "need", required, "approve", amount)

	state, err = g.approveLocked(ctx, amount)
	if err != nil {
		return types.AllowanceState{}, err
	}
	if !state.Covers(required) {
		return state, fmt.Errorf("%w: allowance %s still below %s after approval",
			types.ErrApprovalFailed, state.Amount, required)
	}
	return state, nil
}

// Approve sets the allowance to amount.
func (g *Gate) Approve(ctx context.Context, amount *big.Int) (types.AllowanceState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.approveLocked(ctx, amount)
}

func (g *Gate) approveLocked(ctx context.Context, amount *big.Int) (types.AllowanceState, error) {
	req, err := g.token.Call(g.cfg.Token, codec.MethodApprove, g.cfg.Spender, amount)
	if err != nil {
		return types.AllowanceState{}, err
	}
	hash, err := g.wallet.SendTransaction(ctx, req.To(), req.Data(), nil)
	if err != nil {
		if errors.Is(err, types.ErrUserRejected) {
			return types.AllowanceState{}, err
		}
		return types.AllowanceState{}, fmt.Errorf("%w: %w", types.ErrApprovalFailed, err)
	}
	g.log.Info("Approval submitted", "tx", hash, "amount", amount)

	// The approval is on its way regardless of the caller now.
	waitCtx := context.WithoutCancel(ctx)
	if _, err := g.waiter.WaitMined(waitCtx, hash, g.cfg.ReceiptTimeout, g.cfg.PollInterval); err != nil {
		if errors.Is(err, types.ErrTransactionReverted) {
			return types.AllowanceState{}, &types.TxError{Err: types.ErrApprovalFailed, TxHash: hash, Reason: "approval reverted"}
		}
		return types.AllowanceState{}, err
	}

	state, err := g.Refresh(waitCtx)
	if err != nil {
		return types.AllowanceState{}, err
	}
	g.log.Info("Approval confirmed", "tx", hash, "allowance", state.Amount)
	return state, nil
}
