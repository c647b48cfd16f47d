package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// PlayMatcher turns the logs of a play transaction into a PlayResult.
type PlayMatcher struct {
	m *Matcher
}

// NewPlayMatcher returns a matcher for the Play event declared by game.
// When emitter is non-zero only logs from that contract are considered.
func NewPlayMatcher(game *codec.Codec, emitter common.Address) (*PlayMatcher, error) {
	ev, err := game.Event(codec.EventPlay)
	if err != nil {
		return nil, err
	}
	m := NewMatcher(ev)
	if emitter != (common.Address{}) {
		m = m.FromEmitter(emitter)
	}
	return &PlayMatcher{m: m}, nil
}

// Resolve decodes the first Play log. It returns ErrEventNotFound when no
// log matches, which is distinct from a resolved play with zero payout.
func (p *PlayMatcher) Resolve(logs []*gethtypes.Log, txHash common.Hash) (types.PlayResult, error) {
	fields, l, err := p.m.Match(logs)
	if err != nil {
		return types.PlayResult{}, err
	}
	slot := fields.Big("slot")
	if !slot.IsUint64() {
		return types.PlayResult{}, fmt.Errorf("%w: slot %s out of range", types.ErrMalformedLog, slot)
	}
	return types.PlayResult{
		Player:         fields.Address("player"),
		PlayID:         fields.Big("playId"),
		Slot:           slot.Uint64(),
		Payout:         fields.Big("payout"),
		MainJackpotHit: fields.Bool("mainJackpotHit"),
		MiniJackpotHit: fields.Bool("miniJackpotHit"),
		TxHash:         txHash,
		BlockNumber:    l.BlockNumber,
	}, nil
}

// ResolveReceipt resolves the logs of receipt.
func (p *PlayMatcher) ResolveReceipt(receipt *gethtypes.Receipt) (types.PlayResult, error) {
	return p.Resolve(receipt.Logs, receipt.TxHash)
}
