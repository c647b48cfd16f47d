package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// CallRequest is an encoded contract call. It is immutable once built.
type CallRequest struct {
	to   common.Address
	data []byte
}

// NewCallRequest builds a call to the given contract with encoded calldata.
func NewCallRequest(to common.Address, data []byte) CallRequest {
	return CallRequest{to: to, data: common.CopyBytes(data)}
}

// To returns the target contract.
func (r CallRequest) To() common.Address {
	return r.to
}

// Data returns a copy of the calldata, selector included.
func (r CallRequest) Data() []byte {
	return common.CopyBytes(r.data)
}

// Selector returns the 4-byte function selector.
func (r CallRequest) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], r.data)
	return sel
}

// Msg converts the request to a read-only call message.
func (r CallRequest) Msg(from common.Address) ethereum.CallMsg {
	to := r.to
	return ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: r.Data(),
	}
}

// Transaction is a submitted state-changing call.
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// PlayResult is the outcome of one play, decoded from its Play event.
type PlayResult struct {
	Player         common.Address `json:"player"`
	PlayID         *big.Int       `json:"playId"`
	Slot           uint64         `json:"slot"`
	Payout         *big.Int       `json:"payout"`
	MainJackpotHit bool           `json:"mainJackpotHit"`
	MiniJackpotHit bool           `json:"miniJackpotHit"`
	TxHash         common.Hash    `json:"txHash"`
	BlockNumber    uint64         `json:"blockNumber"`
}

// Won reports whether the play paid out anything.
func (r PlayResult) Won() bool {
	return r.Payout != nil && r.Payout.Sign() > 0
}

// AllowanceState is the last known allowance of spender over owner's tokens.
type AllowanceState struct {
	Owner     common.Address
	Spender   common.Address
	Amount    *big.Int
	UpdatedAt time.Time
}

// Covers reports whether the allowance is at least required.
func (s AllowanceState) Covers(required *big.Int) bool {
	return s.Amount != nil && s.Amount.Cmp(required) >= 0
}

// GameStateSnapshot is the read-only game state at a point in time.
type GameStateSnapshot struct {
	MainJackpot *big.Int
	MiniJackpot *big.Int
	PlayCount   *big.Int
	DaoAccrued  *big.Int
	DevAccrued  *big.Int
	EntryPrice  *big.Int

	// RandomPool is nil when the contract does not expose it.
	RandomPool *RandomPoolStatus

	UpdatedAt time.Time
}

// RandomPoolStatus reports how much of the contract's pre-committed
// randomness pool has been consumed.
type RandomPoolStatus struct {
	Size  *big.Int
	Index *big.Int
}

// Remaining returns Size - Index, floored at zero.
func (p RandomPoolStatus) Remaining() *big.Int {
	if p.Size == nil || p.Index == nil || p.Index.Cmp(p.Size) >= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(p.Size, p.Index)
}
