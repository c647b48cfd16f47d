// Package testutil provides an in-memory chain hosting the game and its
// entry token, for tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/codec"
	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// Default addresses used by the fake chain.
var (
	GameAddress   = common.HexToAddress("0xFBF81bFA463252e25C8883ac0E3EBae99617A52c")
	TokenAddress  = common.HexToAddress("0x55aC731aAa3442CE4D8bd8486eE4521B1D6Af5EC")
	PlayerAddress = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

// Ether is 10^18.
var Ether = big.NewInt(1e18)

// Tokens returns n whole tokens in base units.
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Ether)
}

// Outcome is the result the fake game assigns to the next play.
type Outcome struct {
	Slot   uint64
	Payout *big.Int
	Main   bool
	Mini   bool
}

// Chain is an in-memory chain with an ERC-20 token and the game contract.
// It implements the reader and wallet interfaces used by the client.
type Chain struct {
	ChainIDValue uint64
	From         common.Address
	Native       bool // game charges the entry in native currency

	game  *codec.Codec
	token *codec.Codec

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	native     map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	state      [6]*big.Int
	pool       [2]*big.Int
	noPool     bool
	outcomes   []Outcome
	playID     int64
	block      uint64
	nonces     map[common.Address]uint64

	receipts map[common.Hash]*gethtypes.Receipt
	pending  map[common.Hash]int

	counts map[string]int

	// ReceiptDelay is the number of lookups that return nothing before a
	// receipt becomes visible.
	ReceiptDelay int
	// DropReceipts hides every receipt.
	DropReceipts bool
	// RevertPlays makes play transactions fail.
	RevertPlays bool
	// RevertApprovals makes approve transactions fail.
	RevertApprovals bool
	// OmitPlayEvent makes successful plays emit no Play log.
	OmitPlayEvent bool
	// RejectSends simulates the user declining every signature.
	RejectSends bool
	// ReceiptErr is returned by receipt lookups while non-nil.
	ReceiptErr error
	// OnSend runs before a transaction is applied. It may block.
	OnSend func(method string)
}

// NewChain returns a chain where PlayerAddress holds balance tokens and the
// game charges entry.
func NewChain(balance, entry *big.Int) *Chain {
	c := &Chain{
		ChainIDValue: 369,
		From:         PlayerAddress,
		game:         codec.NewGame(),
		token:        codec.NewERC20(),
		balances:     map[common.Address]*big.Int{PlayerAddress: new(big.Int).Set(balance)},
		native:       map[common.Address]*big.Int{PlayerAddress: new(big.Int).Set(balance)},
		allowances:   make(map[[2]common.Address]*big.Int),
		nonces:       make(map[common.Address]uint64),
		receipts:     make(map[common.Hash]*gethtypes.Receipt),
		pending:      make(map[common.Hash]int),
		counts:       make(map[string]int),
		block:        100,
	}
	c.state = [6]*big.Int{Tokens(1000), Tokens(100), big.NewInt(0), big.NewInt(0), big.NewInt(0), new(big.Int).Set(entry)}
	c.pool = [2]*big.Int{big.NewInt(10000), big.NewInt(0)}
	return c
}

// SetAllowance sets owner's allowance for spender.
func (c *Chain) SetAllowance(owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
}

// Allowance returns owner's allowance for spender.
func (c *Chain) Allowance(owner, spender common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allowanceLocked(owner, spender)
}

// SetBalance sets the token and native balance of addr.
func (c *Chain) SetBalance(addr common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[addr] = new(big.Int).Set(amount)
	c.native[addr] = new(big.Int).Set(amount)
}

// Balance returns the token balance of addr.
func (c *Chain) Balance(addr common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceLocked(c.balances, addr))
}

// SetGameState overrides the main and mini jackpots.
func (c *Chain) SetGameState(main, mini *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[0] = new(big.Int).Set(main)
	c.state[1] = new(big.Int).Set(mini)
}

// DisableRandomPool makes getRandomPoolSize revert.
func (c *Chain) DisableRandomPool() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noPool = true
}

// QueueOutcome appends an outcome for a future play.
func (c *Chain) QueueOutcome(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

// Count returns how often an operation was performed. Names are contract
// method names, "receipt" for receipt lookups and "send" for submissions.
func (c *Chain) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Address implements the wallet interface.
func (c *Chain) Address() common.Address {
	return c.From
}

// ChainID implements the reader interface.
func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(c.ChainIDValue), nil
}

// BalanceAt implements the reader interface.
func (c *Chain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts["getBalance"]++
	return new(big.Int).Set(c.balanceLocked(c.native, account)), nil
}

// CallContract implements the reader interface.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("contract creation not supported")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	method, args, err := c.decode(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	c.counts[method.Name]++

	switch *msg.To {
	case TokenAddress:
		switch method.Name {
		case codec.MethodBalanceOf:
			return method.Outputs.Pack(new(big.Int).Set(c.balanceLocked(c.balances, args[0].(common.Address))))
		case codec.MethodAllowance:
			return method.Outputs.Pack(c.allowanceLocked(args[0].(common.Address), args[1].(common.Address)))
		case codec.MethodDecimals:
			return method.Outputs.Pack(uint8(18))
		case codec.MethodSymbol:
			return method.Outputs.Pack("PLS369")
		}
	case GameAddress:
		switch method.Name {
		case codec.MethodGetGameState:
			return method.Outputs.Pack(c.state[0], c.state[1], c.state[2], c.state[3], c.state[4], c.state[5])
		case codec.MethodGetRandomPoolSize:
			if c.noPool {
				return nil, errors.New("execution reverted")
			}
			return method.Outputs.Pack(c.pool[0], c.pool[1])
		}
	}
	return nil, fmt.Errorf("method %s is not a view", method.Name)
}

// TransactionReceipt implements the reader interface.
func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts["receipt"]++

	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	r, ok := c.receipts[txHash]
	if !ok || c.DropReceipts {
		return nil, ethereum.NotFound
	}
	if c.pending[txHash] > 0 {
		c.pending[txHash]--
		return nil, ethereum.NotFound
	}
	return r, nil
}

// SendTransaction implements the wallet interface for c.From.
func (c *Chain) SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	c.mu.Lock()
	nonce := c.nonces[c.From]
	c.nonces[c.From]++
	c.mu.Unlock()

	hash := crypto.Keccak256Hash(c.From.Bytes(), new(big.Int).SetUint64(nonce).Bytes(), data)
	if err := c.Submit(ctx, c.From, to, data, value, hash); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// Submit applies a transaction from from under hash.
func (c *Chain) Submit(ctx context.Context, from, to common.Address, data []byte, value *big.Int, hash common.Hash) error {
	c.mu.Lock()
	method, args, err := c.decode(to, data)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	onSend := c.OnSend
	reject := c.RejectSends
	c.mu.Unlock()

	if onSend != nil {
		onSend(method.Name)
	}
	if reject {
		return types.ErrUserRejected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts["send"]++
	c.counts[method.Name]++
	c.block++

	receipt := &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(c.block),
		Logs:        []*gethtypes.Log{},
	}
	switch {
	case to == TokenAddress && method.Name == codec.MethodApprove:
		if c.RevertApprovals {
			receipt.Status = gethtypes.ReceiptStatusFailed
			break
		}
		spender, amount := args[0].(common.Address), args[1].(*big.Int)
		c.allowances[[2]common.Address{from, spender}] = new(big.Int).Set(amount)
		receipt.Logs = append(receipt.Logs, c.approvalLog(from, spender, amount, hash))
	case to == GameAddress && method.Name == codec.MethodPlay:
		if !c.playLocked(from, value, hash, receipt) {
			receipt.Status = gethtypes.ReceiptStatusFailed
		}
	default:
		return fmt.Errorf("method %s is not a transaction", method.Name)
	}

	c.receipts[hash] = receipt
	c.pending[hash] = c.ReceiptDelay
	return nil
}

func (c *Chain) playLocked(from common.Address, value *big.Int, hash common.Hash, receipt *gethtypes.Receipt) bool {
	if c.RevertPlays {
		return false
	}
	entry := c.state[5]
	if c.Native {
		if value == nil || value.Cmp(entry) < 0 {
			return false
		}
		c.native[from] = new(big.Int).Sub(c.balanceLocked(c.native, from), value)
	} else {
		bal := c.balanceLocked(c.balances, from)
		allowance := c.allowanceLocked(from, GameAddress)
		if bal.Cmp(entry) < 0 || allowance.Cmp(entry) < 0 {
			return false
		}
		c.balances[from] = new(big.Int).Sub(bal, entry)
		c.allowances[[2]common.Address{from, GameAddress}] = new(big.Int).Sub(allowance, entry)
		receipt.Logs = append(receipt.Logs, c.transferLog(from, GameAddress, entry, hash))
	}

	out := Outcome{Payout: new(big.Int)}
	if len(c.outcomes) > 0 {
		out = c.outcomes[0]
		c.outcomes = c.outcomes[1:]
	}
	if out.Payout == nil {
		out.Payout = new(big.Int)
	}
	c.playID++
	c.state[2] = new(big.Int).Add(c.state[2], big.NewInt(1))
	c.pool[1] = new(big.Int).Add(c.pool[1], big.NewInt(1))
	if out.Payout.Sign() > 0 {
		if c.Native {
			c.native[from] = new(big.Int).Add(c.balanceLocked(c.native, from), out.Payout)
		} else {
			c.balances[from] = new(big.Int).Add(c.balanceLocked(c.balances, from), out.Payout)
		}
	}
	if !c.OmitPlayEvent {
		receipt.Logs = append(receipt.Logs, c.playLog(from, out, hash))
	}
	return true
}

func (c *Chain) decode(to common.Address, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("calldata too short")
	}
	schema := c.token.ABI()
	if to == GameAddress {
		schema = c.game.ABI()
	}
	method, err := schema.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

func (c *Chain) balanceLocked(m map[common.Address]*big.Int, addr common.Address) *big.Int {
	if b, ok := m[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (c *Chain) allowanceLocked(owner, spender common.Address) *big.Int {
	if a, ok := c.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (c *Chain) approvalLog(owner, spender common.Address, amount *big.Int, hash common.Hash) *gethtypes.Log {
	topic, _ := c.token.EventTopic(codec.EventApproval)
	return &gethtypes.Log{
		Address:     TokenAddress,
		Topics:      []common.Hash{topic, common.BytesToHash(owner.Bytes()), common.BytesToHash(spender.Bytes())},
		Data:        common.BigToHash(amount).Bytes(),
		TxHash:      hash,
		BlockNumber: c.block,
	}
}

func (c *Chain) transferLog(from, to common.Address, amount *big.Int, hash common.Hash) *gethtypes.Log {
	return &gethtypes.Log{
		Address:     TokenAddress,
		Topics:      []common.Hash{codec.EventSignatureHash("Transfer(address,address,uint256)"), common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.BigToHash(amount).Bytes(),
		TxHash:      hash,
		BlockNumber: c.block,
		Index:       0,
	}
}

func (c *Chain) playLog(player common.Address, out Outcome, hash common.Hash) *gethtypes.Log {
	topic, _ := c.game.EventTopic(codec.EventPlay)
	data, _ := codec.EncodeWords(
		codec.Uint64(out.Slot),
		codec.Uint256(out.Payout),
		codec.Bool(out.Main),
		codec.Bool(out.Mini),
	)
	return &gethtypes.Log{
		Address:     GameAddress,
		Topics:      []common.Hash{topic, common.BytesToHash(player.Bytes()), common.BigToHash(big.NewInt(c.playID))},
		Data:        data,
		TxHash:      hash,
		BlockNumber: c.block,
		Index:       1,
	}
}
