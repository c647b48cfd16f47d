package testutil

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Divido5555/Pulse-Plinko-Jackpot/core/types"
)

// rpcError is a JSON-RPC error with a code and optional data.
type rpcError struct {
	code int
	msg  string
	data interface{}
}

func (e *rpcError) Error() string          { return e.msg }
func (e *rpcError) ErrorCode() int         { return e.code }
func (e *rpcError) ErrorData() interface{} { return e.data }

// callArgs accepts both the "data" and "input" spellings of calldata.
type callArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data"`
	Input hexutil.Bytes   `json:"input"`
	Value *hexutil.Big    `json:"value"`
}

func (a callArgs) msg() ethereum.CallMsg {
	data := a.Input
	if len(data) == 0 {
		data = a.Data
	}
	return ethereum.CallMsg{From: a.From, To: a.To, Data: data, Value: (*big.Int)(a.Value)}
}

// EthService serves the eth namespace on top of a Chain.
type EthService struct {
	chain *Chain

	// RevertData is returned as error data from eth_call on the game
	// contract when set.
	RevertData []byte
}

func (s *EthService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(new(big.Int).SetUint64(s.chain.ChainIDValue))
}

func (s *EthService) Call(ctx context.Context, args callArgs, block string) (hexutil.Bytes, error) {
	if s.RevertData != nil && args.To != nil && *args.To == GameAddress {
		return nil, &rpcError{code: 3, msg: "execution reverted", data: hexutil.Encode(s.RevertData)}
	}
	return s.chain.CallContract(ctx, args.msg(), nil)
}

func (s *EthService) GetBalance(ctx context.Context, addr common.Address, block string) (*hexutil.Big, error) {
	bal, err := s.chain.BalanceAt(ctx, addr, nil)
	return (*hexutil.Big)(bal), err
}

func (s *EthService) GetTransactionReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	r, err := s.chain.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return r, err
}

func (s *EthService) GetTransactionCount(ctx context.Context, addr common.Address, block string) hexutil.Uint64 {
	s.chain.mu.Lock()
	defer s.chain.mu.Unlock()
	return hexutil.Uint64(s.chain.nonces[addr])
}

func (s *EthService) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1e9))
}

func (s *EthService) EstimateGas(ctx context.Context, args callArgs) hexutil.Uint64 {
	return 120000
}

func (s *EthService) SendRawTransaction(ctx context.Context, raw hexutil.Bytes) (common.Hash, error) {
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return common.Hash{}, err
	}
	if tx.To() == nil {
		return common.Hash{}, errors.New("contract creation not supported")
	}
	s.chain.mu.Lock()
	s.chain.nonces[from]++
	s.chain.mu.Unlock()

	if err := s.chain.Submit(ctx, from, *tx.To(), tx.Data(), tx.Value(), tx.Hash()); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

func (s *EthService) SendTransaction(ctx context.Context, args callArgs) (common.Hash, error) {
	if args.To == nil {
		return common.Hash{}, errors.New("contract creation not supported")
	}
	hash, err := s.chain.SendTransaction(ctx, *args.To, args.msg().Data, (*big.Int)(args.Value))
	if errors.Is(err, types.ErrUserRejected) {
		return common.Hash{}, &rpcError{code: 4001, msg: "User denied transaction signature."}
	}
	return hash, err
}

// Node is an in-process JSON-RPC node backed by a Chain.
type Node struct {
	Chain   *Chain
	Service *EthService
	Server  *rpc.Server
	Client  *rpc.Client
}

// NewNode starts an in-process node serving chain. It is stopped when the
// test ends.
func NewNode(t testing.TB, chain *Chain) *Node {
	t.Helper()
	svc := &EthService{chain: chain}
	server := rpc.NewServer()
	if err := server.RegisterName("eth", svc); err != nil {
		t.Fatalf("failed to register eth service: %v", err)
	}
	client := rpc.DialInProc(server)
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return &Node{Chain: chain, Service: svc, Server: server, Client: client}
}
